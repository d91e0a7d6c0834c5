package wizard

import "slices"

// Item is one candidate of a selection step.
type Item struct {
	ID     string
	Label  string
	Detail string
}

// Choices is a single-selection set: a list of items with at most one
// selected.
type Choices struct {
	items    []Item
	selected string
}

// NewChoices creates a set with nothing selected.
func NewChoices(items []Item) *Choices {
	return &Choices{items: slices.Clone(items)}
}

// SetItems replaces the candidates. The selection survives when its id is
// still offered and is cleared otherwise.
func (c *Choices) SetItems(items []Item) {
	c.items = slices.Clone(items)
	if _, ok := c.find(c.selected); !ok {
		c.selected = ""
	}
}

// Select marks id as the only selected item.
func (c *Choices) Select(id string) error {
	if _, ok := c.find(id); !ok {
		return ErrUnknownChoice
	}
	c.selected = id
	return nil
}

func (c *Choices) Clear() { c.selected = "" }

// Selected returns the selected item, if any.
func (c *Choices) Selected() (Item, bool) {
	if c.selected == "" {
		return Item{}, false
	}
	return c.find(c.selected)
}

// Items returns a copy of the candidates.
func (c *Choices) Items() []Item { return slices.Clone(c.items) }

func (c *Choices) find(id string) (Item, bool) {
	if id == "" {
		return Item{}, false
	}
	i := slices.IndexFunc(c.items, func(it Item) bool { return it.ID == id })
	if i < 0 {
		return Item{}, false
	}
	return c.items[i], true
}
