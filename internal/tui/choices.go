package tui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/twinaos/installer/internal/catalog"
	"github.com/twinaos/installer/internal/tui/theme"
	"github.com/twinaos/installer/internal/wizard"
)

// choiceList is a scrollable list of wizard items with an optional search
// box. The cursor indexes the filtered items.
type choiceList struct {
	items     []wizard.Item
	filtered  []wizard.Item
	cursor    int
	search    textinput.Model
	canSearch bool
	searching bool
	loaded    bool
	height    int
}

func newChoiceList(searchable bool) *choiceList {
	th := theme.Current()
	input := textinput.New()
	input.Prompt = "Search: "
	input.Placeholder = "type to filter..."
	input.SetStyles(textinput.Styles{
		Focused: textinput.StyleState{
			Text:        lipgloss.NewStyle().Foreground(lipgloss.Color(th.FgBase)),
			Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color(th.FgMuted)),
			Prompt:      lipgloss.NewStyle().Foreground(lipgloss.Color(th.Secondary)),
		},
		Blurred: textinput.StyleState{
			Text:        lipgloss.NewStyle().Foreground(lipgloss.Color(th.FgSubtle)),
			Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color(th.FgMuted)),
			Prompt:      lipgloss.NewStyle().Foreground(lipgloss.Color(th.FgMuted)),
		},
		Cursor: textinput.CursorStyle{
			Color: lipgloss.Color(th.Primary),
			Shape: tea.CursorBar,
			Blink: true,
		},
	})
	input.SetWidth(40)
	return &choiceList{search: input, canSearch: searchable, height: 10}
}

// setItems replaces the items. On first load the cursor jumps to the
// selected item.
func (l *choiceList) setItems(items []wizard.Item, selected string) {
	l.items = items
	l.applyFilter()
	if !l.loaded && len(items) > 0 {
		l.loaded = true
		l.focus(selected)
	}
}

func (l *choiceList) focus(id string) {
	for i, it := range l.filtered {
		if it.ID == id {
			l.cursor = i
			return
		}
	}
}

func (l *choiceList) applyFilter() {
	l.filtered = catalog.Filter(l.items, l.search.Value())
	l.cursor = min(l.cursor, max(len(l.filtered)-1, 0))
}

func (l *choiceList) move(delta int) {
	if len(l.filtered) == 0 {
		return
	}
	l.cursor = (l.cursor + delta + len(l.filtered)) % len(l.filtered)
}

func (l *choiceList) current() (wizard.Item, bool) {
	if l.cursor < len(l.filtered) {
		return l.filtered[l.cursor], true
	}
	return wizard.Item{}, false
}

func (l *choiceList) startSearch() tea.Cmd {
	if !l.canSearch {
		return nil
	}
	l.searching = true
	return l.search.Focus()
}

// stopSearch leaves the search box; the filter stays applied.
func (l *choiceList) stopSearch() {
	l.searching = false
	l.search.Blur()
}

func (l *choiceList) updateSearch(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	before := l.search.Value()
	l.search, cmd = l.search.Update(msg)
	if l.search.Value() != before {
		l.cursor = 0
		l.applyFilter()
	}
	return cmd
}

// view renders the visible window of the list. marked is the id shown as
// chosen.
func (l *choiceList) view(width int, marked string) string {
	s := theme.Current().S()
	var lines []string
	if l.canSearch && (l.searching || l.search.Value() != "") {
		lines = append(lines, l.search.View(), "")
	}
	if len(l.filtered) == 0 {
		if len(l.items) == 0 {
			lines = append(lines, s.Muted.Render("Nothing found."))
		} else {
			lines = append(lines, s.Muted.Render(fmt.Sprintf("No match for %q.", l.search.Value())))
		}
		return strings.Join(lines, "\n")
	}

	start := 0
	if l.cursor >= l.height {
		start = l.cursor - l.height + 1
	}
	end := min(start+l.height, len(l.filtered))
	for i := start; i < end; i++ {
		it := l.filtered[i]
		mark := "  "
		if it.ID == marked {
			mark = s.ItemSelected.Render("✓ ")
		}
		label := it.Label
		if i == l.cursor {
			label = s.ItemCursor.Render(" " + label + " ")
		} else {
			label = s.Item.Render(" " + label + " ")
		}
		line := mark + label
		if it.Detail != "" {
			line += " " + s.ItemDetail.Render(it.Detail)
		}
		lines = append(lines, lipgloss.NewStyle().MaxWidth(width).Render(line))
	}
	if len(l.filtered) > l.height {
		lines = append(lines, s.Muted.Render(fmt.Sprintf("%d/%d", l.cursor+1, len(l.filtered))))
	}
	return strings.Join(lines, "\n")
}
