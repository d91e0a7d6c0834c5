// Package theme holds the installer's color palette and the styles built
// from it.
package theme

import (
	"sync"

	"charm.land/lipgloss/v2"
)

// Theme defines the color palette for the TUI.
type Theme struct {
	Name   string
	IsDark bool

	// Semantic colors
	Primary   string // lipgloss.Color is a string type
	Secondary string
	Tertiary  string

	// Background hierarchy (dark→light)
	BgCrust    string
	BgMantle   string
	BgBase     string
	BgSurface0 string
	BgSurface1 string
	BgSurface2 string

	// Foreground hierarchy (dim→bright)
	FgMuted  string
	FgSubtle string
	FgBase   string
	FgBright string

	// Status colors
	Success string
	Warning string
	Error   string
	Info    string

	// Lazy-built styles
	styles     *Styles
	stylesOnce sync.Once
}

var (
	current   = NewCatppuccinMocha()
	currentMu sync.RWMutex
)

// Current returns the active theme.
func Current() *Theme {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}

// Set replaces the active theme.
func Set(t *Theme) {
	currentMu.Lock()
	defer currentMu.Unlock()
	current = t
}

// S returns the pre-built styles for this theme.
// Styles are lazily initialized on first call.
func (t *Theme) S() *Styles {
	t.stylesOnce.Do(func() {
		t.styles = t.buildStyles()
	})
	return t.styles
}

func (t *Theme) buildStyles() *Styles {
	c := lipgloss.Color
	button := lipgloss.NewStyle().Padding(0, 2).MarginLeft(1).MarginRight(1)
	return &Styles{
		HeaderTitle: lipgloss.NewStyle().Foreground(c(t.Primary)).Bold(true),
		HeaderSub:   lipgloss.NewStyle().Foreground(c(t.FgSubtle)),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(c(t.Secondary)).
			Padding(1, 2),
		PanelTitle: lipgloss.NewStyle().Foreground(c(t.Primary)).Bold(true),

		StepDone:    lipgloss.NewStyle().Foreground(c(t.Success)),
		StepCurrent: lipgloss.NewStyle().Foreground(c(t.Secondary)).Bold(true),
		StepPending: lipgloss.NewStyle().Foreground(c(t.FgMuted)),

		Item:         lipgloss.NewStyle().Foreground(c(t.FgBase)),
		ItemCursor:   lipgloss.NewStyle().Foreground(c(t.BgBase)).Background(c(t.Secondary)).Bold(true),
		ItemSelected: lipgloss.NewStyle().Foreground(c(t.Success)).Bold(true),
		ItemDetail:   lipgloss.NewStyle().Foreground(c(t.FgSubtle)),

		Label:   lipgloss.NewStyle().Foreground(c(t.FgSubtle)),
		Value:   lipgloss.NewStyle().Foreground(c(t.FgBright)),
		Muted:   lipgloss.NewStyle().Foreground(c(t.FgMuted)),
		Success: lipgloss.NewStyle().Foreground(c(t.Success)),
		Warning: lipgloss.NewStyle().Foreground(c(t.Warning)),
		Error:   lipgloss.NewStyle().Foreground(c(t.Error)),

		Notice: lipgloss.NewStyle().
			Foreground(c(t.BgBase)).
			Background(c(t.Error)).
			Bold(true).
			Padding(0, 1),

		Button:         button.Foreground(c(t.FgBase)).Background(c(t.BgSurface0)),
		ButtonDisabled: button.Foreground(c(t.FgMuted)).Background(c(t.BgMantle)),
		ButtonFocused:  button.Foreground(c(t.BgBase)).Background(c(t.Secondary)).Bold(true),

		HintKey:       lipgloss.NewStyle().Foreground(c(t.FgSubtle)).Bold(true),
		HintDesc:      lipgloss.NewStyle().Foreground(c(t.FgMuted)),
		HintSeparator: lipgloss.NewStyle().Foreground(c(t.BgSurface2)),

		Debug: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(c(t.BgSurface2)).
			Padding(0, 1),
	}
}
