package theme

import "charm.land/lipgloss/v2"

// Styles contains all pre-built lipgloss styles for the TUI.
type Styles struct {
	HeaderTitle lipgloss.Style
	HeaderSub   lipgloss.Style

	Panel      lipgloss.Style
	PanelTitle lipgloss.Style

	// Step sidebar
	StepDone    lipgloss.Style
	StepCurrent lipgloss.Style
	StepPending lipgloss.Style

	// Lists
	Item         lipgloss.Style
	ItemCursor   lipgloss.Style
	ItemSelected lipgloss.Style
	ItemDetail   lipgloss.Style

	Label   lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	Notice lipgloss.Style

	Button         lipgloss.Style
	ButtonDisabled lipgloss.Style
	ButtonFocused  lipgloss.Style

	HintKey       lipgloss.Style
	HintDesc      lipgloss.Style
	HintSeparator lipgloss.Style

	Debug lipgloss.Style
}
