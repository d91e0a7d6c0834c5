package tui

import (
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/twinaos/installer/internal/tui/theme"
)

// ButtonState is the visual state of a button.
type ButtonState int

const (
	ButtonNormal ButtonState = iota
	ButtonDisabled
	ButtonFocused
)

type Button struct {
	Label string
	State ButtonState
}

// renderButtons centers the buttons on one line of the given width.
func renderButtons(width int, buttons ...Button) string {
	if len(buttons) == 0 {
		return ""
	}
	s := theme.Current().S()
	rendered := make([]string, 0, len(buttons))
	for _, b := range buttons {
		switch b.State {
		case ButtonDisabled:
			rendered = append(rendered, s.ButtonDisabled.Render(b.Label))
		case ButtonFocused:
			rendered = append(rendered, s.ButtonFocused.Render(b.Label))
		default:
			rendered = append(rendered, s.Button.Render(b.Label))
		}
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, strings.Join(rendered, ""))
}

func enabled(ok bool) ButtonState {
	if ok {
		return ButtonNormal
	}
	return ButtonDisabled
}

// backNext is the standard navigation pair.
func backNext(canBack, canNext bool, nextLabel string) []Button {
	return []Button{
		{Label: "← Back", State: enabled(canBack)},
		{Label: nextLabel, State: enabled(canNext)},
	}
}
