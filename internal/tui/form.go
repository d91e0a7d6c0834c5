package tui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/twinaos/installer/internal/tui/theme"
	"github.com/twinaos/installer/internal/wizard"
)

var fieldLabels = map[wizard.Field]string{
	wizard.FieldFullName: "Full name",
	wizard.FieldUsername: "Username",
	wizard.FieldPassword: "Password",
	wizard.FieldConfirm:  "Confirm password",
	wizard.FieldHostname: "Computer name",
}

// accountForm holds one text input per account field.
type accountForm struct {
	inputs []textinput.Model
	focus  int
}

func newAccountForm() *accountForm {
	th := theme.Current()
	styles := textinput.Styles{
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
	}

	f := &accountForm{inputs: make([]textinput.Model, len(wizard.Fields))}
	for i, field := range wizard.Fields {
		in := textinput.New()
		in.Prompt = "› "
		in.SetStyles(styles)
		in.SetWidth(40)
		switch field {
		case wizard.FieldPassword, wizard.FieldConfirm:
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		case wizard.FieldUsername:
			in.Placeholder = "lowercase letters and digits"
		}
		f.inputs[i] = in
	}
	return f
}

func (f *accountForm) field() wizard.Field { return wizard.Fields[f.focus] }

func (f *accountForm) last() bool { return f.focus == len(f.inputs)-1 }

// focusOn moves focus by delta, wrapping around.
func (f *accountForm) focusOn(delta int) tea.Cmd {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + len(f.inputs)) % len(f.inputs)
	return f.inputs[f.focus].Focus()
}

func (f *accountForm) start() tea.Cmd {
	return f.inputs[f.focus].Focus()
}

// update feeds msg to the focused input and reports its new value when it
// changed.
func (f *accountForm) update(msg tea.Msg) (string, bool, tea.Cmd) {
	in := &f.inputs[f.focus]
	before := in.Value()
	var cmd tea.Cmd
	*in, cmd = in.Update(msg)
	return in.Value(), in.Value() != before, cmd
}

// load copies session values into the inputs that are not being edited.
func (f *accountForm) load(u wizard.UserFields) {
	values := map[wizard.Field]string{
		wizard.FieldFullName: u.FullName,
		wizard.FieldUsername: u.Username,
		wizard.FieldPassword: u.Password,
		wizard.FieldConfirm:  u.Confirm,
		wizard.FieldHostname: u.Hostname,
	}
	for i, field := range wizard.Fields {
		if i == f.focus && f.inputs[i].Focused() {
			continue
		}
		if f.inputs[i].Value() != values[field] {
			f.inputs[i].SetValue(values[field])
		}
	}
}

func (f *accountForm) view(v wizard.View) string {
	s := theme.Current().S()
	var b strings.Builder
	for i, field := range wizard.Fields {
		label := fieldLabels[field]
		if i == f.focus {
			label = s.StepCurrent.Render(label)
		} else {
			label = s.Label.Render(label)
		}
		b.WriteString(label + "\n" + f.inputs[i].View() + "\n")
		if hint := fieldHint(field, v); hint != "" {
			b.WriteString(hint + "\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func fieldHint(field wizard.Field, v wizard.View) string {
	s := theme.Current().S()
	u := v.Form.User
	switch field {
	case wizard.FieldUsername:
		if u.Username != "" && !v.UsernameValid {
			return s.Error.Render("Must start with a letter; lowercase letters and digits only, at least 3")
		}
	case wizard.FieldPassword:
		if u.Password == "" {
			return s.Muted.Render("Enter a password")
		}
		return strengthMeter(v.Strength)
	case wizard.FieldConfirm:
		switch v.Confirm {
		case wizard.ConfirmMatch:
			return s.Success.Render("✓ Passwords match")
		case wizard.ConfirmMismatch:
			return s.Error.Render("✗ Passwords do not match")
		}
	}
	return ""
}

// strengthMeter draws a 20-cell bar shaded from red to green.
func strengthMeter(st wizard.Strength) string {
	th := theme.Current()
	color := theme.Blend(th.Error, th.Success, float64(st.Score)/100)
	filled := st.Score / 5
	bar := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(strings.Repeat("█", filled)) +
		th.S().Muted.Render(strings.Repeat("░", 20-filled))
	return fmt.Sprintf("%s Password strength: %s", bar, st.Label)
}
