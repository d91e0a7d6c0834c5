package tui

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/dustin/go-humanize"
	"github.com/twinaos/installer/internal/tui/theme"
	"github.com/twinaos/installer/internal/wizard"
)

const sidebarWidth = 24

func (a *App) View() tea.View {
	var view tea.View
	view.AltScreen = true
	if a.quitting {
		view.Content = lipgloss.NewLayer("")
		return view
	}

	canvas := uv.NewScreenBuffer(a.width, a.height)
	uv.NewStyledString(a.render()).Draw(canvas, canvas.Bounds())
	view.Content = lipgloss.NewLayer(canvas.Render())
	view.BackgroundColor = lipgloss.Color(theme.Current().BgCrust)
	return view
}

func (a *App) contentWidth() int {
	return max(30, a.width-sidebarWidth-6)
}

// render lays out the whole screen as a string.
func (a *App) render() string {
	s := theme.Current().S()
	width := a.contentWidth()

	title := a.view.Step.Title()
	panel := s.Panel.Width(width).Render(s.PanelTitle.Render(title) + "\n\n" + a.renderStep(width-4))
	body := lipgloss.JoinHorizontal(lipgloss.Top, a.renderSidebar(), panel)

	parts := []string{a.renderHeader(), body}
	if n := a.view.Notice; n != nil {
		parts = append(parts, s.Notice.Width(a.width-2).Render("⚠ "+n.Message+"  (esc to dismiss)"))
	}
	if btns := a.buttons(); len(btns) > 0 {
		parts = append(parts, renderButtons(a.width, btns...))
	}
	parts = append(parts, a.hints())
	if a.debug {
		parts = append(parts, s.Debug.Width(a.width-2).Render(highlightJSON(map[string]any{
			"step":   a.view.Step,
			"config": a.view.Config,
		})))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (a *App) renderHeader() string {
	s := theme.Current().S()
	sub := fmt.Sprintf("Step %d of %d", a.view.Index+1, len(a.view.Steps))
	if a.view.Busy || a.pending {
		sub += " " + a.spinner.View()
	}
	return s.HeaderTitle.Render("TwinaOS Installer") + "  " + s.HeaderSub.Render(sub) + "\n"
}

func (a *App) renderSidebar() string {
	s := theme.Current().S()
	lines := make([]string, len(a.view.Steps))
	for i, st := range a.view.Steps {
		switch {
		case st.Current:
			lines[i] = s.StepCurrent.Render("▸ " + st.Title)
		case st.Completed:
			lines[i] = s.StepDone.Render("✓ " + st.Title)
		default:
			lines[i] = s.StepPending.Render("  " + st.Title)
		}
	}
	return lipgloss.NewStyle().Width(sidebarWidth).PaddingRight(2).Render(strings.Join(lines, "\n"))
}

func (a *App) renderStep(width int) string {
	v := a.view
	switch v.Step {
	case wizard.StepWelcome:
		return renderMarkdown(welcomeText, width)
	case wizard.StepLanguage, wizard.StepKeyboard, wizard.StepTimezone:
		return a.lists[v.Step].view(width, v.Choices[v.Step].Selected)
	case wizard.StepNetwork:
		return a.renderNetwork(width)
	case wizard.StepDisk:
		return a.renderDisk(width)
	case wizard.StepUser:
		return a.form.view(v)
	case wizard.StepSummary:
		return a.renderSummary()
	case wizard.StepProgress:
		return a.renderProgress(width)
	case wizard.StepComplete:
		return renderMarkdown(completeText, width)
	}
	return ""
}

func (a *App) renderNetwork(width int) string {
	s := theme.Current().S()
	var b strings.Builder
	b.WriteString(s.Muted.Render("Connecting is optional. Press s to skip.") + "\n\n")
	b.WriteString(a.lists[wizard.StepNetwork].view(width, a.view.Connected))
	if a.view.Connected != "" {
		b.WriteString("\n\n" + s.Success.Render("Connected to "+a.view.Connected))
	}
	if a.passwordFor != "" {
		b.WriteString("\n\n" + s.Label.Render("Password for "+a.passwordFor) + "\n" + a.password.View())
	}
	return b.String()
}

func (a *App) renderDisk(width int) string {
	s := theme.Current().S()
	v := a.view
	var b strings.Builder
	b.WriteString(s.Warning.Render("All data on the selected disk will be erased.") + "\n\n")
	b.WriteString(a.lists[wizard.StepDisk].view(width, v.Choices[wizard.StepDisk].Selected))

	if sel := v.Choices[wizard.StepDisk].Selected; sel != "" {
		for _, d := range v.Disks {
			if d.Path != sel {
				continue
			}
			b.WriteString("\n\n" + s.Label.Render("Selected: ") + s.Value.Render(
				fmt.Sprintf("%s (%s, %s)", d.Path, d.Model, humanize.IBytes(d.SizeBytes))))
		}
	}
	mode := "Automatic (erase disk)"
	if v.Form.Partitioning == wizard.PartitionManual {
		mode = "Manual"
	}
	b.WriteString("\n" + s.Label.Render("Partitioning: ") + s.Value.Render(mode))
	return b.String()
}

func (a *App) renderSummary() string {
	s := theme.Current().S()
	sum := a.view.Summary
	rows := [][2]string{
		{"Language", sum.Language},
		{"Keyboard", sum.Keyboard},
		{"Timezone", sum.Timezone},
		{"Network", sum.Network},
		{"Disk", sum.Disk},
		{"Partitioning", sum.Partitioning},
		{"Full name", sum.FullName},
		{"Username", sum.Username},
		{"Hostname", sum.Hostname},
	}
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(s.Label.Width(14).Render(r[0]) + s.Value.Render(r[1]) + "\n")
	}
	b.WriteString("\n" + s.Warning.Render("Installing will erase "+sum.Disk+"."))
	return b.String()
}

func (a *App) renderProgress(width int) string {
	s := theme.Current().S()
	p := a.view.Progress
	var b strings.Builder
	b.WriteString(a.bar.ViewAs(float64(p.Percent)/100) + "\n")
	msg := p.Message
	if msg == "" {
		msg = "Starting installation..."
	}
	if !p.Done {
		msg = a.spinner.View() + " " + msg
	}
	b.WriteString(msg + "\n\n")

	for _, ph := range p.Phases {
		switch ph.State {
		case wizard.PhaseCompleted:
			b.WriteString(s.StepDone.Render("✓ "+ph.Title) + "\n")
		case wizard.PhaseActive:
			b.WriteString(s.StepCurrent.Render("• "+ph.Title) + "\n")
		default:
			b.WriteString(s.StepPending.Render("  "+ph.Title) + "\n")
		}
	}

	if n := len(p.Log); n > 0 {
		b.WriteString("\n")
		for _, line := range p.Log[max(0, n-5):] {
			b.WriteString(s.Muted.Width(width).Render(line) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *App) buttons() []Button {
	v := a.view
	switch v.Step {
	case wizard.StepWelcome:
		return []Button{{Label: "Start →", State: enabled(v.CanAdvance)}}
	case wizard.StepSummary:
		return backNext(v.CanRetreat, v.CanAdvance, "Install")
	case wizard.StepProgress:
		return nil
	case wizard.StepComplete:
		now, later := ButtonFocused, ButtonNormal
		if a.rebootLater {
			now, later = ButtonNormal, ButtonFocused
		}
		return []Button{{Label: "Reboot now", State: now}, {Label: "Reboot later", State: later}}
	}
	return backNext(v.CanRetreat, v.CanAdvance, "Next →")
}

func (a *App) hints() string {
	if a.passwordFor != "" {
		return renderHintBar("enter", "connect", "esc", "cancel")
	}
	switch a.view.Step {
	case wizard.StepWelcome, wizard.StepSummary:
		return renderHintBar("enter", "continue", "esc", "back", "ctrl+c", "quit")
	case wizard.StepKeyboard, wizard.StepTimezone:
		return renderHintBar("↑↓", "navigate", "/", "search", "enter", "select", "esc", "back")
	case wizard.StepLanguage:
		return renderHintBar("↑↓", "navigate", "enter", "select", "esc", "back")
	case wizard.StepNetwork:
		return renderHintBar("↑↓", "navigate", "enter", "connect", "s", "skip", "esc", "back")
	case wizard.StepDisk:
		return renderHintBar("↑↓", "navigate", "enter", "select", "p", "partitioning", "esc", "back")
	case wizard.StepUser:
		return renderHintBar("tab", "next field", "enter", "continue", "esc", "back")
	case wizard.StepProgress:
		return renderHintBar("ctrl+c", "quit")
	case wizard.StepComplete:
		return renderHintBar("←→", "choose", "enter", "confirm")
	}
	return ""
}
