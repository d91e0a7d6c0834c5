// Package tui is the terminal front-end of the installer wizard. It renders
// wizard.View and turns key presses into session calls.
package tui

import (
	"context"
	"errors"

	"charm.land/bubbles/v2/progress"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/twinaos/installer/internal/logger"
	"github.com/twinaos/installer/internal/tui/theme"
	"github.com/twinaos/installer/internal/wizard"
)

// Options tunes the UI.
type Options struct {
	DefaultHostname string
}

// sessionChangedMsg is sent whenever the session reports a change.
type sessionChangedMsg struct{}

// actionDoneMsg ends an asynchronous session call.
type actionDoneMsg struct {
	op  string
	err error
}

// App is the Bubbletea model of the installer.
type App struct {
	ctx  context.Context
	sess *wizard.Session
	opts Options
	log  *logger.Logger

	view   wizard.View
	width  int
	height int

	lists map[wizard.StepID]*choiceList
	form  *accountForm
	// step is the step the widgets were last prepared for.
	step wizard.StepID

	password textinput.Model
	// passwordFor is the SSID the password prompt is open for.
	passwordFor string

	spinner spinner.Model
	bar     progress.Model

	rebootLater bool
	rebooting   bool
	pending     bool
	debug       bool
	quitting    bool
}

// NewApp creates the model for sess.
func NewApp(ctx context.Context, sess *wizard.Session, opts Options) *App {
	th := theme.Current()

	pw := textinput.New()
	pw.Prompt = "Password: "
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'
	pw.SetWidth(30)

	sp := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(th.Primary))),
	)

	a := &App{
		ctx:  ctx,
		sess: sess,
		opts: opts,
		log:  logger.Default.With("tui"),
		lists: map[wizard.StepID]*choiceList{
			wizard.StepLanguage: newChoiceList(false),
			wizard.StepKeyboard: newChoiceList(true),
			wizard.StepTimezone: newChoiceList(true),
			wizard.StepNetwork:  newChoiceList(false),
			wizard.StepDisk:     newChoiceList(false),
		},
		form:     newAccountForm(),
		password: pw,
		spinner:  sp,
		bar:      progress.New(progress.WithWidth(50)),
		width:    100,
		height:   32,
	}
	a.refresh()
	return a
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.waitForChange(), a.spinner.Tick, a.prepareStep())
}

// waitForChange blocks until the session ticks or the context ends.
func (a *App) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-a.sess.Changes():
			return sessionChangedMsg{}
		case <-a.ctx.Done():
			return nil
		}
	}
}

// refresh re-reads the session and feeds the widgets.
func (a *App) refresh() {
	a.view = a.sess.View()
	for step, l := range a.lists {
		cl := a.view.Choices[step]
		l.setItems(cl.Items, cl.Selected)
	}
	a.form.load(a.view.Form.User)
}

// prepareStep focuses the widgets of a newly entered step.
func (a *App) prepareStep() tea.Cmd {
	if a.step == a.view.Step {
		return nil
	}
	a.step = a.view.Step
	if a.step == wizard.StepUser {
		return a.form.start()
	}
	return nil
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.bar.SetWidth(min(60, max(20, a.contentWidth()-4)))
		for _, l := range a.lists {
			l.height = max(5, a.height-16)
		}
		return a, nil

	case sessionChangedMsg:
		a.refresh()
		return a, tea.Batch(a.waitForChange(), a.prepareStep())

	case actionDoneMsg:
		a.pending = false
		a.refresh()
		if msg.err != nil {
			a.log.Debug("%s: %v", msg.op, msg.err)
		}
		switch msg.op {
		case "connect":
			if msg.err == nil && a.view.Connected == a.passwordFor {
				a.closePassword()
			}
		case "reboot":
			a.rebooting = msg.err == nil
			if a.rebooting {
				a.quitting = true
				return a, tea.Quit
			}
		}
		return a, a.prepareStep()

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.KeyPressMsg:
		cmd := a.handleKey(msg)
		return a, tea.Batch(cmd, a.prepareStep())
	}

	if a.passwordFor != "" {
		var cmd tea.Cmd
		a.password, cmd = a.password.Update(msg)
		return a, cmd
	}
	return a, nil
}

// run executes a blocking session call off the update loop.
func (a *App) run(op string, fn func(context.Context) error) tea.Cmd {
	a.pending = true
	ctx := a.ctx
	return func() tea.Msg {
		return actionDoneMsg{op: op, err: fn(ctx)}
	}
}

func (a *App) advance() tea.Cmd {
	if !a.view.CanAdvance {
		return nil
	}
	return a.run("advance", a.sess.Advance)
}

func (a *App) retreat() tea.Cmd {
	if !a.view.CanRetreat {
		return nil
	}
	return a.run("retreat", a.sess.Retreat)
}

func (a *App) handleKey(msg tea.KeyPressMsg) tea.Cmd {
	key := msg.String()
	switch key {
	case "ctrl+c":
		a.quitting = true
		return tea.Quit
	case "ctrl+alt+d":
		a.debug = !a.debug
		return nil
	}

	if a.passwordFor != "" {
		return a.handlePasswordKey(msg)
	}

	if key == "esc" {
		if a.view.Notice != nil {
			a.sess.DismissNotice()
			a.refresh()
			return nil
		}
		if l, ok := a.lists[a.view.Step]; ok && l.searching {
			l.stopSearch()
			return nil
		}
	}

	if a.pending || a.view.Busy {
		return nil
	}

	switch key {
	case "esc", "ctrl+b":
		return a.retreat()
	case "ctrl+n":
		return a.advance()
	}

	switch a.view.Step {
	case wizard.StepWelcome, wizard.StepSummary:
		if key == "enter" {
			return a.advance()
		}
	case wizard.StepLanguage, wizard.StepKeyboard, wizard.StepTimezone, wizard.StepDisk:
		return a.handleListKey(msg)
	case wizard.StepNetwork:
		return a.handleNetworkKey(msg)
	case wizard.StepUser:
		return a.handleFormKey(msg)
	case wizard.StepComplete:
		return a.handleCompleteKey(msg)
	}
	return nil
}

func (a *App) handleListKey(msg tea.KeyPressMsg) tea.Cmd {
	step := a.view.Step
	l := a.lists[step]
	key := msg.String()

	if l.searching {
		switch key {
		case "up":
			l.move(-1)
		case "down":
			l.move(1)
		case "enter":
			l.stopSearch()
			return a.choose(step, l)
		default:
			return l.updateSearch(msg)
		}
		return nil
	}

	switch key {
	case "up", "k":
		l.move(-1)
	case "down", "j":
		l.move(1)
	case "/":
		return l.startSearch()
	case "p":
		if step == wizard.StepDisk {
			mode := wizard.PartitionManual
			if a.view.Form.Partitioning == wizard.PartitionManual {
				mode = wizard.PartitionAuto
			}
			a.sess.SetPartitioning(mode)
			a.refresh()
		}
	case "enter", "space":
		return a.choose(step, l)
	}
	return nil
}

// choose selects the highlighted item, or advances when it is already the
// selection.
func (a *App) choose(step wizard.StepID, l *choiceList) tea.Cmd {
	it, ok := l.current()
	if !ok {
		return nil
	}
	if a.view.Choices[step].Selected == it.ID {
		return a.advance()
	}
	if err := a.sess.Select(step, it.ID); err != nil {
		a.log.Warn("select %s: %v", step, err)
	}
	a.refresh()
	return nil
}

func (a *App) handleNetworkKey(msg tea.KeyPressMsg) tea.Cmd {
	l := a.lists[wizard.StepNetwork]
	switch msg.String() {
	case "up", "k":
		l.move(-1)
	case "down", "j":
		l.move(1)
	case "s":
		return a.advance()
	case "enter":
		it, ok := l.current()
		if !ok {
			return a.advance()
		}
		if it.ID == a.view.Connected {
			return a.advance()
		}
		if a.secured(it.ID) {
			a.passwordFor = it.ID
			a.password.SetValue("")
			return a.password.Focus()
		}
		return a.connect(it.ID, "")
	}
	return nil
}

func (a *App) secured(ssid string) bool {
	for _, n := range a.view.Networks {
		if n.SSID == ssid {
			return n.Secured()
		}
	}
	return false
}

func (a *App) connect(ssid, password string) tea.Cmd {
	return a.run("connect", func(ctx context.Context) error {
		res, err := a.sess.ConnectNetwork(ctx, ssid, password)
		if err == nil && !res.Success {
			err = errors.New(res.Message)
		}
		return err
	})
}

func (a *App) handlePasswordKey(msg tea.KeyPressMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		a.closePassword()
		return nil
	case "enter":
		if a.pending {
			return nil
		}
		return a.connect(a.passwordFor, a.password.Value())
	}
	var cmd tea.Cmd
	a.password, cmd = a.password.Update(msg)
	return cmd
}

func (a *App) closePassword() {
	a.passwordFor = ""
	a.password.Blur()
	a.password.SetValue("")
}

func (a *App) handleFormKey(msg tea.KeyPressMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "down":
		return a.form.focusOn(1)
	case "shift+tab", "up":
		return a.form.focusOn(-1)
	case "enter":
		if a.form.last() || a.view.CanAdvance {
			return a.advance()
		}
		return a.form.focusOn(1)
	}

	value, changed, cmd := a.form.update(msg)
	if changed {
		if err := a.sess.SetField(a.form.field(), value); err != nil {
			a.log.Warn("set %s: %v", a.form.field(), err)
		}
		a.refresh()
	}
	return cmd
}

func (a *App) handleCompleteKey(msg tea.KeyPressMsg) tea.Cmd {
	switch msg.String() {
	case "left", "right", "tab", "shift+tab", "h", "l":
		a.rebootLater = !a.rebootLater
	case "enter":
		if a.rebootLater {
			a.quitting = true
			return tea.Quit
		}
		return a.run("reboot", a.sess.Reboot)
	}
	return nil
}

// Rebooting reports whether a reboot was requested before quitting.
func (a *App) Rebooting() bool { return a.rebooting }
