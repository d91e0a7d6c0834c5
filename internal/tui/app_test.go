package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twinaos/installer/internal/wizard"
	"github.com/twinaos/installer/internal/wizard/wizardtest"
)

func init() {
	lipgloss.Writer.Profile = colorprofile.Ascii
}

func newTestApp(t *testing.T, gw *wizardtest.Gateway, at wizard.StepID) (*App, *wizard.Session) {
	t.Helper()
	sess := wizardtest.NewSession(gw, -1)
	t.Cleanup(func() { _ = sess.Close() })
	sess.Start(context.Background())
	wizardtest.AdvanceTo(t, sess, at)

	a := NewApp(context.Background(), sess, Options{DefaultHostname: "twinaos"})
	a.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	exec(t, a, a.prepareStep())
	return a, sess
}

// exec runs cmd and feeds back the results of session calls. Commands that
// do not finish quickly (timers, change watchers) are abandoned.
func exec(t *testing.T, a *App, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(50 * time.Millisecond):
		return
	}
	switch msg := msg.(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			exec(t, a, c)
		}
	case actionDoneMsg:
		_, next := a.Update(msg)
		exec(t, a, next)
	}
}

func press(t *testing.T, a *App, keys ...tea.KeyPressMsg) {
	t.Helper()
	for _, k := range keys {
		_, cmd := a.Update(k)
		exec(t, a, cmd)
	}
}

func typeText(t *testing.T, a *App, s string) {
	t.Helper()
	for _, r := range s {
		press(t, a, tea.KeyPressMsg{Code: r, Text: string(r)})
	}
}

var (
	keyEnter = tea.KeyPressMsg{Code: tea.KeyEnter}
	keyEsc   = tea.KeyPressMsg{Code: tea.KeyEscape}
	keyDown  = tea.KeyPressMsg{Code: tea.KeyDown}
	keyTab   = tea.KeyPressMsg{Code: tea.KeyTab}
	keyRight = tea.KeyPressMsg{Code: tea.KeyRight}
)

func char(r rune) tea.KeyPressMsg { return tea.KeyPressMsg{Code: r, Text: string(r)} }

func screen(a *App) string { return ansi.Strip(a.render()) }

func TestApp_Welcome(t *testing.T) {
	a, sess := newTestApp(t, wizardtest.NewGateway(), wizard.StepWelcome)

	out := screen(a)
	assert.Contains(t, out, "TwinaOS Installer")
	assert.Contains(t, out, "Step 1 of 10")
	assert.Contains(t, out, "Start →")

	press(t, a, keyEnter)
	assert.Equal(t, wizard.StepLanguage, sess.Current())
	assert.Contains(t, screen(a), "▸ Language")
	assert.Contains(t, screen(a), "✓ Welcome")
}

func TestApp_ListSelectThenAdvance(t *testing.T) {
	a, sess := newTestApp(t, wizardtest.NewGateway(), wizard.StepLanguage)

	press(t, a, keyDown, keyEnter)
	sel, ok := sess.Snapshot().Selection(wizard.StepLanguage)
	require.True(t, ok)
	assert.Equal(t, "de", sel.ID)
	assert.Equal(t, wizard.StepLanguage, sess.Current())
	assert.Contains(t, screen(a), "✓  Deutsch")
	_, stored := sess.Config().String("language")
	assert.False(t, stored, "selection reaches the config only on advance")

	// enter on the chosen item moves on
	press(t, a, keyEnter)
	assert.Equal(t, wizard.StepKeyboard, sess.Current())
	lang, _ := sess.Config().String("language")
	assert.Equal(t, "de", lang)
}

func TestApp_ListCannotAdvanceWithoutSelection(t *testing.T) {
	a, sess := newTestApp(t, wizardtest.NewGateway(), wizard.StepLanguage)

	press(t, a, tea.KeyPressMsg{Code: 'n', Mod: tea.ModCtrl})
	assert.Equal(t, wizard.StepLanguage, sess.Current())
}

func TestApp_KeyboardSearch(t *testing.T) {
	a, sess := newTestApp(t, wizardtest.NewGateway(), wizard.StepKeyboard)

	press(t, a, char('/'))
	typeText(t, a, "german")
	out := screen(a)
	assert.Contains(t, out, "DE - German")
	assert.NotContains(t, out, "US - English")

	press(t, a, keyEnter)
	sel, ok := sess.Snapshot().Selection(wizard.StepKeyboard)
	require.True(t, ok)
	assert.Equal(t, "de", sel.ID)
}

func TestApp_SearchEscClosesWithoutRetreat(t *testing.T) {
	a, sess := newTestApp(t, wizardtest.NewGateway(), wizard.StepTimezone)

	press(t, a, char('/'))
	typeText(t, a, "zzz")
	assert.Contains(t, screen(a), `No match for "zzz".`)

	press(t, a, keyEsc)
	assert.Equal(t, wizard.StepTimezone, sess.Current())

	press(t, a, keyEsc)
	assert.Equal(t, wizard.StepKeyboard, sess.Current())
}

func TestApp_DiskPartitioningToggle(t *testing.T) {
	a, sess := newTestApp(t, wizardtest.NewGateway(), wizard.StepDisk)

	press(t, a, keyEnter)
	out := screen(a)
	assert.Contains(t, out, "Selected: /dev/nvme0n1 (Samsung SSD 980, 477 GiB)")
	assert.Contains(t, out, "Automatic (erase disk)")

	press(t, a, char('p'))
	assert.Equal(t, wizard.PartitionManual, sess.Snapshot().Partitioning)
	assert.Contains(t, screen(a), "Partitioning: Manual")
}

func TestApp_NetworkPasswordPrompt(t *testing.T) {
	a, sess := newTestApp(t, wizardtest.NewGateway(), wizard.StepNetwork)

	press(t, a, keyEnter)
	assert.Contains(t, screen(a), "Password for twina-lab")

	typeText(t, a, "wrong")
	press(t, a, keyEnter)
	assert.Empty(t, sess.View().Connected)
	assert.Contains(t, screen(a), "Password for twina-lab", "prompt stays open after a failed attempt")

	press(t, a, keyEsc)
	assert.NotContains(t, screen(a), "Password for")
	assert.Equal(t, wizard.StepNetwork, sess.Current())

	press(t, a, keyEnter)
	typeText(t, a, "twinaos123")
	press(t, a, keyEnter)
	assert.Equal(t, "twina-lab", sess.View().Connected)
	assert.Contains(t, screen(a), "Connected to twina-lab")

	press(t, a, keyEnter)
	assert.Equal(t, wizard.StepDisk, sess.Current())
}

func TestApp_OpenNetworkSkipsPrompt(t *testing.T) {
	a, sess := newTestApp(t, wizardtest.NewGateway(), wizard.StepNetwork)

	press(t, a, keyDown, keyEnter)
	assert.Equal(t, "guest", sess.View().Connected)
}

func TestApp_NetworkSkip(t *testing.T) {
	a, sess := newTestApp(t, wizardtest.NewGateway(), wizard.StepNetwork)

	press(t, a, char('s'))
	assert.Equal(t, wizard.StepDisk, sess.Current())
}

func TestApp_UserForm(t *testing.T) {
	a, sess := newTestApp(t, wizardtest.NewGateway(), wizard.StepUser)

	typeText(t, a, "Grace Hopper")
	assert.Equal(t, "grace", sess.Snapshot().User.Username, "username follows the full name")

	press(t, a, keyTab, keyTab)
	typeText(t, a, "Cobol#1959")
	assert.Contains(t, screen(a), "Password strength:")
	assert.NotContains(t, screen(a), "Cobol#1959")

	press(t, a, keyTab)
	typeText(t, a, "Cobol#19")
	assert.Contains(t, screen(a), "✗ Passwords do not match")
	typeText(t, a, "59")
	assert.Contains(t, screen(a), "✓ Passwords match")

	press(t, a, keyEnter)
	assert.Equal(t, wizard.StepSummary, sess.Current())
	assert.Contains(t, screen(a), "Installing will erase nvme0n1.")
}

func TestApp_NoticeDismiss(t *testing.T) {
	gw := wizardtest.NewGateway()
	gw.ConnectErr = errors.New("backend down")
	a, sess := newTestApp(t, gw, wizard.StepNetwork)

	press(t, a, keyDown, keyEnter)
	require.NotNil(t, sess.View().Notice)
	assert.Contains(t, screen(a), "⚠ Connection error: backend down")

	press(t, a, keyEsc)
	assert.Nil(t, sess.View().Notice)
	assert.Equal(t, wizard.StepNetwork, sess.Current(), "esc only dismissed the notice")
}

func TestApp_ProgressAndComplete(t *testing.T) {
	gw := wizardtest.NewGateway()
	a, sess := newTestApp(t, gw, wizard.StepSummary)

	press(t, a, keyEnter)
	require.Equal(t, wizard.StepProgress, sess.Current())

	gw.Stream().Send(wizardtest.Progress(30, "Installing base system"))
	require.Eventually(t, func() bool { return sess.View().Progress.Percent == 30 }, time.Second, 5*time.Millisecond)
	a.Update(sessionChangedMsg{})
	out := screen(a)
	assert.Contains(t, out, "Installing base system")
	assert.Contains(t, out, "✓ Partitioning disk")

	// keys are ignored while provisioning
	press(t, a, keyEsc)
	assert.Equal(t, wizard.StepProgress, sess.Current())

	gw.Stream().Send(wizardtest.Progress(100, "Done"))
	require.Eventually(t, func() bool { return sess.Current() == wizard.StepComplete }, time.Second, 5*time.Millisecond)
	a.Update(sessionChangedMsg{})
	assert.Contains(t, screen(a), "Reboot now")

	press(t, a, keyEnter)
	assert.True(t, a.Rebooting())
	assert.Equal(t, 1, gw.Reboots())
}

func TestApp_RebootLater(t *testing.T) {
	gw := wizardtest.NewGateway()
	a, sess := newTestApp(t, gw, wizard.StepSummary)
	press(t, a, keyEnter)
	gw.Stream().Send(wizardtest.Progress(100, "Done"))
	require.Eventually(t, func() bool { return sess.Current() == wizard.StepComplete }, time.Second, 5*time.Millisecond)
	a.Update(sessionChangedMsg{})

	press(t, a, keyRight)
	_, cmd := a.Update(keyEnter)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.False(t, a.Rebooting())
	assert.Zero(t, gw.Reboots())
}

func TestApp_DebugPanel(t *testing.T) {
	a, _ := newTestApp(t, wizardtest.NewGateway(), wizard.StepKeyboard)

	assert.NotContains(t, screen(a), `"config"`)
	press(t, a, tea.KeyPressMsg{Code: 'd', Mod: tea.ModCtrl | tea.ModAlt})
	out := screen(a)
	assert.Contains(t, out, `"config"`)
	assert.Contains(t, out, `"language"`)
}
