package installer

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twinaos/installer/internal/config"
	"github.com/twinaos/installer/internal/store"
	"github.com/twinaos/installer/internal/wizard"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.SettleDelay = time.Millisecond
	cfg.RebootDelay = 0
	cfg.Simulation.StageDelay = 0
	return cfg
}

func testAnswers() *Answers {
	a := &Answers{
		Network: &NetworkAnswer{SSID: "twina-lab", Password: "twinaos123"},
		Disk:    "/dev/sda",
		User:    UserAnswer{FullName: "Ada Lovelace", Password: "Analytical#1"},
	}
	a.applyDefaults()
	return a
}

func startInstaller(t *testing.T, cfg *config.Config, a *Answers, out *bytes.Buffer) *Installer {
	t.Helper()
	inst, err := New(cfg, Options{Answers: a, Out: out})
	require.NoError(t, err)
	require.NoError(t, inst.Start(context.Background()))
	t.Cleanup(func() { require.NoError(t, inst.Stop()) })
	return inst
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Install = "a.b"
	_, err := New(cfg, Options{})
	require.ErrorContains(t, err, "invalid install name")
}

func TestRunUnattended_EndToEnd(t *testing.T) {
	var out bytes.Buffer
	cfg := testConfig(t)
	inst := startInstaller(t, cfg, testAnswers(), &out)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, inst.Run(ctx))

	sess := inst.Session()
	assert.Equal(t, wizard.StepComplete, sess.Current())

	cfgOut := sess.Config()
	assert.Equal(t, "en", cfgOut["language"])
	assert.Equal(t, "twina-lab", cfgOut["network"])
	assert.Equal(t, "/dev/sda", cfgOut["disk"])
	assert.Equal(t, "ada", cfgOut["username"])
	assert.Equal(t, "twinaos", cfgOut["hostname"])

	text := out.String()
	assert.Contains(t, text, "Summary:")
	assert.Contains(t, text, "Partitioning disk...")
	assert.Contains(t, text, "Installation completed successfully!")
	assert.Contains(t, text, "Installation complete.")

	st, err := inst.store.LoadState(ctx, cfg.Install)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, st.Status)
	assert.Equal(t, 100, st.Progress)
	assert.Equal(t, "Analytical#1", st.Config["password"])
}

func TestRunUnattended_ProvisioningFailure(t *testing.T) {
	var out bytes.Buffer
	cfg := testConfig(t)
	cfg.Simulation.FailAt = "system"
	inst := startInstaller(t, cfg, testAnswers(), &out)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := inst.Run(ctx)
	require.ErrorIs(t, err, ErrInstallFailed)
	assert.Contains(t, err.Error(), "System installation failed")
	assert.Equal(t, wizard.StepProgress, inst.Session().Current())
}

func TestRunUnattended_WrongWifiPassword(t *testing.T) {
	var out bytes.Buffer
	a := testAnswers()
	a.Network.Password = "wrong"
	inst := startInstaller(t, testConfig(t), a, &out)

	err := inst.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Network: connecting to twina-lab")
	assert.Equal(t, wizard.StepNetwork, inst.Session().Current())
}

func TestRunUnattended_UnknownDisk(t *testing.T) {
	var out bytes.Buffer
	a := testAnswers()
	a.Disk = "/dev/vdz"
	inst := startInstaller(t, testConfig(t), a, &out)

	err := inst.Run(context.Background())
	require.ErrorIs(t, err, wizard.ErrUnknownChoice)
	assert.Equal(t, wizard.StepDisk, inst.Session().Current())
}

func TestStop_Idempotent(t *testing.T) {
	inst, err := New(testConfig(t), Options{})
	require.NoError(t, err)
	require.NoError(t, inst.Start(context.Background()))
	require.NoError(t, inst.Stop())
	require.NoError(t, inst.Stop())
}
