package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type report struct {
	percent int
	message string
}

func provision(t *testing.T, sim Simulator, cfg map[string]any) ([]report, error) {
	t.Helper()
	var got []report
	err := sim.Provision(context.Background(), cfg, func(p int, m string) {
		got = append(got, report{p, m})
	})
	return got, err
}

func TestSimulator_Completes(t *testing.T) {
	got, err := provision(t, Simulator{}, map[string]any{"disk": "/dev/sda"})
	require.NoError(t, err)
	require.Equal(t, []report{
		{10, "Partitioning disk..."},
		{30, "Installing base system..."},
		{70, "Creating user account..."},
		{90, "Finalizing installation..."},
		{100, CompletedMessage},
	}, got)
}

func TestSimulator_FailAt(t *testing.T) {
	tests := []struct {
		phase   string
		last    int
		message string
	}{
		{"partition", 10, "Partitioning failed: simulated fault on /dev/sda"},
		{"system", 30, "System installation failed: simulated fault on /dev/sda"},
		{"finalize", 90, "Finalization failed: simulated fault on /dev/sda"},
	}
	for _, tt := range tests {
		t.Run(tt.phase, func(t *testing.T) {
			got, err := provision(t, Simulator{FailAt: tt.phase}, map[string]any{"disk": "/dev/sda"})
			require.EqualError(t, err, tt.message)
			require.Equal(t, tt.last, got[len(got)-1].percent)
		})
	}
}

func TestSimulator_ManualPartitioning(t *testing.T) {
	cfg := map[string]any{
		"disk":         "/dev/sda",
		"partitioning": map[string]any{"mode": "manual"},
	}
	got, err := provision(t, Simulator{}, cfg)
	require.EqualError(t, err, "Partitioning failed: manual partitioning not implemented")
	require.Len(t, got, 1)
}

func TestSimulator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := Simulator{StageDelay: time.Hour}.Provision(ctx, map[string]any{}, func(int, string) {
		calls++
		cancel()
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestCommandRebooter(t *testing.T) {
	require.NoError(t, CommandRebooter{}.Reboot(context.Background()))
	require.NoError(t, CommandRebooter{Command: "true"}.Reboot(context.Background()))

	err := CommandRebooter{Command: "false"}.Reboot(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), `"false"`)
}
