package backend

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/twinaos/installer/internal/logger"
)

// Provisioner performs an installation, reporting progress as it goes.
type Provisioner interface {
	Provision(ctx context.Context, cfg map[string]any, report func(percent int, message string)) error
}

type stage struct {
	phase   string
	percent int
	message string
	failure string
}

var stages = []stage{
	{phase: "partition", percent: 10, message: "Partitioning disk...", failure: "Partitioning failed"},
	{phase: "system", percent: 30, message: "Installing base system...", failure: "System installation failed"},
	{phase: "user-create", percent: 70, message: "Creating user account...", failure: "User creation failed"},
	{phase: "finalize", percent: 90, message: "Finalizing installation...", failure: "Finalization failed"},
}

// CompletedMessage accompanies the final 100% report.
const CompletedMessage = "Installation completed successfully!"

// Simulator walks through the installation stages without touching disks.
// Each stage is announced before it runs, so a failing stage still shows up
// as the last progress report.
type Simulator struct {
	StageDelay time.Duration
	// FailAt names the phase that fails instead of running.
	FailAt string
}

func (s Simulator) Provision(ctx context.Context, cfg map[string]any, report func(int, string)) error {
	for _, st := range stages {
		report(st.percent, st.message)
		if err := s.runStage(ctx, st, cfg); err != nil {
			return fmt.Errorf("%s: %w", st.failure, err)
		}
	}
	report(100, CompletedMessage)
	return nil
}

func (s Simulator) runStage(ctx context.Context, st stage, cfg map[string]any) error {
	if st.phase == "partition" && partitionMode(cfg) == "manual" {
		return errors.New("manual partitioning not implemented")
	}
	if st.phase == s.FailAt {
		return fmt.Errorf("simulated fault on %v", cfg["disk"])
	}
	return sleep(ctx, s.StageDelay)
}

// partitionMode reads {"partitioning": {"mode": ...}} from a decoded config.
func partitionMode(cfg map[string]any) string {
	p, _ := cfg["partitioning"].(map[string]any)
	mode, _ := p["mode"].(string)
	return mode
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Rebooter restarts the machine.
type Rebooter interface {
	Reboot(ctx context.Context) error
}

// CommandRebooter runs a command such as "systemctl reboot". An empty
// command only logs.
type CommandRebooter struct {
	Command string
}

func (r CommandRebooter) Reboot(ctx context.Context) error {
	fields := strings.Fields(r.Command)
	if len(fields) == 0 {
		logger.Info("reboot requested (no reboot_command configured, skipping)")
		return nil
	}
	out, err := exec.CommandContext(ctx, fields[0], fields[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("running %q: %w: %s", r.Command, err, strings.TrimSpace(string(out)))
	}
	return nil
}
