package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/twinaos/installer/internal/installer"
)

var runFlags struct {
	answers  string
	natsURL  string
	dataDir  string
	mcpAddr  string
	install  string
	settle   time.Duration
	failAt   string
	hostname string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the installation wizard",
	Long: `Run the installation wizard in the terminal.

With --answers the wizard runs unattended from a YAML answers file and
prints progress to stdout instead of showing the TUI.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runFlags.answers, "answers", "a", "", "Answers file for an unattended install")
	runCmd.Flags().StringVar(&runFlags.natsURL, "nats-url", "", "Connect to an external backend instead of the embedded one")
	runCmd.Flags().StringVar(&runFlags.dataDir, "data-dir", "", "Data directory for NATS storage")
	runCmd.Flags().StringVar(&runFlags.install, "install", "", "Name scoping the persisted install state")
	runCmd.Flags().StringVar(&runFlags.mcpAddr, "mcp", "", "Expose the wizard over MCP on this address (e.g. 127.0.0.1:8765)")
	runCmd.Flags().DurationVar(&runFlags.settle, "settle-delay", 0, "Pause between 100% and the completion screen")
	runCmd.Flags().StringVar(&runFlags.failAt, "fail-at", "", "Make the simulated backend fail at a phase")
	runCmd.Flags().StringVar(&runFlags.hostname, "hostname", "", "Default hostname suggested to the user")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("nats-url") {
		cfg.NATSURL = runFlags.natsURL
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = runFlags.dataDir
	}
	if flags.Changed("install") {
		cfg.Install = runFlags.install
	}
	if flags.Changed("settle-delay") {
		cfg.SettleDelay = runFlags.settle
	}
	if flags.Changed("fail-at") {
		cfg.Simulation.FailAt = runFlags.failAt
	}
	if flags.Changed("hostname") {
		cfg.DefaultHostname = runFlags.hostname
	}

	opts := installer.Options{
		MCPAddr: runFlags.mcpAddr,
		Out:     cmd.OutOrStdout(),
		In:      cmd.InOrStdin(),
	}
	if runFlags.answers != "" {
		a, err := installer.LoadAnswers(runFlags.answers)
		if err != nil {
			return err
		}
		opts.Answers = a
	}

	inst, err := installer.New(cfg, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := inst.Start(ctx); err != nil {
		_ = inst.Stop()
		return fmt.Errorf("failed to start installer: %w", err)
	}
	defer func() {
		if err := inst.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		}
	}()

	if err := inst.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
