package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/twinaos/installer/internal/installer"
)

var serveFlags struct {
	listen      string
	natsURL     string
	install     string
	metricsAddr string
	dataDir     string
	failAt      string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulated provisioning backend",
	Long: `Run only the provisioning backend. Wizards started elsewhere with
--nats-url pointing at --listen use it for disks, networks, configuration
and installation runs.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.listen, "listen", "127.0.0.1:4222", "Address of the embedded NATS server")
	serveCmd.Flags().StringVar(&serveFlags.natsURL, "nats-url", "", "Answer on an external NATS server instead of an embedded one")
	serveCmd.Flags().StringVar(&serveFlags.install, "install", "", "Name scoping the persisted install state")
	serveCmd.Flags().StringVar(&serveFlags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	serveCmd.Flags().StringVar(&serveFlags.dataDir, "data-dir", "", "Data directory for NATS storage")
	serveCmd.Flags().StringVar(&serveFlags.failAt, "fail-at", "", "Fail simulated installs at a phase")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("nats-url") {
		cfg.NATSURL = serveFlags.natsURL
	}
	if flags.Changed("install") {
		cfg.Install = serveFlags.install
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = serveFlags.dataDir
	}
	if flags.Changed("fail-at") {
		cfg.Simulation.FailAt = serveFlags.failAt
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return installer.Serve(ctx, cfg, installer.ServeOptions{
		ListenAddr:  serveFlags.listen,
		MetricsAddr: serveFlags.metricsAddr,
	})
}
