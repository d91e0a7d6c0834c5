// Package installer wires the wizard session to its backend over NATS and
// runs it in the terminal UI or unattended.
package installer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/hashicorp/go-multierror"
	natsserver "github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/twinaos/installer/internal/backend"
	"github.com/twinaos/installer/internal/catalog"
	"github.com/twinaos/installer/internal/config"
	"github.com/twinaos/installer/internal/gateway"
	"github.com/twinaos/installer/internal/logger"
	"github.com/twinaos/installer/internal/mcpserver"
	"github.com/twinaos/installer/internal/nats"
	"github.com/twinaos/installer/internal/store"
	"github.com/twinaos/installer/internal/tui"
	"github.com/twinaos/installer/internal/wizard"
)

// Options holds per-run settings that are not part of the config file.
type Options struct {
	// Answers runs the wizard unattended when set.
	Answers *Answers
	// MCPAddr starts the MCP server on this address when set.
	MCPAddr string
	Out     io.Writer
	In      io.Reader
}

// Installer owns the NATS connection, the embedded backend (when it runs
// its own server) and the wizard session.
type Installer struct {
	cfg  *config.Config
	opts Options
	log  *logger.Logger

	ns       *natsserver.Server // nil when connected to an external server
	nc       *natsgo.Conn
	js       jetstream.JetStream
	store    *store.Store
	backend  *backend.Service
	client   *gateway.Client
	session  *wizard.Session
	mcp      *mcpserver.Server
	embedded bool
	stopped  bool
}

func New(cfg *config.Config, opts Options) (*Installer, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	return &Installer{cfg: cfg, opts: opts, log: logger.Default.With("installer")}, nil
}

// Start connects to NATS, starts the simulated backend when the server is
// embedded, and prepares the session.
func (i *Installer) Start(ctx context.Context) error {
	i.log.Info("starting installer for install %q", i.cfg.Install)

	if err := i.ensureNATS(); err != nil {
		return fmt.Errorf("failed to ensure NATS: %w", err)
	}
	if err := i.setupJetStream(ctx); err != nil {
		return fmt.Errorf("failed to setup JetStream: %w", err)
	}

	if i.embedded {
		i.backend = NewBackend(i.nc, i.js, i.store, i.cfg, nil)
		if err := i.backend.Start(ctx); err != nil {
			return fmt.Errorf("failed to start backend: %w", err)
		}
	}

	// A configured zero means no settle pause at all.
	settle := i.cfg.SettleDelay
	if settle == 0 {
		settle = -1
	}
	i.client = gateway.NewClient(i.nc, i.js, i.cfg.RequestTimeout)
	i.session = wizard.NewSession(i.client, wizard.Options{
		SettleDelay:     settle,
		DefaultHostname: i.cfg.DefaultHostname,
		Languages:       catalog.LanguageItems(),
		Keyboards:       catalog.LayoutItems(),
		Timezones:       catalog.TimezoneItems(),
	})

	if i.opts.MCPAddr != "" {
		i.mcp = mcpserver.New(i.session)
		addr, err := i.mcp.Start(ctx, i.opts.MCPAddr)
		if err != nil {
			return fmt.Errorf("failed to start MCP server: %w", err)
		}
		i.log.Info("MCP server listening on http://%s/mcp", addr)
	}
	return nil
}

// Session is nil before Start.
func (i *Installer) Session() *wizard.Session { return i.session }

// Run drives the session until the user quits or the unattended run ends.
func (i *Installer) Run(ctx context.Context) error {
	i.session.Start(ctx)
	if i.opts.Answers != nil {
		return RunUnattended(ctx, i.session, i.opts.Answers, i.opts.Out)
	}

	app := tui.NewApp(ctx, i.session, tui.Options{DefaultHostname: i.cfg.DefaultHostname})
	program := tea.NewProgram(app,
		tea.WithContext(ctx),
		tea.WithInput(i.opts.In),
		tea.WithOutput(i.opts.Out),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("TUI: %w", err)
	}
	return nil
}

// Stop shuts everything down in reverse order and returns the combined
// error. It is safe to call more than once.
func (i *Installer) Stop() error {
	if i.stopped {
		return nil
	}
	i.stopped = true
	i.log.Info("stopping installer")

	var result *multierror.Error
	if i.mcp != nil {
		if err := i.mcp.Stop(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if i.session != nil {
		if err := i.session.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing session: %w", err))
		}
	}
	if i.backend != nil {
		i.backend.Stop()
	}
	if err := nats.Shutdown(i.nc, i.ns); err != nil {
		result = multierror.Append(result, fmt.Errorf("NATS shutdown failed: %w", err))
	}
	i.nc, i.ns = nil, nil
	return result.ErrorOrNil()
}

// ensureNATS connects to the configured server, or starts an embedded one
// under the data directory when none is configured.
func (i *Installer) ensureNATS() error {
	if i.cfg.NATSURL != "" {
		nc, err := nats.Connect(i.cfg.NATSURL, "twinaos-wizard")
		if err != nil {
			return err
		}
		i.log.Info("connected to NATS at %s", i.cfg.NATSURL)
		i.nc = nc
		return nil
	}

	dataDir := filepath.Join(i.cfg.DataDir, "nats")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create NATS data directory: %w", err)
	}
	ns, err := nats.StartEmbeddedNATS(nats.ServerOptions{DataDir: dataDir})
	if err != nil {
		return fmt.Errorf("failed to start NATS server: %w", err)
	}
	nc, err := nats.ConnectInProcess(ns, "twinaos-wizard")
	if err != nil {
		ns.Shutdown()
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	i.ns, i.nc, i.embedded = ns, nc, true
	return nil
}

func (i *Installer) setupJetStream(ctx context.Context) error {
	js, err := nats.CreateJetStream(i.nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	stream, err := nats.SetupStream(ctx, js)
	if err != nil {
		return fmt.Errorf("failed to setup stream: %w", err)
	}
	i.js = js
	i.store = store.NewStore(js, stream)
	return nil
}

// NewBackend builds the simulated backend from cfg.
func NewBackend(nc *natsgo.Conn, js jetstream.JetStream, st *store.Store, cfg *config.Config, m *backend.Metrics) *backend.Service {
	return backend.New(nc, js, st, backend.Options{
		Install:         cfg.Install,
		Inventory:       cfg.Inventory,
		DefaultHostname: cfg.DefaultHostname,
		Provisioner: backend.Simulator{
			StageDelay: cfg.Simulation.StageDelay,
			FailAt:     cfg.Simulation.FailAt,
		},
		Rebooter:    backend.CommandRebooter{Command: cfg.RebootCommand},
		RebootDelay: cfg.RebootDelay,
		PostInstall: cfg.PostInstall,
		HookDir:     cfg.DataDir,
		Metrics:     m,
	})
}
