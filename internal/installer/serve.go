package installer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	natsserver "github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/twinaos/installer/internal/backend"
	"github.com/twinaos/installer/internal/config"
	"github.com/twinaos/installer/internal/logger"
	"github.com/twinaos/installer/internal/nats"
	"github.com/twinaos/installer/internal/store"
)

// ServeOptions configures a backend-only process.
type ServeOptions struct {
	// ListenAddr is where the embedded NATS server accepts wizards when no
	// nats_url is configured.
	ListenAddr string
	// MetricsAddr serves /metrics when set.
	MetricsAddr string
	// Ready, when set, receives the service once it is answering.
	Ready func(*backend.Service)
}

// Serve runs the simulated backend until ctx is done.
func Serve(ctx context.Context, cfg *config.Config, opts ServeOptions) (err error) {
	log := logger.Default.With("serve")
	if err := cfg.Validate(); err != nil {
		return err
	}

	var (
		ns *natsserver.Server
		nc *natsgo.Conn
	)
	if cfg.NATSURL != "" {
		if nc, err = nats.Connect(cfg.NATSURL, "twinaos-backend"); err != nil {
			return err
		}
	} else {
		dataDir := filepath.Join(cfg.DataDir, "nats")
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("failed to create NATS data directory: %w", err)
		}
		if ns, err = nats.StartEmbeddedNATS(nats.ServerOptions{DataDir: dataDir, ListenAddr: opts.ListenAddr}); err != nil {
			return fmt.Errorf("failed to start NATS server: %w", err)
		}
		if nc, err = nats.ConnectInProcess(ns, "twinaos-backend"); err != nil {
			ns.Shutdown()
			return err
		}
		log.Info("NATS listening on %s", ns.ClientURL())
	}
	defer func() {
		if serr := nats.Shutdown(nc, ns); serr != nil {
			err = multierror.Append(err, serr)
		}
	}()

	js, err := nats.CreateJetStream(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}
	stream, err := nats.SetupStream(ctx, js)
	if err != nil {
		return fmt.Errorf("failed to setup stream: %w", err)
	}

	metrics := backend.NewMetrics()
	svc := NewBackend(nc, js, store.NewStore(js, stream), cfg, metrics)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	var srv *http.Server
	if opts.MetricsAddr != "" {
		ln, err := net.Listen("tcp", opts.MetricsAddr)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server: %v", err)
			}
		}()
		log.Info("metrics on http://%s/metrics", ln.Addr())
	}

	if opts.Ready != nil {
		opts.Ready(svc)
	}
	<-ctx.Done()
	log.Info("shutting down")

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if serr := srv.Shutdown(sctx); serr != nil {
			err = multierror.Append(err, serr)
		}
	}
	return err
}
