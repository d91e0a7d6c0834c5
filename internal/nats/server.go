package nats

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/twinaos/installer/internal/logger"
)

// ServerOptions configures the embedded server.
type ServerOptions struct {
	// DataDir holds JetStream file storage.
	DataDir string
	// ListenAddr exposes the server on host:port. Empty keeps the server
	// in-process only.
	ListenAddr string
}

// StartEmbeddedNATS starts an embedded NATS server with JetStream enabled
// and waits until it accepts connections.
func StartEmbeddedNATS(opts ServerOptions) (*server.Server, error) {
	logger.Debug("Starting embedded NATS server with data dir: %s", opts.DataDir)

	sopts := &server.Options{
		ServerName: "twinaos-installer",
		JetStream:  true,
		StoreDir:   opts.DataDir,
		DontListen: opts.ListenAddr == "",
		NoSigs:     true,
	}
	if opts.ListenAddr != "" {
		host, portStr, err := net.SplitHostPort(opts.ListenAddr)
		if err != nil {
			return nil, fmt.Errorf("parsing listen address: %w", err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("parsing listen port: %w", err)
		}
		sopts.Host = host
		sopts.Port = port
	}

	ns, err := server.NewServer(sopts)
	if err != nil {
		logger.Error("Failed to create NATS server: %v", err)
		return nil, err
	}

	go ns.Start()

	if !ns.ReadyForConnections(4 * time.Second) {
		logger.Error("NATS server failed to start within 4s timeout")
		ns.Shutdown()
		return nil, errors.New("nats server failed to start within timeout")
	}

	logger.Debug("NATS server ready for connections")
	return ns, nil
}

// ConnectInProcess creates an in-process connection to the embedded NATS server.
func ConnectInProcess(ns *server.Server, name string) (*nats.Conn, error) {
	conn, err := nats.Connect("", nats.InProcessServer(ns), nats.Name(name))
	if err != nil {
		logger.Error("Failed to connect to NATS in-process: %v", err)
		return nil, err
	}
	logger.Debug("Connected %s to NATS in-process", name)
	return conn, nil
}

// Connect dials an external NATS server, retrying while the backend host
// comes up.
func Connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", url, err)
	}
	return conn, nil
}

// CreateJetStream creates a JetStream context from a NATS connection.
func CreateJetStream(nc *nats.Conn) (jetstream.JetStream, error) {
	return jetstream.New(nc)
}

// Shutdown drains the connection and then stops the server. Either may be nil.
func Shutdown(nc *nats.Conn, ns *server.Server) error {
	if nc != nil {
		drainDone := make(chan error, 1)
		go func() {
			drainDone <- nc.Drain()
		}()

		select {
		case err := <-drainDone:
			if err != nil {
				logger.Warn("NATS drain failed, forcing close: %v", err)
				nc.Close()
			}
		case <-time.After(2 * time.Second):
			logger.Warn("NATS drain timed out after 2s, forcing close")
			nc.Close()
		}
	}

	if ns != nil {
		ns.Shutdown()

		shutdownDone := make(chan struct{})
		go func() {
			ns.WaitForShutdown()
			close(shutdownDone)
		}()

		select {
		case <-shutdownDone:
			logger.Debug("NATS server shut down cleanly")
		case <-time.After(5 * time.Second):
			logger.Error("NATS server shutdown timed out after 5s")
			return errors.New("NATS server shutdown timed out")
		}
	}

	return nil
}
