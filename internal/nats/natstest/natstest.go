// Package natstest starts throwaway embedded NATS servers for tests.
package natstest

import (
	"context"
	"testing"

	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
	"github.com/twinaos/installer/internal/nats"
)

// Env is a running server with one connection and the installer stream.
type Env struct {
	Server *server.Server
	Conn   *natsgo.Conn
	JS     jetstream.JetStream
	Stream jetstream.Stream
}

// Start boots a server in t.TempDir and registers cleanup.
func Start(t *testing.T) *Env {
	t.Helper()

	srv, err := nats.StartEmbeddedNATS(nats.ServerOptions{DataDir: t.TempDir()})
	require.NoError(t, err)

	nc, err := nats.ConnectInProcess(srv, t.Name())
	require.NoError(t, err)

	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
		srv.WaitForShutdown()
	})

	js, err := nats.CreateJetStream(nc)
	require.NoError(t, err)

	stream, err := nats.SetupStream(context.Background(), js)
	require.NoError(t, err)

	return &Env{Server: srv, Conn: nc, JS: js, Stream: stream}
}

// Dial opens an extra in-process connection, closed on cleanup.
func (e *Env) Dial(t *testing.T, name string) *natsgo.Conn {
	t.Helper()
	nc, err := nats.ConnectInProcess(e.Server, name)
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}
