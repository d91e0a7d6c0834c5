// Package mcpserver exposes a wizard session as MCP tools over streamable
// HTTP so an agent can drive the installer.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/mark3labs/mcp-go/server"
	"github.com/twinaos/installer/internal/gateway"
	"github.com/twinaos/installer/internal/logger"
	"github.com/twinaos/installer/internal/wizard"
)

// Wizard is the part of a wizard session the tools drive.
type Wizard interface {
	View() wizard.View
	Select(step wizard.StepID, id string) error
	SetField(f wizard.Field, value string) error
	SetPartitioning(mode wizard.PartitionMode)
	Advance(ctx context.Context) error
	Retreat(ctx context.Context) error
	ConnectNetwork(ctx context.Context, ssid, password string) (gateway.ConnectResult, error)
	DismissNotice()
}

// Server is an embedded MCP HTTP server bound to one session.
type Server struct {
	wiz       Wizard
	mcpServer *server.MCPServer
	stdServer *http.Server
	addr      string
	mu        sync.Mutex
	log       *logger.Logger
}

// New creates a server for wiz. Nothing listens until Start.
func New(wiz Wizard) *Server {
	s := &Server{wiz: wiz, log: logger.Default.With("mcp")}
	s.mcpServer = server.NewMCPServer(
		"twinaos-installer",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

// Start listens on addr ("127.0.0.1:0" picks a free port) and returns the
// bound address.
func (s *Server) Start(ctx context.Context, addr string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdServer != nil {
		return "", errors.New("server already started")
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.addr = listener.Addr().String()

	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(s.mcpServer, server.WithStateLess(true)))
	s.stdServer = &http.Server{Handler: mux}

	// The goroutine keeps its own reference so Stop can clear the field.
	stdServer := s.stdServer
	go func() {
		if err := stdServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("server error: %v", err)
		}
	}()

	s.log.Debug("ready on %s", s.addr)
	return s.addr, nil
}

// Stop shuts the HTTP server down. Calling it on a stopped server is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdServer == nil {
		return nil
	}
	if err := s.stdServer.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("failed to stop MCP server: %w", err)
	}
	s.stdServer = nil
	s.log.Debug("stopped")
	return nil
}

// URL returns the MCP endpoint.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("http://%s/mcp", s.addr)
}
