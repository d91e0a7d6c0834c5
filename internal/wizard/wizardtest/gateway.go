// Package wizardtest provides an in-memory backend for driving a wizard
// Session in tests.
package wizardtest

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twinaos/installer/internal/gateway"
	"github.com/twinaos/installer/internal/wizard"
)

// Gateway records every call and answers from its fields. Error fields make
// the matching call fail.
type Gateway struct {
	mu sync.Mutex

	Disks    []gateway.Disk
	Networks []gateway.Network
	// Passwords maps secured SSIDs to the password that joins them.
	Passwords map[string]string

	FetchErr     error
	PersistErr   error
	StartErr     error
	SubscribeErr error
	ConnectErr   error
	RebootErr    error

	fetched   []string
	persisted []map[string]any
	started   []map[string]any
	reboots   int
	streams   []*Stream
}

// NewGateway returns a gateway reporting two disks and two networks.
func NewGateway() *Gateway {
	return &Gateway{
		Disks: []gateway.Disk{
			{Name: "nvme0n1", Path: "/dev/nvme0n1", Model: "Samsung SSD 980", SizeBytes: 512110190592},
			{Name: "sda", Path: "/dev/sda", SizeBytes: 1000204886016},
		},
		Networks: []gateway.Network{
			{SSID: "twina-lab", Signal: 82, Security: "WPA2"},
			{SSID: "guest", Signal: 64},
		},
		Passwords: map[string]string{"twina-lab": "twinaos123"},
	}
}

func (g *Gateway) FetchStepData(_ context.Context, step string) (gateway.StepData, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetched = append(g.fetched, step)
	if g.FetchErr != nil {
		return gateway.StepData{}, g.FetchErr
	}
	out := gateway.StepData{Step: step}
	switch step {
	case string(wizard.StepDisk):
		out.Disks = append([]gateway.Disk(nil), g.Disks...)
	case string(wizard.StepNetwork):
		out.Networks = append([]gateway.Network(nil), g.Networks...)
	}
	return out, nil
}

func (g *Gateway) PersistConfig(_ context.Context, fragment map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.persisted = append(g.persisted, maps.Clone(fragment))
	return g.PersistErr
}

func (g *Gateway) StartProvisioning(_ context.Context, config map[string]any) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.StartErr != nil {
		return "", g.StartErr
	}
	g.started = append(g.started, maps.Clone(config))
	return fmt.Sprintf("run-%d", len(g.started)), nil
}

func (g *Gateway) ConnectNetwork(_ context.Context, ssid, password string) (gateway.ConnectResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ConnectErr != nil {
		return gateway.ConnectResult{}, g.ConnectErr
	}
	if want, secured := g.Passwords[ssid]; secured && want != password {
		return gateway.ConnectResult{SSID: ssid, Message: "invalid password"}, nil
	}
	return gateway.ConnectResult{SSID: ssid, Success: true, Message: "connected"}, nil
}

func (g *Gateway) RequestReboot(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reboots++
	return g.RebootErr
}

func (g *Gateway) Subscribe(_ context.Context, _ string) (gateway.EventStream, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.SubscribeErr != nil {
		return nil, g.SubscribeErr
	}
	s := NewStream()
	g.streams = append(g.streams, s)
	return s, nil
}

// Fetched returns the steps whose data was requested, in order.
func (g *Gateway) Fetched() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.fetched...)
}

// Persisted returns every persisted fragment, in order.
func (g *Gateway) Persisted() []map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]map[string]any(nil), g.persisted...)
}

// Started returns the config of every successful start.
func (g *Gateway) Started() []map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]map[string]any(nil), g.started...)
}

func (g *Gateway) Reboots() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reboots
}

// Stream returns the latest subscription, or nil.
func (g *Gateway) Stream() *Stream {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.streams) == 0 {
		return nil
	}
	return g.streams[len(g.streams)-1]
}

// Stream is a hand-fed event stream.
type Stream struct {
	ch     chan gateway.Event
	mu     sync.Mutex
	closed bool
}

func NewStream() *Stream {
	return &Stream{ch: make(chan gateway.Event, 64)}
}

func (s *Stream) Events() <-chan gateway.Event { return s.ch }

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Send queues an event for the consumer.
func (s *Stream) Send(ev gateway.Event) { s.ch <- ev }

func Progress(percent int, message string) gateway.Event {
	return gateway.Event{Kind: gateway.KindProgress, Percent: percent, Message: message}
}

func Failure(message string) gateway.Event {
	return gateway.Event{Kind: gateway.KindError, Message: message}
}

// Languages, Keyboards and Timezones are small catalogs for sessions under
// test.
var (
	Languages = []wizard.Item{{ID: "en", Label: "English"}, {ID: "de", Label: "Deutsch"}}
	Keyboards = []wizard.Item{{ID: "us", Label: "US - English (US)"}, {ID: "de", Label: "DE - German"}}
	Timezones = []wizard.Item{{ID: "UTC", Label: "UTC"}, {ID: "Europe/Berlin", Label: "Europe/Berlin"}}
)

// NewSession builds a session over gw with the test catalogs.
func NewSession(gw *Gateway, settle time.Duration) *wizard.Session {
	return wizard.NewSession(gw, wizard.Options{
		SettleDelay: settle,
		Languages:   Languages,
		Keyboards:   Keyboards,
		Timezones:   Timezones,
	})
}

// FillStep enters valid input for the current step.
func FillStep(t *testing.T, s *wizard.Session) {
	t.Helper()
	switch step := s.Current(); step {
	case wizard.StepLanguage:
		require.NoError(t, s.Select(step, "en"))
	case wizard.StepKeyboard:
		require.NoError(t, s.Select(step, "us"))
	case wizard.StepTimezone:
		require.NoError(t, s.Select(step, "UTC"))
	case wizard.StepDisk:
		require.NoError(t, s.Select(step, "/dev/nvme0n1"))
	case wizard.StepUser:
		require.NoError(t, s.SetField(wizard.FieldFullName, "Ada Lovelace"))
		require.NoError(t, s.SetField(wizard.FieldPassword, "Analytical#1"))
		require.NoError(t, s.SetField(wizard.FieldConfirm, "Analytical#1"))
	}
}

// AdvanceTo fills and advances until the session reaches target.
func AdvanceTo(t *testing.T, s *wizard.Session, target wizard.StepID) {
	t.Helper()
	ctx := context.Background()
	for s.Current() != target {
		FillStep(t, s)
		require.NoError(t, s.Advance(ctx), "advancing from %s", s.Current())
	}
}
