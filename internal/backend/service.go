// Package backend answers the wizard's requests over NATS: step data,
// config persistence, provisioning runs, Wi-Fi and reboot.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/twinaos/installer/internal/config"
	"github.com/twinaos/installer/internal/gateway"
	"github.com/twinaos/installer/internal/hooks"
	"github.com/twinaos/installer/internal/logger"
	"github.com/twinaos/installer/internal/nats"
	"github.com/twinaos/installer/internal/store"
)

// ErrAlreadyRunning rejects a start while a run is in progress.
var ErrAlreadyRunning = errors.New("installation already running")

// Options configures a Service.
type Options struct {
	Install         string
	Inventory       config.Inventory
	DefaultHostname string
	Provisioner     Provisioner
	Rebooter        Rebooter
	RebootDelay     time.Duration
	// PostInstall runs in HookDir after provisioning succeeds and before
	// the final progress event is published.
	PostInstall []hooks.Hook
	HookDir     string
	// Metrics may be nil.
	Metrics *Metrics
}

// Service is the backend responder.
type Service struct {
	nc    *natsgo.Conn
	js    jetstream.JetStream
	store *store.Store
	opts  Options
	log   *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	subs    []*natsgo.Subscription
	running string
	reboot  *time.Timer
}

func New(nc *natsgo.Conn, js jetstream.JetStream, st *store.Store, opts Options) *Service {
	if opts.Install == "" {
		opts.Install = "default"
	}
	if opts.DefaultHostname == "" {
		opts.DefaultHostname = "twinaos"
	}
	if opts.Provisioner == nil {
		opts.Provisioner = Simulator{}
	}
	if opts.Rebooter == nil {
		opts.Rebooter = CommandRebooter{}
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	return &Service{
		nc:    nc,
		js:    js,
		store: st,
		opts:  opts,
		log:   logger.Default.With("backend"),
	}
}

// Metrics returns the service's collectors.
func (s *Service) Metrics() *Metrics { return s.opts.Metrics }

type handler func(ctx context.Context, data []byte) (any, error)

// Start subscribes the responders. Runs started later live until Stop.
func (s *Service) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	routes := []struct {
		subject string
		op      string
		h       handler
	}{
		{nats.SubjectStepData, "step", s.handleStepData},
		{nats.SubjectConfig, "config", s.handleConfig},
		{nats.SubjectInstallStart, "install_start", s.handleStart},
		{nats.SubjectWifiConnect, "wifi_connect", s.handleWifi},
		{nats.SubjectReboot, "reboot", s.handleReboot},
	}
	for _, r := range routes {
		sub, err := s.nc.QueueSubscribe(r.subject, nats.QueueGroup, s.serve(r.op, r.h))
		if err != nil {
			s.Stop()
			return fmt.Errorf("subscribing %s: %w", r.subject, err)
		}
		s.mu.Lock()
		s.subs = append(s.subs, sub)
		s.mu.Unlock()
	}
	if err := s.nc.Flush(); err != nil {
		s.Stop()
		return fmt.Errorf("flushing subscriptions: %w", err)
	}
	s.log.Info("serving install %q", s.opts.Install)
	return nil
}

// Stop unsubscribes, cancels a running provisioning and waits for it.
func (s *Service) Stop() {
	s.mu.Lock()
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil
	if s.reboot != nil {
		s.reboot.Stop()
	}
	s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Service) serve(op string, h handler) natsgo.MsgHandler {
	return func(msg *natsgo.Msg) {
		start := time.Now()
		ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
		defer cancel()

		out, err := h(ctx, msg.Data)
		s.opts.Metrics.recordRequest(op, err, time.Since(start))

		var reply []byte
		if err != nil {
			s.log.Warn("%s: %v", op, err)
			reply = gateway.Fail(err)
		} else if reply, err = gateway.OK(out); err != nil {
			reply = gateway.Fail(err)
		}
		if err := msg.Respond(reply); err != nil {
			s.log.Error("%s: responding: %v", op, err)
		}
	}
}

func (s *Service) handleStepData(_ context.Context, data []byte) (any, error) {
	var req gateway.StepDataRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	out := gateway.StepData{Step: req.Step}
	switch req.Step {
	case "disk":
		out.Disks = make([]gateway.Disk, 0, len(s.opts.Inventory.Disks))
		for _, d := range s.opts.Inventory.Disks {
			out.Disks = append(out.Disks, gateway.Disk{Name: d.Name, Path: d.Path, Model: d.Model, SizeBytes: d.SizeBytes})
		}
	case "network":
		out.Networks = make([]gateway.Network, 0, len(s.opts.Inventory.Networks))
		for _, n := range s.opts.Inventory.Networks {
			out.Networks = append(out.Networks, gateway.Network{SSID: n.SSID, Signal: n.Signal, Security: n.Security})
		}
	}
	return out, nil
}

func (s *Service) handleConfig(ctx context.Context, data []byte) (any, error) {
	var req gateway.PersistRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return nil, s.store.MergeConfig(ctx, s.opts.Install, req.Config)
}

func (s *Service) handleWifi(_ context.Context, data []byte) (any, error) {
	var req gateway.ConnectRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	for _, n := range s.opts.Inventory.Networks {
		if n.SSID != req.SSID {
			continue
		}
		secured := gateway.Network{Security: n.Security}.Secured()
		if secured && req.Password != n.Password {
			return gateway.ConnectResult{SSID: n.SSID, Message: "Secrets were required, but not provided"}, nil
		}
		s.log.Info("connected to %s", n.SSID)
		return gateway.ConnectResult{SSID: n.SSID, Success: true, Message: "Device successfully activated"}, nil
	}
	return nil, fmt.Errorf("no network with SSID %q found", req.SSID)
}

func (s *Service) handleReboot(context.Context, []byte) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reboot != nil {
		s.reboot.Stop()
	}
	s.log.Info("rebooting in %s", s.opts.RebootDelay)
	s.reboot = time.AfterFunc(s.opts.RebootDelay, func() {
		ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
		defer cancel()
		if err := s.opts.Rebooter.Reboot(ctx); err != nil {
			s.log.Error("reboot: %v", err)
		}
	})
	return map[string]string{"message": "Rebooting..."}, nil
}
