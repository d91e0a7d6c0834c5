package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"time"

	"github.com/nats-io/nuid"
	"github.com/twinaos/installer/internal/gateway"
	"github.com/twinaos/installer/internal/hooks"
	"github.com/twinaos/installer/internal/nats"
	"github.com/twinaos/installer/internal/store"
)

var requiredKeys = []string{"disk", "username", "password"}

func (s *Service) handleStart(ctx context.Context, data []byte) (any, error) {
	var req gateway.StartRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	for _, key := range requiredKeys {
		if v, _ := req.Config[key].(string); v == "" {
			return nil, fmt.Errorf("missing required setting %q", key)
		}
	}

	s.mu.Lock()
	if s.running != "" {
		s.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	runID := nuid.Next()
	s.running = runID
	s.mu.Unlock()

	cfg := s.finalize(req.Config)
	if err := s.store.MergeConfig(ctx, s.opts.Install, cfg); err != nil {
		s.clearRun(runID)
		return nil, err
	}
	if err := s.store.RecordRunStarted(ctx, s.opts.Install, runID); err != nil {
		s.clearRun(runID)
		return nil, err
	}
	s.opts.Metrics.recordRunStarted()
	s.publishStatus(ctx, runID)

	s.wg.Add(1)
	go s.execute(runID, cfg)

	s.log.Info("run %s started on %v", runID, cfg["disk"])
	return gateway.StartResponse{RunID: runID}, nil
}

// finalize fills the settings the installer needs but the wizard may not
// have collected.
func (s *Service) finalize(in map[string]any) map[string]any {
	cfg := maps.Clone(in)
	if cfg == nil {
		cfg = map[string]any{}
	}
	defaults := map[string]string{
		"hostname": s.opts.DefaultHostname,
		"timezone": "UTC",
		"locale":   "en_US.UTF-8",
	}
	for k, v := range defaults {
		if cur, _ := cfg[k].(string); cur == "" {
			cfg[k] = v
		}
	}
	return cfg
}

func (s *Service) execute(runID string, cfg map[string]any) {
	defer s.wg.Done()
	defer s.clearRun(runID)

	ctx := s.ctx
	report := func(percent int, message string) {
		s.opts.Metrics.recordProgress(percent)
		s.publish(ctx, runID, nats.EventProgress, gateway.ProgressPayload{Progress: percent, Message: message})
		if err := s.store.RecordRunProgress(ctx, s.opts.Install, runID, percent, message); err != nil {
			s.log.Warn("run %s: recording progress: %v", runID, err)
		}
	}

	// With hooks configured, 100% is held back until they have run.
	var final *gateway.ProgressPayload
	relay := report
	if len(s.opts.PostInstall) > 0 {
		relay = func(percent int, message string) {
			if percent >= 100 {
				final = &gateway.ProgressPayload{Progress: percent, Message: message}
				return
			}
			report(percent, message)
		}
	}

	start := time.Now()
	err := s.opts.Provisioner.Provision(ctx, cfg, relay)
	if err == nil && len(s.opts.PostInstall) > 0 {
		err = s.runHooks(ctx, runID, cfg)
		if err == nil && final != nil {
			report(final.Progress, final.Message)
		}
	}
	s.opts.Metrics.recordRunFinished(err)

	// A cancelled service still records the outcome.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err != nil {
		s.log.Error("run %s failed after %s: %v", runID, time.Since(start), err)
		if rerr := s.store.RecordRunFailed(rctx, s.opts.Install, runID, err.Error()); rerr != nil {
			s.log.Warn("run %s: recording failure: %v", runID, rerr)
		}
		s.publish(rctx, runID, nats.EventError, gateway.ErrorPayload{Error: err.Error()})
	} else {
		s.log.Info("run %s completed in %s", runID, time.Since(start))
		if rerr := s.store.RecordRunCompleted(rctx, s.opts.Install, runID); rerr != nil {
			s.log.Warn("run %s: recording completion: %v", runID, rerr)
		}
	}
	s.publishStatus(rctx, runID)
}

func (s *Service) runHooks(ctx context.Context, runID string, cfg map[string]any) error {
	str := func(key string) string {
		v, _ := cfg[key].(string)
		return v
	}
	if s.opts.HookDir != "" {
		if err := os.MkdirAll(s.opts.HookDir, 0o755); err != nil {
			return fmt.Errorf("post-install hooks: %w", err)
		}
	}
	out, err := hooks.ExecuteAll(ctx, s.opts.PostInstall, s.opts.HookDir, hooks.Variables{
		RunID:    runID,
		Disk:     str("disk"),
		Username: str("username"),
		Hostname: str("hostname"),
	})
	if out != "" {
		s.log.Info("run %s: post-install output:\n%s", runID, out)
	}
	if err != nil {
		return fmt.Errorf("post-install hooks: %w", err)
	}
	return nil
}

func (s *Service) clearRun(runID string) {
	s.mu.Lock()
	if s.running == runID {
		s.running = ""
	}
	s.mu.Unlock()
}

// Running returns the id of the run in progress, if any.
func (s *Service) Running() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Service) publish(ctx context.Context, runID, kind string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("run %s: encoding %s event: %v", runID, kind, err)
		return
	}
	if _, err := s.js.Publish(ctx, nats.SubjectForRunEvent(runID, kind), data); err != nil {
		s.log.Warn("run %s: publishing %s event: %v", runID, kind, err)
	}
}

// publishStatus pushes the install state with credentials masked.
func (s *Service) publishStatus(ctx context.Context, runID string) {
	st, err := s.store.LoadState(ctx, s.opts.Install)
	if err != nil {
		s.log.Warn("run %s: loading state: %v", runID, err)
		return
	}
	s.publish(ctx, runID, nats.EventStatus, st.Redacted())
}

// State returns the persisted install state with credentials masked.
func (s *Service) State(ctx context.Context) (*store.State, error) {
	st, err := s.store.LoadState(ctx, s.opts.Install)
	if err != nil {
		return nil, err
	}
	return st.Redacted(), nil
}
