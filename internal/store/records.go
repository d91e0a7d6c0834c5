package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twinaos/installer/internal/nats"
)

// MergeConfig records a configuration fragment. Keys in the fragment replace
// earlier values; absent keys are kept.
func (s *Store) MergeConfig(ctx context.Context, install string, fragment map[string]any) error {
	if len(fragment) == 0 {
		return nil
	}
	meta, err := json.Marshal(fragment)
	if err != nil {
		return fmt.Errorf("failed to marshal config fragment: %w", err)
	}
	_, err = s.PublishEvent(ctx, Event{
		Install: install,
		Type:    nats.StateConfig,
		Action:  "merge",
		Meta:    meta,
	})
	if err != nil {
		return fmt.Errorf("failed to record config: %w", err)
	}
	return nil
}

// RecordRunStarted marks a new provisioning run as the current one.
func (s *Store) RecordRunStarted(ctx context.Context, install, runID string) error {
	return s.recordRun(ctx, install, "start", map[string]any{"run_id": runID})
}

func (s *Store) RecordRunProgress(ctx context.Context, install, runID string, percent int, message string) error {
	return s.recordRun(ctx, install, "progress", map[string]any{
		"run_id":  runID,
		"percent": percent,
		"message": message,
	})
}

func (s *Store) RecordRunCompleted(ctx context.Context, install, runID string) error {
	return s.recordRun(ctx, install, "complete", map[string]any{"run_id": runID})
}

func (s *Store) RecordRunFailed(ctx context.Context, install, runID, reason string) error {
	return s.recordRun(ctx, install, "fail", map[string]any{"run_id": runID, "error": reason})
}

func (s *Store) recordRun(ctx context.Context, install, action string, meta map[string]any) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", action, err)
	}
	_, err = s.PublishEvent(ctx, Event{
		Install: install,
		Type:    nats.StateRun,
		Action:  action,
		Meta:    raw,
	})
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", action, err)
	}
	return nil
}
