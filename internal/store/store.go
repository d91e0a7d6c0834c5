// Package store persists install state as an append-only JetStream event log
// and rebuilds it by reducing the log.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/twinaos/installer/internal/logger"
	"github.com/twinaos/installer/internal/nats"
)

// Install status values.
const (
	StatusReady      = "ready"
	StatusInstalling = "installing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Event is one record of the install log.
type Event struct {
	ID        string          `json:"id"` // stream sequence when not set by the publisher
	Timestamp time.Time       `json:"timestamp"`
	Install   string          `json:"install"`
	Type      string          `json:"type"`   // config, run
	Action    string          `json:"action"` // merge, start, progress, complete, fail
	Meta      json.RawMessage `json:"meta,omitempty"`
	Data      string          `json:"data,omitempty"`
}

// Store manages install state through JetStream event sourcing.
type Store struct {
	js     jetstream.JetStream
	stream jetstream.Stream
	log    *logger.Logger
}

func NewStore(js jetstream.JetStream, stream jetstream.Stream) *Store {
	return &Store{
		js:     js,
		stream: stream,
		log:    logger.Default.With("store"),
	}
}

// PublishEvent appends an event to twinaos.state.{install}.{type}.
func (s *Store) PublishEvent(ctx context.Context, event Event) (*jetstream.PubAck, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := nats.SubjectForState(event.Install, event.Type)
	s.log.Debug("publishing event: install=%s type=%s action=%s", event.Install, event.Type, event.Action)

	ack, err := s.js.Publish(ctx, subject, data)
	if err != nil {
		s.log.Error("failed to publish event to subject %s: %v", subject, err)
		return nil, fmt.Errorf("failed to publish event: %w", err)
	}
	return ack, nil
}

// State is the reduced view of an install.
type State struct {
	Install    string         `json:"install"`
	Config     map[string]any `json:"config"`
	Status     string         `json:"status"`
	Progress   int            `json:"progress"`
	Message    string         `json:"message,omitempty"`
	Error      string         `json:"error,omitempty"`
	RunID      string         `json:"run_id,omitempty"`
	StartedAt  time.Time      `json:"started_at,omitzero"`
	FinishedAt time.Time      `json:"finished_at,omitzero"`
	Runs       int            `json:"runs"`
}

func newState(install string) *State {
	return &State{
		Install: install,
		Config:  make(map[string]any),
		Status:  StatusReady,
	}
}

// Redacted returns a copy safe to publish: credential values are masked.
func (st *State) Redacted() *State {
	cp := *st
	cp.Config = maps.Clone(st.Config)
	if _, ok := cp.Config["password"]; ok {
		cp.Config["password"] = "********"
	}
	return &cp
}

// Apply applies an event to the state.
func (st *State) Apply(event Event) {
	switch event.Type {
	case nats.StateConfig:
		st.applyConfigEvent(event)
	case nats.StateRun:
		st.applyRunEvent(event)
	}
}

func (st *State) applyConfigEvent(event Event) {
	if event.Action != "merge" {
		return
	}
	var fragment map[string]any
	if err := json.Unmarshal(event.Meta, &fragment); err != nil {
		return
	}
	// Shallow merge: later keys win, earlier keys are never removed.
	maps.Copy(st.Config, fragment)
}

func (st *State) applyRunEvent(event Event) {
	var meta struct {
		RunID   string `json:"run_id"`
		Percent int    `json:"percent"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(event.Meta, &meta)

	switch event.Action {
	case "start":
		st.RunID = meta.RunID
		st.Status = StatusInstalling
		st.Progress = 0
		st.Message = ""
		st.Error = ""
		st.StartedAt = event.Timestamp
		st.FinishedAt = time.Time{}
		st.Runs++
	case "progress":
		if meta.RunID != st.RunID {
			return
		}
		st.Progress = meta.Percent
		st.Message = meta.Message
	case "complete":
		if meta.RunID != st.RunID {
			return
		}
		st.Status = StatusCompleted
		st.Progress = 100
		st.FinishedAt = event.Timestamp
	case "fail":
		if meta.RunID != st.RunID {
			return
		}
		st.Status = StatusError
		st.Error = meta.Error
		st.FinishedAt = event.Timestamp
	}
}

// LoadState rebuilds the install state from its event log.
func (s *Store) LoadState(ctx context.Context, install string) (*State, error) {
	consumer, err := s.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject:     nats.SubjectForInstall(install),
		DeliverPolicy:     jetstream.DeliverAllPolicy,
		AckPolicy:         jetstream.AckExplicitPolicy,
		InactiveThreshold: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	state := newState(install)

	const batchSize = 1000
	malformed := 0
	total := 0
	for {
		msgs, err := consumer.FetchNoWait(batchSize)
		if err != nil {
			break
		}

		count := 0
		for msg := range msgs.Messages() {
			count++
			total++
			var event Event
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				malformed++
				_ = msg.Ack()
				continue
			}
			if event.ID == "" {
				if meta, err := msg.Metadata(); err == nil {
					event.ID = fmt.Sprintf("%d", meta.Sequence.Stream)
				}
			}
			state.Apply(event)
			_ = msg.Ack()
		}

		if count < batchSize {
			break
		}
	}

	if malformed > 0 {
		s.log.Warn("skipped %d malformed events while loading %s", malformed, install)
	}
	s.log.Debug("state loaded: install=%s events=%d status=%s", install, total, state.Status)
	return state, nil
}
