package wizard

import (
	"context"
	"time"

	"github.com/twinaos/installer/internal/gateway"
)

// PhaseID names a stage of provisioning.
type PhaseID string

const (
	PhasePartition  PhaseID = "partition"
	PhaseSystem     PhaseID = "system"
	PhaseUserCreate PhaseID = "user-create"
	PhaseFinalize   PhaseID = "finalize"
)

// Phase is completed once progress reaches Threshold and active from
// Threshold-20.
type Phase struct {
	ID        PhaseID
	Title     string
	Threshold int
}

// Phases in provisioning order.
var Phases = []Phase{
	{ID: PhasePartition, Title: "Partitioning disk", Threshold: 10},
	{ID: PhaseSystem, Title: "Installing base system", Threshold: 30},
	{ID: PhaseUserCreate, Title: "Creating user account", Threshold: 70},
	{ID: PhaseFinalize, Title: "Finalizing installation", Threshold: 90},
}

const activeBand = 20

type PhaseState int

const (
	PhasePending PhaseState = iota
	PhaseActive
	PhaseCompleted
)

func (s PhaseState) String() string {
	switch s {
	case PhaseActive:
		return "active"
	case PhaseCompleted:
		return "completed"
	default:
		return "pending"
	}
}

type PhaseStatus struct {
	Phase
	State PhaseState
}

// Tracker folds progress events into the highest percent seen and phase
// states that only move forward.
type Tracker struct {
	seen    bool
	max     int
	message string
	states  []PhaseState
	log     []string
}

func NewTracker() *Tracker {
	return &Tracker{states: make([]PhaseState, len(Phases))}
}

// Observe applies one progress event. The percent is clamped to 0..100. An
// event below the maximum already seen is ignored, message included, and
// Observe returns false.
func (t *Tracker) Observe(percent int, message string) bool {
	p := max(0, min(100, percent))
	if t.seen && p < t.max {
		return false
	}
	t.seen = true
	t.max = p
	if message != "" && message != t.message {
		t.message = message
		t.log = append(t.log, message)
	}
	for i, ph := range Phases {
		switch {
		case p >= ph.Threshold:
			t.states[i] = PhaseCompleted
		case p >= ph.Threshold-activeBand && t.states[i] < PhaseActive:
			t.states[i] = PhaseActive
		}
	}
	return true
}

func (t *Tracker) Percent() int { return t.max }

func (t *Tracker) Message() string { return t.message }

// Done reports whether 100% was observed.
func (t *Tracker) Done() bool { return t.seen && t.max >= 100 }

// Log returns the distinct messages in arrival order.
func (t *Tracker) Log() []string {
	out := make([]string, len(t.log))
	copy(out, t.log)
	return out
}

func (t *Tracker) Phases() []PhaseStatus {
	out := make([]PhaseStatus, len(Phases))
	for i, ph := range Phases {
		out[i] = PhaseStatus{Phase: ph, State: t.states[i]}
	}
	return out
}

// run is the live subscription of the provisioning step.
type run struct {
	id     string
	stream gateway.EventStream
	stop   chan struct{}
}

// attachLocked starts consuming the run's events. Caller holds s.mu.
func (s *Session) attachLocked(runID string, stream gateway.EventStream) {
	r := &run{id: runID, stream: stream, stop: make(chan struct{})}
	s.run = r
	s.runID = runID
	s.tracker = NewTracker()
	s.completeScheduled = false
	go s.pump(r)
}

// detachLocked ends consumption and returns the stream for the caller to
// close once the lock is released.
func (s *Session) detachLocked() gateway.EventStream {
	if s.run == nil {
		return nil
	}
	r := s.run
	s.run = nil
	close(r.stop)
	return r.stream
}

func (s *Session) pump(r *run) {
	for {
		select {
		case ev, ok := <-r.stream.Events():
			if !ok {
				s.log.Debug("event stream of run %s ended", r.id)
				return
			}
			s.handleEvent(r, ev)
		case <-r.stop:
			return
		}
	}
}

func (s *Session) handleEvent(r *run, ev gateway.Event) {
	s.mu.Lock()
	if s.run != r {
		s.mu.Unlock()
		return
	}
	switch ev.Kind {
	case gateway.KindProgress:
		if !s.tracker.Observe(ev.Percent, ev.Message) {
			s.log.Debug("ignoring regressed progress %d%% (max %d%%)", ev.Percent, s.tracker.Percent())
			s.mu.Unlock()
			return
		}
		if s.tracker.Done() && !s.completeScheduled {
			s.completeScheduled = true
			s.settleTimer = time.AfterFunc(s.settleDelay, s.finish)
		}
	case gateway.KindError:
		s.raiseLocked(KindProvisioning, "Installation error: "+ev.Message)
	case gateway.KindStatus:
		s.log.Debug("status: %s", ev.Status)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Session) finish() {
	if err := s.JumpTo(context.Background(), s.reg.At(s.reg.Last())); err != nil {
		s.log.Error("jump to complete: %v", err)
	}
}
