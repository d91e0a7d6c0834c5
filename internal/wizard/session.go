// Package wizard is the installer's step engine: the step sequence, input
// validation, config accumulation and the consumption of provisioning
// progress.
package wizard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/twinaos/installer/internal/gateway"
	"github.com/twinaos/installer/internal/logger"
)

// Gateway is the backend as seen by the wizard.
type Gateway interface {
	FetchStepData(ctx context.Context, step string) (gateway.StepData, error)
	PersistConfig(ctx context.Context, fragment map[string]any) error
	StartProvisioning(ctx context.Context, config map[string]any) (string, error)
	ConnectNetwork(ctx context.Context, ssid, password string) (gateway.ConnectResult, error)
	RequestReboot(ctx context.Context) error
	Subscribe(ctx context.Context, runID string) (gateway.EventStream, error)
}

// Options configures a Session.
type Options struct {
	// Registry defaults to DefaultRegistry.
	Registry *Registry
	// SettleDelay is the pause between observing 100% and entering the
	// terminal step. Zero means 2s; negative means none.
	SettleDelay     time.Duration
	DefaultHostname string
	Languages       []Item
	Keyboards       []Item
	Timezones       []Item
	Logger          *logger.Logger
}

// Session is one run of the wizard. It is safe for concurrent use; user
// transitions are serialised and a second one while the first is running
// fails with ErrBusy.
type Session struct {
	gw          Gateway
	reg         *Registry
	log         *logger.Logger
	settleDelay time.Duration
	hostname    string

	mu      sync.Mutex
	index   int
	busy    bool
	config  *Accumulator
	summary Summary
	choices map[StepID]*Choices
	form    userForm
	mode    PartitionMode

	disks     []gateway.Disk
	networks  []gateway.Network
	connected string

	tracker           *Tracker
	run               *run
	runID             string
	completeScheduled bool
	settleTimer       *time.Timer

	notice  *Notice
	changes chan struct{}
}

// NewSession creates a session positioned on the first step with an empty
// config.
func NewSession(gw Gateway, opts Options) *Session {
	reg := opts.Registry
	if reg == nil {
		reg = DefaultRegistry()
	}
	settle := opts.SettleDelay
	switch {
	case settle == 0:
		settle = 2 * time.Second
	case settle < 0:
		settle = 0
	}
	host := opts.DefaultHostname
	if host == "" {
		host = "twinaos"
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default.With("wizard")
	}

	s := &Session{
		gw:          gw,
		reg:         reg,
		log:         log,
		settleDelay: settle,
		hostname:    host,
		config:      NewAccumulator(),
		choices: map[StepID]*Choices{
			StepLanguage: NewChoices(opts.Languages),
			StepKeyboard: NewChoices(opts.Keyboards),
			StepTimezone: NewChoices(opts.Timezones),
			StepDisk:     NewChoices(nil),
			StepNetwork:  NewChoices(nil),
		},
		mode:    PartitionAuto,
		tracker: NewTracker(),
		changes: make(chan struct{}, 1),
	}
	s.form.fields.Hostname = host
	s.summary = Summarize(nil, host)
	return s
}

// Changes ticks after every state change. Ticks coalesce, so a reader
// should re-read View rather than count them.
func (s *Session) Changes() <-chan struct{} { return s.changes }

func (s *Session) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// Registry returns the step sequence.
func (s *Session) Registry() *Registry { return s.reg }

// Current returns the current step.
func (s *Session) Current() StepID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.At(s.index)
}

// Start runs the entry fetch of the first step.
func (s *Session) Start(ctx context.Context) {
	s.enter(ctx, s.Current())
}

// Advance validates the current step, merges and persists its data and moves
// to the next step. Leaving the step before provisioning starts the
// installation and subscribes to its events; if that fails the session stays
// put and a notice is raised. Advancing on the terminal step does nothing.
func (s *Session) Advance(ctx context.Context) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	switch s.index {
	case s.reg.Provisioning():
		s.mu.Unlock()
		return ErrSystemStep
	case s.reg.Last():
		s.mu.Unlock()
		return nil
	}

	step := s.reg.At(s.index)
	snap := s.snapshotLocked()
	if !ValidateStep(step, snap) {
		s.mu.Unlock()
		s.log.Debug("advance refused: %s is incomplete", step)
		return ErrInvalidStep
	}

	fragment := Extract(step, snap)
	s.config.Merge(fragment)
	s.summary = Summarize(s.config.Snapshot(), s.hostname)
	provision := s.index+1 == s.reg.Provisioning()
	var full Config
	if provision {
		full = s.config.Snapshot()
	}
	from := s.index
	s.busy = true
	s.mu.Unlock()
	s.notify()
	defer s.idle()

	if len(fragment) > 0 {
		if err := s.gw.PersistConfig(ctx, fragment); err != nil {
			s.log.Warn("persisting %s config: %v", step, err)
		}
	}

	var (
		runID  string
		stream gateway.EventStream
	)
	if provision {
		var err error
		runID, stream, err = s.startProvisioning(ctx, full)
		if err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.index = min(from+1, s.reg.Last())
	if stream != nil {
		s.attachLocked(runID, stream)
	}
	next := s.reg.At(s.index)
	s.mu.Unlock()
	s.log.Info("advanced %s -> %s", step, next)

	s.enter(ctx, next)
	return nil
}

func (s *Session) startProvisioning(ctx context.Context, full Config) (string, gateway.EventStream, error) {
	runID, err := s.gw.StartProvisioning(ctx, full)
	if err != nil {
		s.raise(KindStart, fmt.Sprintf("Failed to start installation: %v", err))
		return "", nil, fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	stream, err := s.gw.Subscribe(ctx, runID)
	if err != nil {
		s.raise(KindStart, fmt.Sprintf("Failed to follow installation %s: %v", runID, err))
		return "", nil, fmt.Errorf("%w: subscribing to run %s: %v", ErrStartFailed, runID, err)
	}
	s.log.Info("provisioning run %s started", runID)
	return runID, stream, nil
}

// Retreat moves one step back without validation or persistence. It does
// nothing on the first step and is refused on the provisioning and terminal
// steps.
func (s *Session) Retreat(ctx context.Context) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.index >= s.reg.Provisioning() {
		s.mu.Unlock()
		return ErrSystemStep
	}
	if s.index == 0 {
		s.mu.Unlock()
		return nil
	}
	s.index--
	prev := s.reg.At(s.index)
	s.busy = true
	s.mu.Unlock()
	s.notify()
	defer s.idle()

	s.enter(ctx, prev)
	return nil
}

// JumpTo is the system-driven transition into the provisioning or terminal
// step. It skips validation and ignores the busy guard. Leaving the
// provisioning step ends its event subscription. Once provisioning has
// started the session never moves back.
func (s *Session) JumpTo(ctx context.Context, id StepID) error {
	target, ok := s.reg.Index(id)
	if !ok || (target != s.reg.Provisioning() && target != s.reg.Last()) {
		return fmt.Errorf("%w: %s", ErrInvalidJump, id)
	}

	s.mu.Lock()
	if s.index == target {
		s.mu.Unlock()
		return nil
	}
	if target < s.index && s.index >= s.reg.Provisioning() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidJump, id)
	}
	var closing gateway.EventStream
	if s.index == s.reg.Provisioning() {
		closing = s.detachLocked()
	}
	from := s.reg.At(s.index)
	s.index = target
	s.mu.Unlock()

	if closing != nil {
		if err := closing.Close(); err != nil {
			s.log.Warn("closing event stream: %v", err)
		}
	}
	s.log.Info("jumped %s -> %s", from, id)
	s.notify()
	s.enter(ctx, id)
	return nil
}

func (s *Session) idle() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
	s.notify()
}

// enter runs the best-effort step entry fetch. Lists are replaced only when
// the fetch succeeds.
func (s *Session) enter(ctx context.Context, step StepID) {
	data, err := s.gw.FetchStepData(ctx, string(step))
	if err != nil {
		s.log.Warn("fetching %s data: %v", step, err)
		return
	}

	s.mu.Lock()
	switch step {
	case StepDisk:
		s.disks = data.Disks
		s.choices[StepDisk].SetItems(diskItems(data.Disks))
	case StepNetwork:
		s.networks = data.Networks
		s.choices[StepNetwork].SetItems(networkItems(data.Networks))
	default:
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.notify()
}

func diskItems(disks []gateway.Disk) []Item {
	items := make([]Item, 0, len(disks))
	for _, d := range disks {
		detail := humanize.IBytes(d.SizeBytes) + " • " + d.Path
		if d.Model != "" {
			detail = d.Model + " • " + detail
		}
		items = append(items, Item{ID: d.Path, Label: d.Name, Detail: detail})
	}
	return items
}

func networkItems(networks []gateway.Network) []Item {
	items := make([]Item, 0, len(networks))
	for _, n := range networks {
		detail := fmt.Sprintf("%d%%", n.Signal)
		if n.Secured() {
			detail += " • " + n.Security
		}
		items = append(items, Item{ID: n.SSID, Label: n.SSID, Detail: detail})
	}
	return items
}

// Select marks id as chosen on a selection step.
func (s *Session) Select(step StepID, id string) error {
	s.mu.Lock()
	c, ok := s.choices[step]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotSelectable, step)
	}
	if err := c.Select(id); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%s %q: %w", step, id, err)
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// SetField updates an account form input. Editing the full name also
// updates the username until the username is typed by hand.
func (s *Session) SetField(f Field, value string) error {
	if !f.valid() {
		return fmt.Errorf("%w: %s", ErrUnknownField, f)
	}
	s.mu.Lock()
	s.form.set(f, value)
	s.mu.Unlock()
	s.notify()
	return nil
}

// SetPartitioning chooses the disk layout mode.
func (s *Session) SetPartitioning(mode PartitionMode) {
	if mode != PartitionManual {
		mode = PartitionAuto
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	s.notify()
}

// ConnectNetwork asks the backend to join a reported network. A refusal or
// transport failure raises a network notice; on success the network is
// recorded when the network step is submitted.
func (s *Session) ConnectNetwork(ctx context.Context, ssid, password string) (gateway.ConnectResult, error) {
	s.mu.Lock()
	known := false
	for _, n := range s.networks {
		if n.SSID == ssid {
			known = true
			break
		}
	}
	s.mu.Unlock()
	if !known {
		return gateway.ConnectResult{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, ssid)
	}

	res, err := s.gw.ConnectNetwork(ctx, ssid, password)
	if err != nil {
		s.raise(KindNetwork, fmt.Sprintf("Connection error: %v", err))
		return res, err
	}
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = "unknown error"
		}
		s.raise(KindNetwork, "Connection failed: "+msg)
		return res, nil
	}

	s.mu.Lock()
	s.connected = ssid
	selErr := s.choices[StepNetwork].Select(ssid)
	s.mu.Unlock()
	if selErr != nil {
		s.log.Warn("selecting connected network %s: %v", ssid, selErr)
	}
	s.log.Info("connected to %s", ssid)
	s.notify()
	return res, nil
}

// Reboot asks the backend to restart the machine. It is best-effort: a
// failure is logged and returned but never retried.
func (s *Session) Reboot(ctx context.Context) error {
	if err := s.gw.RequestReboot(ctx); err != nil {
		s.log.Warn("reboot request failed: %v", err)
		return err
	}
	return nil
}

// DismissNotice clears the current notice.
func (s *Session) DismissNotice() {
	s.mu.Lock()
	s.notice = nil
	s.mu.Unlock()
	s.notify()
}

func (s *Session) raise(kind ErrorKind, msg string) {
	s.mu.Lock()
	s.raiseLocked(kind, msg)
	s.mu.Unlock()
	s.notify()
}

func (s *Session) raiseLocked(kind ErrorKind, msg string) {
	s.log.Error("%s: %s", kind, msg)
	s.notice = &Notice{Kind: kind, Message: msg, At: time.Now()}
}

// Close ends the event subscription and any pending completion timer. The
// backend is not notified.
func (s *Session) Close() error {
	s.mu.Lock()
	stream := s.detachLocked()
	if s.settleTimer != nil {
		s.settleTimer.Stop()
	}
	s.mu.Unlock()
	if stream != nil {
		return stream.Close()
	}
	return nil
}

func (s *Session) snapshotLocked() FormSnapshot {
	selected := make(map[StepID]Item, len(s.choices))
	for step, c := range s.choices {
		if it, ok := c.Selected(); ok {
			selected[step] = it
		}
	}
	return FormSnapshot{
		Selected:     selected,
		User:         s.form.fields,
		Partitioning: s.mode,
		Network:      s.connected,
	}
}

// Snapshot returns the current form input.
func (s *Session) Snapshot() FormSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Config returns a copy of the accumulated config.
func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.Snapshot()
}

// redact masks credentials for display.
func redact(cfg Config) Config {
	out := cfg.Clone()
	if pw, ok := out["password"].(string); ok && pw != "" {
		out["password"] = strings.Repeat("*", 8)
	}
	return out
}
