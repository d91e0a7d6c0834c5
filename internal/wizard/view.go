package wizard

import (
	"slices"

	"github.com/twinaos/installer/internal/gateway"
)

// StepStatus is one entry of the step list shown to the user.
type StepStatus struct {
	ID        StepID
	Title     string
	Completed bool
	Current   bool
}

// ChoiceList is the render state of a selection step.
type ChoiceList struct {
	Items    []Item
	Selected string
}

// ProgressView is the render state of the provisioning step.
type ProgressView struct {
	RunID   string
	Percent int
	Message string
	Phases  []PhaseStatus
	Log     []string
	Done    bool
}

// View is a consistent copy of everything a renderer needs.
type View struct {
	Step       StepID
	Index      int
	Steps      []StepStatus
	CanAdvance bool
	CanRetreat bool
	Busy       bool

	// Config has credentials masked.
	Config  Config
	Summary Summary

	Form          FormSnapshot
	Strength      Strength
	Confirm       ConfirmState
	UsernameValid bool

	Choices   map[StepID]ChoiceList
	Disks     []gateway.Disk
	Networks  []gateway.Network
	Connected string

	Progress ProgressView
	Notice   *Notice
}

// View returns the current state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := s.reg.At(s.index)
	snap := s.snapshotLocked()
	last := s.reg.Last()

	steps := make([]StepStatus, s.reg.Len())
	for i, id := range s.reg.steps {
		steps[i] = StepStatus{
			ID:        id,
			Title:     id.Title(),
			Completed: i < s.index || (i == last && s.index == last),
			Current:   i == s.index,
		}
	}

	choices := make(map[StepID]ChoiceList, len(s.choices))
	for id, c := range s.choices {
		cl := ChoiceList{Items: c.Items()}
		if it, ok := c.Selected(); ok {
			cl.Selected = it.ID
		}
		choices[id] = cl
	}

	var notice *Notice
	if s.notice != nil {
		n := *s.notice
		notice = &n
	}

	userUp := s.index < s.reg.Provisioning()
	return View{
		Step:          step,
		Index:         s.index,
		Steps:         steps,
		CanAdvance:    !s.busy && userUp && ValidateStep(step, snap),
		CanRetreat:    !s.busy && userUp && s.index > 0,
		Busy:          s.busy,
		Config:        redact(s.config.Snapshot()),
		Summary:       s.summary,
		Form:          snap,
		Strength:      PasswordStrength(snap.User.Password),
		Confirm:       ConfirmPassword(snap.User.Password, snap.User.Confirm),
		UsernameValid: ValidUsername(snap.User.Username),
		Choices:       choices,
		Disks:         slices.Clone(s.disks),
		Networks:      slices.Clone(s.networks),
		Connected:     s.connected,
		Progress: ProgressView{
			RunID:   s.runID,
			Percent: s.tracker.Percent(),
			Message: s.tracker.Message(),
			Phases:  s.tracker.Phases(),
			Log:     s.tracker.Log(),
			Done:    s.tracker.Done(),
		},
		Notice: notice,
	}
}
