package wizard

import (
	"fmt"
	"slices"
)

// StepID identifies one page of the wizard.
type StepID string

const (
	StepWelcome  StepID = "welcome"
	StepLanguage StepID = "language"
	StepKeyboard StepID = "keyboard"
	StepTimezone StepID = "timezone"
	StepNetwork  StepID = "network"
	StepDisk     StepID = "disk"
	StepUser     StepID = "user"
	StepSummary  StepID = "summary"
	StepProgress StepID = "progress"
	StepComplete StepID = "complete"
)

// DefaultSteps is the full installer sequence.
var DefaultSteps = []StepID{
	StepWelcome,
	StepLanguage,
	StepKeyboard,
	StepTimezone,
	StepNetwork,
	StepDisk,
	StepUser,
	StepSummary,
	StepProgress,
	StepComplete,
}

var stepTitles = map[StepID]string{
	StepWelcome:  "Welcome",
	StepLanguage: "Language",
	StepKeyboard: "Keyboard",
	StepTimezone: "Timezone",
	StepNetwork:  "Network",
	StepDisk:     "Storage",
	StepUser:     "Account",
	StepSummary:  "Summary",
	StepProgress: "Installing",
	StepComplete: "Complete",
}

// Title is the human name of a step.
func (id StepID) Title() string {
	if t, ok := stepTitles[id]; ok {
		return t
	}
	return string(id)
}

// Registry is the immutable ordered list of steps of one session.
type Registry struct {
	steps []StepID
	index map[StepID]int
}

// NewRegistry checks the sequence: no duplicates, at least two steps, and
// exactly one summary immediately followed by the progress step, which in
// turn is followed by the terminal complete step.
func NewRegistry(steps ...StepID) (*Registry, error) {
	if len(steps) < 2 {
		return nil, fmt.Errorf("wizard needs at least 2 steps, got %d", len(steps))
	}
	index := make(map[StepID]int, len(steps))
	for i, id := range steps {
		if id == "" {
			return nil, fmt.Errorf("step %d has an empty id", i)
		}
		if _, dup := index[id]; dup {
			return nil, fmt.Errorf("duplicate step %q", id)
		}
		index[id] = i
	}

	last := len(steps) - 1
	sum, ok := index[StepSummary]
	switch {
	case !ok:
		return nil, fmt.Errorf("missing %q step", StepSummary)
	case steps[last] != StepComplete:
		return nil, fmt.Errorf("last step must be %q, got %q", StepComplete, steps[last])
	case sum != last-2 || steps[sum+1] != StepProgress:
		return nil, fmt.Errorf("%q must be followed by %q and %q", StepSummary, StepProgress, StepComplete)
	}

	return &Registry{steps: slices.Clone(steps), index: index}, nil
}

// DefaultRegistry returns a registry over DefaultSteps.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultSteps...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Len() int { return len(r.steps) }

func (r *Registry) At(i int) StepID { return r.steps[i] }

// Index returns the position of id.
func (r *Registry) Index(id StepID) (int, bool) {
	i, ok := r.index[id]
	return i, ok
}

// Steps returns a copy of the sequence.
func (r *Registry) Steps() []StepID { return slices.Clone(r.steps) }

// Last is the index of the terminal step.
func (r *Registry) Last() int { return len(r.steps) - 1 }

// Provisioning is the index of the progress step.
func (r *Registry) Provisioning() int { return len(r.steps) - 2 }

// Has reports whether the sequence contains id.
func (r *Registry) Has(id StepID) bool {
	_, ok := r.index[id]
	return ok
}
