package wizard

import (
	"errors"
	"time"
)

var (
	// ErrInvalidStep is returned by Advance when the current step's input
	// does not validate. Nothing changed and nothing was persisted.
	ErrInvalidStep = errors.New("current step is not complete")
	// ErrBusy rejects a user transition while another one is running.
	ErrBusy = errors.New("a transition is already in progress")
	// ErrSystemStep rejects user navigation out of the provisioning and
	// terminal steps.
	ErrSystemStep = errors.New("step can only be left by the installer")
	// ErrInvalidJump is returned when JumpTo targets a user-driven step.
	ErrInvalidJump = errors.New("only the progress and complete steps can be jumped to")
	// ErrStartFailed wraps a provisioning start that did not succeed.
	ErrStartFailed = errors.New("failed to start installation")
	// ErrUnknownChoice is returned when selecting an id that is not offered.
	ErrUnknownChoice = errors.New("unknown choice")
	// ErrNotSelectable is returned when selecting on a step without choices.
	ErrNotSelectable = errors.New("step has no choices")
	// ErrUnknownField is returned for an unknown account form field.
	ErrUnknownField = errors.New("unknown form field")
	// ErrUnknownNetwork is returned when connecting to an SSID that was not
	// reported by the backend.
	ErrUnknownNetwork = errors.New("unknown network")
)

// ErrorKind classifies failures. Only some kinds reach the user as a Notice;
// the rest are logged.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindFetch        ErrorKind = "fetch"
	KindPersist      ErrorKind = "persist"
	KindStart        ErrorKind = "start"
	KindProvisioning ErrorKind = "provisioning"
	KindNetwork      ErrorKind = "network"
)

// Notice is the single user-visible error of a session. A newer notice
// replaces the current one.
type Notice struct {
	Kind    ErrorKind
	Message string
	At      time.Time
}
