// Package gateway holds the wire protocol between the wizard and the
// installer backend, and the NATS client the wizard talks through.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Reply wraps every backend response.
type Reply struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// OK builds a successful reply around v (which may be nil).
func OK(v any) ([]byte, error) {
	r := Reply{Success: true}
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		r.Data = data
	}
	return json.Marshal(r)
}

// Fail builds a failed reply.
func Fail(err error) []byte {
	data, _ := json.Marshal(Reply{Error: err.Error()})
	return data
}

type StepDataRequest struct {
	Step string `json:"step"`
}

// StepData is what the backend knows about a step on entry. Only the disk
// and network steps carry lists.
type StepData struct {
	Step     string    `json:"step"`
	Disks    []Disk    `json:"disks,omitempty"`
	Networks []Network `json:"networks,omitempty"`
}

type Disk struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Model     string `json:"model,omitempty"`
	SizeBytes uint64 `json:"size"`
}

type Network struct {
	SSID     string `json:"ssid"`
	Signal   int    `json:"signal"`
	Security string `json:"security,omitempty"`
}

// Secured reports whether joining the network needs a password.
func (n Network) Secured() bool {
	return n.Security != "" && n.Security != "--"
}

type PersistRequest struct {
	Config map[string]any `json:"config"`
}

type StartRequest struct {
	Config map[string]any `json:"config"`
}

type StartResponse struct {
	RunID string `json:"run_id"`
}

type ConnectRequest struct {
	SSID     string `json:"ssid"`
	Password string `json:"password,omitempty"`
}

type ConnectResult struct {
	SSID    string `json:"ssid"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ProgressPayload is the body of a progress push event.
type ProgressPayload struct {
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// ErrorPayload is the body of an error push event.
type ErrorPayload struct {
	Error string `json:"error"`
}

// Event kinds delivered on an EventStream.
const (
	KindProgress = "progress"
	KindError    = "error"
	KindStatus   = "status"
)

// Event is one decoded push event of a provisioning run.
type Event struct {
	Kind    string
	Percent int
	Message string
	Status  json.RawMessage
}

// EventStream delivers push events until closed. Events may stop arriving
// after Close; the channel itself is not guaranteed to be closed.
type EventStream interface {
	Events() <-chan Event
	Close() error
}

// DecodeEvent turns a payload published under the given kind into an Event.
func DecodeEvent(kind string, data []byte) (Event, error) {
	ev := Event{Kind: kind}
	switch kind {
	case KindProgress:
		var p ProgressPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return ev, fmt.Errorf("decoding progress event: %w", err)
		}
		ev.Percent = p.Progress
		ev.Message = p.Message
	case KindError:
		var p ErrorPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return ev, fmt.Errorf("decoding error event: %w", err)
		}
		ev.Message = p.Error
	case KindStatus:
		ev.Status = json.RawMessage(data)
	default:
		return ev, fmt.Errorf("unknown event kind %q", kind)
	}
	return ev, nil
}

// RemoteError is a failure reported by the backend, as opposed to a
// transport failure.
type RemoteError struct {
	Op      string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// IsRemote reports whether err was returned by the backend itself.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
