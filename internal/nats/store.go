package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	StreamName = "twinaos"

	// Request/reply subjects served by the backend. They stay outside the
	// stream so JetStream never acknowledges a request in place of the
	// responder.
	SubjectStepData     = "twinaos.rpc.step"
	SubjectConfig       = "twinaos.rpc.config"
	SubjectInstallStart = "twinaos.rpc.install.start"
	SubjectWifiConnect  = "twinaos.rpc.wifi.connect"
	SubjectReboot       = "twinaos.rpc.reboot"

	// Push event kinds published per provisioning run.
	EventProgress = "progress"
	EventError    = "error"
	EventStatus   = "status"

	// Persisted state record types per install.
	StateConfig = "config"
	StateRun    = "run"
)

// QueueGroup is shared by backend responders so several replicas split requests.
const QueueGroup = "twinaos-backend"

// SubjectForRun matches every push event of one provisioning run.
// Example: "twinaos.events.r1.>"
func SubjectForRun(runID string) string {
	return fmt.Sprintf("twinaos.events.%s.>", runID)
}

// SubjectForRunEvent returns the subject of one event kind of a run.
// Example: "twinaos.events.r1.progress"
func SubjectForRunEvent(runID, kind string) string {
	return fmt.Sprintf("twinaos.events.%s.%s", runID, kind)
}

// SubjectForInstall matches all persisted state of an install.
func SubjectForInstall(install string) string {
	return fmt.Sprintf("twinaos.state.%s.>", install)
}

// SubjectForState returns the subject of one state record type.
// Example: "twinaos.state.default.config"
func SubjectForState(install, recordType string) string {
	return fmt.Sprintf("twinaos.state.%s.%s", install, recordType)
}

// SetupStream creates or updates the stream holding install state and run
// events.
func SetupStream(ctx context.Context, js jetstream.JetStream) (jetstream.Stream, error) {
	return js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{"twinaos.state.>", "twinaos.events.>"},
		Storage:  jetstream.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
	})
}
