package session

import (
	"time"

	"github.com/yorozuya-cybersecurity/artiscan/internal/schema"
)

// Event describes one state transition.
type Event struct {
	State        State
	Previous     State
	Artifact     *schema.Artifact
	SubmissionID string
	// Report is set for StateCompleted.
	Report *schema.ScanReport
	// Err is set for StateFailed.
	Err error
	// Elapsed is the submission duration for StateCompleted and StateFailed.
	Elapsed time.Duration
	At      time.Time
}

// Listener is notified of session activity. Calls are never concurrent and
// arrive in transition order. A listener must not call mutating Session
// methods from inside a callback.
type Listener interface {
	OnLifecycleChange(ev Event)
	OnArtifactRejected(err error)
	OnArtifactSelected(a schema.Artifact)
}

// Listeners fans every callback out to each listener in order.
type Listeners []Listener

func (ls Listeners) OnLifecycleChange(ev Event) {
	for _, l := range ls {
		l.OnLifecycleChange(ev)
	}
}

func (ls Listeners) OnArtifactRejected(err error) {
	for _, l := range ls {
		l.OnArtifactRejected(err)
	}
}

func (ls Listeners) OnArtifactSelected(a schema.Artifact) {
	for _, l := range ls {
		l.OnArtifactSelected(a)
	}
}

type nopListener struct{}

func (nopListener) OnLifecycleChange(Event)            {}
func (nopListener) OnArtifactRejected(error)           {}
func (nopListener) OnArtifactSelected(schema.Artifact) {}
