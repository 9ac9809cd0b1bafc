package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/yorozuya-cybersecurity/artiscan/internal/artifact"
	"github.com/yorozuya-cybersecurity/artiscan/internal/normalize"
	"github.com/yorozuya-cybersecurity/artiscan/internal/schema"
	"github.com/yorozuya-cybersecurity/artiscan/internal/transport"
)

// Clock abstraction so tests can control submission timings
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Session owns the selected artifact and the lifecycle of its scan.
// At most one submission is in flight at any time.
type Session struct {
	transport transport.Transport
	listener  Listener
	clock     Clock
	newID     func() string

	// transitionMu serializes transitions together with their notifications.
	transitionMu sync.Mutex

	mu           sync.Mutex
	state        State
	artifact     *schema.Artifact
	candidate    artifact.Candidate
	report       *schema.ScanReport
	lastErr      error
	submissionID string
}

// Option configures a Session.
type Option func(*Session)

// WithListener registers the listener notified of session activity.
func WithListener(l Listener) Option {
	return func(s *Session) {
		if l != nil {
			s.listener = l
		}
	}
}

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithIDGenerator replaces the UUID generator used for submission IDs.
func WithIDGenerator(f func() string) Option {
	return func(s *Session) { s.newID = f }
}

// New returns an Idle session that submits through t.
func New(t transport.Transport, opts ...Option) *Session {
	s := &Session{
		transport: t,
		listener:  nopListener{},
		clock:     SystemClock{},
		newID:     func() string { return uuid.New().String() },
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Artifact returns the selected artifact, if any.
func (s *Session) Artifact() (schema.Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifact == nil {
		return schema.Artifact{}, false
	}
	return *s.artifact, true
}

// Report returns the report of the last completed submission, if any.
func (s *Session) Report() (schema.ScanReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.report == nil {
		return schema.ScanReport{}, false
	}
	return *s.report, true
}

// LastError returns the error of the last failed submission, if any.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// SubmissionID returns the ID of the current or last submission.
func (s *Session) SubmissionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submissionID
}

// Select validates c and makes it the session's artifact. A rejected
// candidate leaves the session exactly as it was.
func (s *Session) Select(c artifact.Candidate) (schema.Artifact, error) {
	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	if s.State() == StateSubmitting {
		return schema.Artifact{}, ErrScanInProgress
	}

	a, err := artifact.Validate(c)
	if err != nil {
		log.Warnf("rejected artifact %s: %s", c.Name(), err.Error())
		s.listener.OnArtifactRejected(err)
		return schema.Artifact{}, err
	}

	ev := s.transition(StateSelected, func() {
		s.artifact = &a
		s.candidate = c
		s.report = nil
		s.lastErr = nil
		s.submissionID = ""
	})
	log.Infof("selected artifact %s (%s)", a.Name, a.SizeLabel)
	s.listener.OnArtifactSelected(a)
	s.listener.OnLifecycleChange(ev)
	return a, nil
}

// Remove clears the selected artifact and any report. It is a no-op when Idle.
func (s *Session) Remove() error {
	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	switch s.State() {
	case StateIdle:
		return nil
	case StateSubmitting:
		return ErrScanInProgress
	}

	ev := s.transition(StateIdle, func() {
		s.artifact = nil
		s.candidate = nil
		s.report = nil
		s.lastErr = nil
		s.submissionID = ""
	})
	log.Info("removed artifact")
	s.listener.OnLifecycleChange(ev)
	return nil
}

// Submit sends the selected artifact to the scan service and blocks until the
// exchange resolves. The session ends Completed with the normalized report or
// Failed with a *ServiceError or *TransportError, which is also returned.
// A second Submit while one is in flight fails with ErrScanInProgress.
func (s *Session) Submit(ctx context.Context) (*schema.ScanReport, error) {
	s.transitionMu.Lock()
	s.mu.Lock()
	state, c := s.state, s.candidate
	s.mu.Unlock()
	switch state {
	case StateIdle:
		s.transitionMu.Unlock()
		return nil, ErrNoArtifactSelected
	case StateSubmitting:
		s.transitionMu.Unlock()
		return nil, ErrScanInProgress
	}

	id := s.newID()
	start := s.clock.Now()
	ev := s.transition(StateSubmitting, func() {
		s.submissionID = id
		s.report = nil
		s.lastErr = nil
	})
	s.listener.OnLifecycleChange(ev)
	s.transitionMu.Unlock()

	report, err := s.exchange(ctx, id, c)

	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()
	elapsed := s.clock.Now().Sub(start)
	logger := log.WithFields(log.Fields{"submission": id, "elapsed": elapsed})
	if err != nil {
		ev = s.transition(StateFailed, func() { s.lastErr = err })
		logger.Errorf("scan failed: %s", err.Error())
	} else {
		ev = s.transition(StateCompleted, func() { s.report = report })
		logger.Infof("scan completed: score %d, risk %s, %d findings", report.SecurityScore, report.RiskLevel, len(report.Findings))
	}
	ev.Elapsed = elapsed
	s.listener.OnLifecycleChange(ev)
	return report, err
}

func (s *Session) exchange(ctx context.Context, id string, c artifact.Candidate) (*schema.ScanReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{RootCause: err}
	}
	rc, err := c.Open()
	if err != nil {
		return nil, &TransportError{RootCause: fmt.Errorf("open %s: %w", c.Name(), err)}
	}
	body, contentType, err := transport.MultipartBody(transport.FileField, c.Name(), rc)
	rc.Close()
	if err != nil {
		return nil, &TransportError{RootCause: err}
	}

	log.WithField("submission", id).Infof("submitting %s (%d bytes)", c.Name(), len(body))
	resp, err := s.transport.Send(ctx, transport.Request{
		Method:      http.MethodPost,
		Path:        transport.ScanPath,
		ContentType: contentType,
		Header:      http.Header{"X-Request-Id": []string{id}},
		Body:        body,
	})
	if err != nil {
		return nil, &TransportError{RootCause: err}
	}
	if resp == nil {
		return nil, &TransportError{RootCause: errors.New("transport returned no response")}
	}
	if !resp.OK() {
		msg := normalize.ErrorMessage(resp.Payload)
		if msg == "" {
			msg = GenericServiceMessage
		}
		return nil, &ServiceError{Status: resp.Status, Message: msg}
	}

	report := normalize.Normalize(resp.Payload)
	return &report, nil
}

// transition moves the session to a new state. Callers hold transitionMu and
// have already checked the move is allowed.
func (s *Session) transition(to State, mutate func()) Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.state
	if !IsLegalTransition(from, to) {
		panic(fmt.Errorf("illegal session transition from %s to %s", from, to))
	}
	mutate()
	s.state = to

	ev := Event{
		State:        to,
		Previous:     from,
		SubmissionID: s.submissionID,
		Report:       s.report,
		Err:          s.lastErr,
		At:           s.clock.Now(),
	}
	if s.artifact != nil {
		a := *s.artifact
		ev.Artifact = &a
	}
	log.Debugf("session transition %s -> %s", from, to)
	return ev
}
