package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/yorozuya-cybersecurity/artiscan/internal/schema"
	"github.com/yorozuya-cybersecurity/artiscan/internal/session"
)

const (
	namespace = "artiscan"
	subsystem = "session"
)

// Recorder collects scan session metrics on its own registry. It is a
// session.Listener.
type Recorder struct {
	Registry *prometheus.Registry

	transitions  *prometheus.CounterVec
	submissions  *prometheus.CounterVec
	rejected     prometheus.Counter
	artifactSize prometheus.Histogram
	durations    prometheus.Histogram
	httpResults  *prometheus.CounterVec
}

// NewRecorder creates and registers the session collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		Registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transitions_total",
			Help:      "session state transitions by target state",
		}, []string{"state"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "submissions_total",
			Help:      "resolved scan submissions by outcome",
		}, []string{"outcome"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rejected_artifacts_total",
			Help:      "artifacts rejected by the extension policy",
		}),
		artifactSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "artifact_size_bytes",
			Help:      "size of selected artifacts",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 12),
		}),
		durations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "submission_duration_seconds",
			Help:      "time from submit to resolution",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 12),
		}),
		httpResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "http_response_status_codes",
			Help:      "status codes for responses from the scan service",
		}, []string{"path", "code"}),
	}
	r.Registry.MustRegister(r.transitions, r.submissions, r.rejected, r.artifactSize, r.durations, r.httpResults)
	return r
}

// Outcome labels a resolved submission.
func Outcome(ev session.Event) string {
	switch ev.State {
	case session.StateCompleted:
		return "completed"
	case session.StateFailed:
		var serviceErr *session.ServiceError
		if errors.As(ev.Err, &serviceErr) {
			return "service_error"
		}
		return "transport_error"
	}
	return ""
}

func (r *Recorder) OnLifecycleChange(ev session.Event) {
	r.transitions.WithLabelValues(ev.State.String()).Inc()
	if outcome := Outcome(ev); outcome != "" {
		r.submissions.WithLabelValues(outcome).Inc()
		r.durations.Observe(ev.Elapsed.Seconds())
	}
}

func (r *Recorder) OnArtifactRejected(err error) {
	r.rejected.Inc()
}

func (r *Recorder) OnArtifactSelected(a schema.Artifact) {
	r.artifactSize.Observe(float64(a.SizeBytes))
}

// ObserveHTTP counts a scan service response. It matches transport.HTTPTransport.Observe.
func (r *Recorder) ObserveHTTP(path string, status int) {
	r.httpResults.WithLabelValues(path, fmt.Sprintf("%d", status)).Inc()
}

// WriteTextfile dumps the registry in the text exposition format for a
// node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	log.Debugf("wrote metrics to %s", path)
	return nil
}
