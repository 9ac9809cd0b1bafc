package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/yorozuya-cybersecurity/artiscan/internal/artifact"
	"github.com/yorozuya-cybersecurity/artiscan/internal/normalize"
	"github.com/yorozuya-cybersecurity/artiscan/internal/schema"
	"github.com/yorozuya-cybersecurity/artiscan/internal/transport"
)

type recorder struct {
	mu         sync.Mutex
	inFlight   int32
	concurrent bool
	calls      []string
	events     []Event
	rejected   []error
	selected   []schema.Artifact
}

func (r *recorder) enter(name string) func() {
	if atomic.AddInt32(&r.inFlight, 1) > 1 {
		r.concurrent = true
	}
	r.mu.Lock()
	r.calls = append(r.calls, name)
	r.mu.Unlock()
	return func() { atomic.AddInt32(&r.inFlight, -1) }
}

func (r *recorder) OnLifecycleChange(ev Event) {
	defer r.enter(ev.State.String())()
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) OnArtifactRejected(err error) {
	defer r.enter("rejected")()
	r.mu.Lock()
	r.rejected = append(r.rejected, err)
	r.mu.Unlock()
}

func (r *recorder) OnArtifactSelected(a schema.Artifact) {
	defer r.enter("selected")()
	r.mu.Lock()
	r.selected = append(r.selected, a)
	r.mu.Unlock()
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []State
	for _, ev := range r.events {
		out = append(out, ev.State)
	}
	return out
}

func (r *recorder) callLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type sentRequest struct {
	req      transport.Request
	field    string
	filename string
	data     []byte
}

func parseMultipart(req transport.Request) sentRequest {
	_, params, err := mime.ParseMediaType(req.ContentType)
	Expect(err).NotTo(HaveOccurred())
	mr := multipart.NewReader(bytes.NewReader(req.Body), params["boundary"])
	part, err := mr.NextPart()
	Expect(err).NotTo(HaveOccurred())
	data, err := io.ReadAll(part)
	Expect(err).NotTo(HaveOccurred())
	return sentRequest{req: req, field: part.FormName(), filename: part.FileName(), data: data}
}

func respond(status int, payload string) transport.Func {
	return func(ctx context.Context, req transport.Request) (*transport.Response, error) {
		obj, err := normalize.Decode([]byte(payload))
		if err != nil {
			return nil, err
		}
		return &transport.Response{Status: status, Payload: obj}, nil
	}
}

const reportPayload = `{
	"security_score": 87,
	"risk_level": "HIGH",
	"summary": {"critical": 0, "high": 2, "medium": 1, "total_issues": 3},
	"findings": {"static": {"findings": [{"type": "A", "severity": "HIGH", "description": "d1"}]}},
	"recommendations": ["fix A"]
}`

var _ = Describe("Session", func() {
	var (
		rec  *recorder
		tr   transport.Transport
		sess *Session
		ctx  context.Context
		apk  artifact.Candidate
		txt  artifact.Candidate
	)

	BeforeEach(func() {
		rec = &recorder{}
		tr = respond(http.StatusOK, reportPayload)
		ctx = context.Background()
		apk = artifact.BytesCandidate("app.apk", []byte("PK\x03\x04apk"))
		txt = artifact.BytesCandidate("notes.txt", []byte("hello"))
	})

	JustBeforeEach(func() {
		sess = New(transport.Func(func(ctx context.Context, req transport.Request) (*transport.Response, error) {
			return tr.Send(ctx, req)
		}), WithListener(rec), WithIDGenerator(func() string { return "sub-1" }))
	})

	Describe("selection", func() {
		It("starts Idle", func() {
			Expect(sess.State()).To(Equal(StateIdle))
			_, ok := sess.Artifact()
			Expect(ok).To(BeFalse())
		})

		It("rejects unsupported extensions and stays Idle", func() {
			_, err := sess.Select(txt)
			Expect(errors.Is(err, ErrInvalidArtifactType)).To(BeTrue())
			Expect(sess.State()).To(Equal(StateIdle))
			Expect(rec.rejected).To(HaveLen(1))
			Expect(rec.events).To(BeEmpty())
		})

		It("accepts .apk and .EXE files", func() {
			a, err := sess.Select(apk)
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Extension).To(Equal("apk"))
			Expect(sess.State()).To(Equal(StateSelected))

			a, err = sess.Select(artifact.BytesCandidate("setup.EXE", []byte{1}))
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Extension).To(Equal("exe"))
			Expect(rec.states()).To(Equal([]State{StateSelected, StateSelected}))
			Expect(rec.callLog()).To(Equal([]string{"selected", "Selected", "selected", "Selected"}))
		})

		It("keeps the current artifact when a later selection is rejected", func() {
			_, err := sess.Select(apk)
			Expect(err).NotTo(HaveOccurred())
			_, err = sess.Select(txt)
			Expect(err).To(MatchError(ErrInvalidArtifactType))

			Expect(sess.State()).To(Equal(StateSelected))
			a, ok := sess.Artifact()
			Expect(ok).To(BeTrue())
			Expect(a.Name).To(Equal("app.apk"))
		})

		It("ignores a nil listener", func() {
			s := New(tr, WithListener(nil))
			_, err := s.Select(apk)
			Expect(err).NotTo(HaveOccurred())
			_, err = s.Select(txt)
			Expect(err).To(MatchError(ErrInvalidArtifactType))
			_, err = s.Submit(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.State()).To(Equal(StateCompleted))
		})

		It("removes the artifact", func() {
			_, err := sess.Select(apk)
			Expect(err).NotTo(HaveOccurred())
			Expect(sess.Remove()).To(Succeed())
			Expect(sess.State()).To(Equal(StateIdle))
			_, ok := sess.Artifact()
			Expect(ok).To(BeFalse())

			Expect(sess.Remove()).To(Succeed())
			Expect(rec.states()).To(Equal([]State{StateSelected, StateIdle}))
		})
	})

	Describe("submission", func() {
		It("requires a selected artifact", func() {
			_, err := sess.Submit(ctx)
			Expect(err).To(MatchError(ErrNoArtifactSelected))
			Expect(sess.State()).To(Equal(StateIdle))
			Expect(rec.events).To(BeEmpty())
		})

		Context("when the service succeeds", func() {
			var sent []sentRequest

			BeforeEach(func() {
				sent = nil
				ok := respond(http.StatusOK, reportPayload)
				tr = transport.Func(func(ctx context.Context, req transport.Request) (*transport.Response, error) {
					sent = append(sent, parseMultipart(req))
					return ok(ctx, req)
				})
			})

			It("posts the artifact as multipart and completes with the normalized report", func() {
				_, err := sess.Select(apk)
				Expect(err).NotTo(HaveOccurred())

				report, err := sess.Submit(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(sess.State()).To(Equal(StateCompleted))

				Expect(sent).To(HaveLen(1))
				Expect(sent[0].req.Method).To(Equal(http.MethodPost))
				Expect(sent[0].req.Path).To(Equal(transport.ScanPath))
				Expect(sent[0].req.Header.Get("X-Request-ID")).To(Equal("sub-1"))
				Expect(sent[0].field).To(Equal("file"))
				Expect(sent[0].filename).To(Equal("app.apk"))
				Expect(sent[0].data).To(Equal([]byte("PK\x03\x04apk")))

				Expect(report.SecurityScore).To(Equal(87))
				Expect(report.RiskLevel).To(Equal(schema.RiskHigh))
				Expect(report.Findings).To(Equal([]schema.Finding{{Category: "A", Severity: "HIGH", Description: "d1"}}))
				Expect(report.Recommendations).To(Equal([]string{"fix A"}))

				stored, ok := sess.Report()
				Expect(ok).To(BeTrue())
				Expect(stored).To(Equal(*report))

				Expect(rec.states()).To(Equal([]State{StateSelected, StateSubmitting, StateCompleted}))
				last := rec.events[2]
				Expect(last.Report).NotTo(BeNil())
				Expect(last.SubmissionID).To(Equal("sub-1"))
				Expect(last.Previous).To(Equal(StateSubmitting))
			})

			It("allows re-scanning and discards the previous report on failure", func() {
				_, err := sess.Select(apk)
				Expect(err).NotTo(HaveOccurred())
				_, err = sess.Submit(ctx)
				Expect(err).NotTo(HaveOccurred())

				tr = respond(http.StatusInternalServerError, `{}`)
				_, err = sess.Submit(ctx)
				Expect(err).To(HaveOccurred())
				Expect(sess.State()).To(Equal(StateFailed))
				_, ok := sess.Report()
				Expect(ok).To(BeFalse())

				tr = respond(http.StatusOK, reportPayload)
				_, err = sess.Submit(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(sess.State()).To(Equal(StateCompleted))
				Expect(sess.LastError()).To(BeNil())
			})

			It("clears the report when a new artifact is selected", func() {
				_, err := sess.Select(apk)
				Expect(err).NotTo(HaveOccurred())
				_, err = sess.Submit(ctx)
				Expect(err).NotTo(HaveOccurred())

				_, err = sess.Select(artifact.BytesCandidate("other.exe", []byte("MZ")))
				Expect(err).NotTo(HaveOccurred())
				Expect(sess.State()).To(Equal(StateSelected))
				_, ok := sess.Report()
				Expect(ok).To(BeFalse())
			})
		})

		It("fails with the service error message on a non-2xx status", func() {
			tr = respond(http.StatusRequestEntityTooLarge, `{"error": "too large"}`)
			_, err := sess.Select(apk)
			Expect(err).NotTo(HaveOccurred())

			_, err = sess.Submit(ctx)
			var serviceErr *ServiceError
			Expect(errors.As(err, &serviceErr)).To(BeTrue())
			Expect(serviceErr.Message).To(Equal("too large"))
			Expect(serviceErr.Status).To(Equal(http.StatusRequestEntityTooLarge))
			Expect(sess.State()).To(Equal(StateFailed))
			Expect(sess.LastError()).To(Equal(err))

			last := rec.events[len(rec.events)-1]
			Expect(last.State).To(Equal(StateFailed))
			Expect(last.Err).To(Equal(err))
		})

		It("falls back to a generic message when the service gives none", func() {
			tr = respond(http.StatusBadRequest, `{"detail": "nope"}`)
			_, err := sess.Select(apk)
			Expect(err).NotTo(HaveOccurred())

			_, err = sess.Submit(ctx)
			var serviceErr *ServiceError
			Expect(errors.As(err, &serviceErr)).To(BeTrue())
			Expect(serviceErr.Message).To(Equal(GenericServiceMessage))
		})

		It("fails with a transport error on a transport fault", func() {
			fault := errors.New("connection refused")
			tr = transport.Func(func(ctx context.Context, req transport.Request) (*transport.Response, error) {
				return nil, fault
			})
			_, err := sess.Select(apk)
			Expect(err).NotTo(HaveOccurred())

			_, err = sess.Submit(ctx)
			var transportErr *TransportError
			Expect(errors.As(err, &transportErr)).To(BeTrue())
			Expect(errors.Is(err, fault)).To(BeTrue())
			Expect(sess.State()).To(Equal(StateFailed))

			_, err = sess.Select(apk)
			Expect(err).NotTo(HaveOccurred())
			Expect(sess.State()).To(Equal(StateSelected))
		})

		It("does not call the transport once the context is cancelled", func() {
			called := false
			tr = transport.Func(func(ctx context.Context, req transport.Request) (*transport.Response, error) {
				called = true
				return nil, nil
			})
			_, err := sess.Select(apk)
			Expect(err).NotTo(HaveOccurred())

			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err = sess.Submit(cancelled)
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(called).To(BeFalse())
			Expect(sess.State()).To(Equal(StateFailed))
		})
	})

	Describe("single flight", func() {
		var (
			release chan struct{}
			entered chan struct{}
		)

		BeforeEach(func() {
			release = make(chan struct{})
			entered = make(chan struct{}, 1)
			ok := respond(http.StatusOK, reportPayload)
			tr = transport.Func(func(ctx context.Context, req transport.Request) (*transport.Response, error) {
				entered <- struct{}{}
				<-release
				return ok(ctx, req)
			})
		})

		It("rejects every mutation while a submission is in flight", func() {
			_, err := sess.Select(apk)
			Expect(err).NotTo(HaveOccurred())

			done := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				_, err := sess.Submit(ctx)
				done <- err
			}()
			Eventually(entered).Should(Receive())
			Expect(sess.State()).To(Equal(StateSubmitting))

			_, err = sess.Submit(ctx)
			Expect(err).To(MatchError(ErrScanInProgress))
			_, err = sess.Select(artifact.BytesCandidate("b.exe", []byte("MZ")))
			Expect(err).To(MatchError(ErrScanInProgress))
			Expect(sess.Remove()).To(MatchError(ErrScanInProgress))

			Expect(sess.State()).To(Equal(StateSubmitting))
			a, ok := sess.Artifact()
			Expect(ok).To(BeTrue())
			Expect(a.Name).To(Equal("app.apk"))

			close(release)
			Eventually(done).Should(Receive(BeNil()))
			Expect(sess.State()).To(Equal(StateCompleted))
			Expect(rec.states()).To(Equal([]State{StateSelected, StateSubmitting, StateCompleted}))
		})

		It("lets exactly one of many concurrent submits through", func() {
			_, err := sess.Select(apk)
			Expect(err).NotTo(HaveOccurred())

			const callers = 8
			var wg sync.WaitGroup
			var inProgress int32
			results := make(chan error, callers)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := sess.Submit(ctx)
					if errors.Is(err, ErrScanInProgress) {
						atomic.AddInt32(&inProgress, 1)
					}
					results <- err
				}()
			}
			Eventually(entered).Should(Receive())
			Eventually(func() int32 { return atomic.LoadInt32(&inProgress) }).Should(Equal(int32(callers - 1)))
			close(release)
			wg.Wait()
			close(results)

			succeeded := 0
			for err := range results {
				if err == nil {
					succeeded++
				}
			}
			Expect(succeeded).To(Equal(1))
			Expect(rec.concurrent).To(BeFalse())
			Expect(rec.states()).To(Equal([]State{StateSelected, StateSubmitting, StateCompleted}))
		})
	})

	Describe("against an HTTP scan service", func() {
		var srv *httptest.Server

		BeforeEach(func() {
			r := chi.NewRouter()
			r.Post("/api/scan/file", func(w http.ResponseWriter, req *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "too large"})
			})
			srv = httptest.NewServer(r)
			tr = transport.NewHTTPTransport(srv.URL+"/api", srv.Client())
		})

		AfterEach(func() {
			srv.Close()
		})

		It("rejects a .txt file and fails an .apk scan with the service error", func() {
			_, err := sess.Select(txt)
			Expect(err).To(MatchError(ErrInvalidArtifactType))
			Expect(sess.State()).To(Equal(StateIdle))

			_, err = sess.Select(apk)
			Expect(err).NotTo(HaveOccurred())

			_, err = sess.Submit(ctx)
			var serviceErr *ServiceError
			Expect(errors.As(err, &serviceErr)).To(BeTrue())
			Expect(serviceErr.Message).To(Equal("too large"))
			Expect(sess.State()).To(Equal(StateFailed))
		})

		It("reports an unreachable service as a transport error", func() {
			srv.Close()
			_, err := sess.Select(apk)
			Expect(err).NotTo(HaveOccurred())

			submitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			_, err = sess.Submit(submitCtx)
			var transportErr *TransportError
			Expect(errors.As(err, &transportErr)).To(BeTrue())
			Expect(sess.State()).To(Equal(StateFailed))
		})
	})
})
