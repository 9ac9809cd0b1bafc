package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/yorozuya-cybersecurity/artiscan/internal/normalize"
)

const (
	DefaultBaseURL = "http://localhost:5000/api"
	ScanPath       = "/scan/file"

	maxPayloadBytes = 32 << 20
)

// Request is a single call against the scan service.
type Request struct {
	Method      string
	Path        string
	ContentType string
	Header      http.Header
	Body        []byte
}

// Response is a resolved call: the HTTP status and the decoded JSON object.
type Response struct {
	Status  int
	Payload *normalize.Object
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Transport performs one request and resolves exactly once, either with a
// response or with a transport fault.
type Transport interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

// Func adapts a plain function to Transport.
type Func func(ctx context.Context, req Request) (*Response, error)

func (f Func) Send(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// HTTPTransport talks to the scan service over HTTP.
type HTTPTransport struct {
	BaseURL   string
	Client    *http.Client
	UserAgent string
	// Observe, when set, is called with the request path and status code of every response.
	Observe func(path string, status int)
}

// NewHTTPTransport returns a transport rooted at baseURL. A nil client means http.DefaultClient.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{BaseURL: baseURL, Client: client}
}

// URL joins the base URL and path.
func (t *HTTPTransport) URL(path string) string {
	return strings.TrimRight(t.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (t *HTTPTransport) Send(ctx context.Context, req Request) (*Response, error) {
	url := t.URL(req.Path)
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bytes.NewReader(req.Body))
	if err != nil {
		return nil, errors.Annotatef(err, "unable to build request %s %s", req.Method, url)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if t.UserAgent != "" {
		httpReq.Header.Set("User-Agent", t.UserAgent)
	}

	start := time.Now()
	resp, err := t.Client.Do(httpReq)
	if err != nil {
		return nil, errors.Annotatef(err, "%s %s", req.Method, url)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, errors.Annotatef(err, "unable to read response from %s", url)
	}
	log.Debugf("%s %s -> %d (%d bytes in %s)", req.Method, url, resp.StatusCode, len(data), time.Since(start))
	if t.Observe != nil {
		t.Observe(req.Path, resp.StatusCode)
	}

	payload, err := normalize.Decode(data)
	if err != nil {
		return nil, errors.Annotatef(err, "malformed response from %s (status %d)", url, resp.StatusCode)
	}
	return &Response{Status: resp.StatusCode, Payload: payload}, nil
}
