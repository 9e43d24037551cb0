// Package transport implements the outbound interception point as an
// http.RoundTripper wrapper. Bodies of matching POST requests are run
// through the interception pipeline before the request is forwarded;
// everything else passes straight to the wrapped transport.
package transport

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/router-for-me/toolgate/internal/intercept"
	log "github.com/sirupsen/logrus"
)

// Transport intercepts outbound chat-completion requests. It implements
// http.RoundTripper.
type Transport struct {
	base          http.RoundTripper
	pipeline      *intercept.Pipeline
	sessionHeader string

	mu        sync.RWMutex
	endpoints []string
}

// SetEndpoints swaps the endpoint match list at runtime (config reload).
func (t *Transport) SetEndpoints(endpoints []string) {
	t.mu.Lock()
	t.endpoints = endpoints
	t.mu.Unlock()
}

// Option configures a Transport.
type Option func(*Transport)

// WithBase sets the wrapped RoundTripper. Defaults to http.DefaultTransport
// as it was when New ran.
func WithBase(rt http.RoundTripper) Option {
	return func(t *Transport) { t.base = rt }
}

// WithEndpoints replaces the URL substrings that select interceptable
// requests.
func WithEndpoints(endpoints []string) Option {
	return func(t *Transport) { t.endpoints = endpoints }
}

// WithSessionHeader sets the request header read for the session id.
func WithSessionHeader(name string) Option {
	return func(t *Transport) { t.sessionHeader = name }
}

// New builds a Transport around pipeline.
func New(pipeline *intercept.Pipeline, opts ...Option) *Transport {
	t := &Transport{
		base:          http.DefaultTransport,
		pipeline:      pipeline,
		sessionHeader: "X-Session-Id",
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// InstallTransport replaces http.DefaultTransport with t and returns a
// restore function that puts the previous transport back. When t was built
// with the default base it forwards to the transport being replaced.
func InstallTransport(t *Transport) func() {
	prev := http.DefaultTransport
	if t.base == nil || t.base == http.DefaultTransport {
		t.base = prev
	}
	http.DefaultTransport = t
	return func() { http.DefaultTransport = prev }
}

// RoundTrip implements http.RoundTripper. Any failure while reading,
// decoding or processing the body forwards the request untouched; the
// interception layer must never take a request down with it.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.intercepts(req) {
		return t.base.RoundTrip(req)
	}

	raw, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		log.WithError(err).Debug("transport: read body failed, aborting request")
		return nil, err
	}
	restore := func(body []byte) {
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))
	}

	encoding := strings.ToLower(req.Header.Get("Content-Encoding"))
	decoded, decodeOK := decodeBody(raw, encoding)
	if !decodeOK {
		restore(raw)
		return t.base.RoundTrip(req)
	}

	processed, err := t.pipeline.Process(req.Context(), req.Header.Get(t.sessionHeader), req.URL.String(), decoded)
	if err != nil {
		return nil, err
	}

	if bytes.Equal(processed, decoded) {
		restore(raw)
		return t.base.RoundTrip(req)
	}

	encoded, encodeOK := encodeBody(processed, encoding)
	if !encodeOK {
		restore(raw)
		return t.base.RoundTrip(req)
	}
	restore(encoded)
	req.Header.Set("Content-Length", strconv.Itoa(len(encoded)))
	return t.base.RoundTrip(req)
}

// intercepts selects POST requests for configured chat endpoints. An empty
// endpoint list intercepts every POST with a body.
func (t *Transport) intercepts(req *http.Request) bool {
	if req.Method != http.MethodPost || req.Body == nil {
		return false
	}
	t.mu.RLock()
	endpoints := t.endpoints
	t.mu.RUnlock()
	if len(endpoints) == 0 {
		return true
	}
	target := req.URL.String()
	for _, ep := range endpoints {
		if strings.Contains(target, ep) {
			return true
		}
	}
	return false
}

// decodeBody undoes the request Content-Encoding so the pipeline sees plain
// JSON. ok is false for undecodable input and unknown encodings.
func decodeBody(raw []byte, encoding string) ([]byte, bool) {
	switch encoding {
	case "", "identity":
		return raw, true
	case "gzip":
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, false
		}
		defer func() { _ = zr.Close() }()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, false
		}
		return out, true
	case "br":
		out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(raw)))
		if err != nil {
			return nil, false
		}
		return out, true
	default:
		return nil, false
	}
}

// encodeBody re-applies the original Content-Encoding to a modified body.
func encodeBody(body []byte, encoding string) ([]byte, bool) {
	switch encoding {
	case "", "identity":
		return body, true
	case "gzip":
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(body); err != nil {
			return nil, false
		}
		if err := zw.Close(); err != nil {
			return nil, false
		}
		return buf.Bytes(), true
	case "br":
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		if _, err := bw.Write(body); err != nil {
			return nil, false
		}
		if err := bw.Close(); err != nil {
			return nil, false
		}
		return buf.Bytes(), true
	default:
		return nil, false
	}
}
