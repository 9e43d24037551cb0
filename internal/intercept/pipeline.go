// Package intercept orchestrates the per-request interception flow:
// parse check, format detection, tool-output extraction, invocation of the
// caller-supplied interceptor, and serialization of the result. Every
// internal failure degrades to forwarding the request unmodified; only
// interceptor errors propagate to the caller.
package intercept

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/router-for-me/toolgate/internal/correlate"
	"github.com/router-for-me/toolgate/internal/metrics"
	"github.com/router-for-me/toolgate/internal/reqlog"
	"github.com/router-for-me/toolgate/internal/session"
	"github.com/router-for-me/toolgate/internal/wire"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Request is the normalized view handed to the interceptor.
type Request struct {
	// ID is a per-invocation identifier for log correlation.
	ID string
	// URL is the outbound request target.
	URL string
	// SessionID is the host session this request belongs to, if known.
	SessionID string
	// Body is the parsed JSON request body. Interceptors must treat it as
	// read-only and return a new slice from Result.Body when mutating,
	// which the wire mutation utilities do naturally.
	Body []byte
	// Descriptor is the detected format descriptor.
	Descriptor wire.Descriptor
	// Turns is the located conversation array.
	Turns gjson.Result
	// ToolOutputs are the tool results extracted from Turns, in order.
	ToolOutputs []wire.ToolOutput
	// Resolver is the identifier resolver used during extraction, nil for
	// non-Gemini formats. Pass it back to wire.ReplaceToolOutput.
	Resolver wire.IDResolver
}

// Result is what the interceptor returns. The pipeline trusts Modified
// verbatim and does not diff bodies to detect silent mutation.
type Result struct {
	Body     []byte
	Modified bool
}

// Interceptor is the caller-supplied callback. It may block; the pipeline
// waits for it before the request proceeds.
type Interceptor func(ctx context.Context, req *Request) (Result, error)

// Pipeline wires the format layer, the session store and the correlator
// together for a host's outbound requests.
type Pipeline struct {
	store       *session.Store
	fetcher     *correlate.Fetcher
	interceptor Interceptor
	recorder    *reqlog.Recorder
}

// New builds a pipeline. fetcher and recorder may be nil; a nil fetcher
// means Gemini requests always use synthetic identifiers.
func New(store *session.Store, fetcher *correlate.Fetcher, recorder *reqlog.Recorder, interceptor Interceptor) *Pipeline {
	return &Pipeline{
		store:       store,
		fetcher:     fetcher,
		interceptor: interceptor,
		recorder:    recorder,
	}
}

// Process runs one outbound request body through the interception flow and
// returns the body to forward. The returned body is the input payload
// whenever processing is skipped or the interceptor reports no
// modification. Only an interceptor error is returned as error, alongside
// the original payload.
func (p *Pipeline) Process(ctx context.Context, sessionID, rawURL string, payload []byte) ([]byte, error) {
	start := time.Now()
	defer func() { metrics.ObserveDuration(time.Since(start)) }()

	if !gjson.ValidBytes(payload) {
		metrics.RecordPassthrough("invalid-json")
		log.WithField("url", rawURL).Debug("intercept: body is not valid JSON, passing through")
		return payload, nil
	}

	d, ok := wire.Detect(payload)
	if !ok {
		metrics.RecordPassthrough("unknown-format")
		log.WithField("url", rawURL).Debug("intercept: no known request format, passing through")
		return payload, nil
	}

	turns, ok := d.Turns(payload)
	if !ok {
		metrics.RecordPassthrough("missing-turns")
		log.WithFields(log.Fields{"url": rawURL, "format": d.Format().String()}).
			Debug("intercept: detected format is missing its turn array, passing through")
		return payload, nil
	}

	if p.store != nil {
		p.store.Observe(sessionID)
		if model := modelFromRequest(d.Format(), payload, rawURL); model != "" {
			p.store.SetModel(sessionID, model)
		}
	}

	resolver := p.resolver(ctx, d.Format(), sessionID)
	outputs := d.ExtractToolOutputs(turns, resolver)
	metrics.RecordInterception(d.Format().String())

	req := &Request{
		ID:          uuid.NewString(),
		URL:         rawURL,
		SessionID:   sessionID,
		Body:        payload,
		Descriptor:  d,
		Turns:       turns,
		ToolOutputs: outputs,
		Resolver:    resolver,
	}

	res, err := p.interceptor(ctx, req)
	if err != nil {
		// The interceptor is third-party logic; its failures are the
		// caller's policy to handle, not ours to mask.
		return payload, err
	}

	out := payload
	if res.Modified && len(res.Body) > 0 {
		out = res.Body
		metrics.RecordMutation(d.Format().String())
	}
	p.record(req, res.Modified)
	return out, nil
}

// resolver builds the Gemini identifier resolver for this request. All
// failure paths return nil, which extraction turns into synthetic ids.
func (p *Pipeline) resolver(ctx context.Context, f wire.Format, sessionID string) wire.IDResolver {
	if f != wire.FormatGemini {
		return nil
	}
	if p.fetcher == nil || sessionID == "" {
		metrics.RecordCorrelationFallback()
		return nil
	}
	table, err := p.fetcher.Table(ctx, sessionID)
	if err != nil {
		metrics.RecordCorrelationFallback()
		log.WithError(err).WithField("session", sessionID).
			Debug("intercept: transcript fetch failed, using synthetic tool-call ids")
		if p.store != nil {
			if cached := p.store.Table(sessionID); cached != nil {
				return cached
			}
		}
		return nil
	}
	if p.store != nil {
		p.store.SetTable(sessionID, table)
	}
	return table
}

// record writes the request debug log entry, skipping subagent sessions.
func (p *Pipeline) record(req *Request, modified bool) {
	if p.recorder == nil {
		return
	}
	if p.store != nil && p.store.Subagent(req.SessionID) {
		return
	}
	p.recorder.Record(reqlog.Entry{
		ID:          req.ID,
		SessionID:   req.SessionID,
		URL:         req.URL,
		Format:      req.Descriptor.Format().String(),
		ToolOutputs: len(req.ToolOutputs),
		Modified:    modified,
		BodyBytes:   len(req.Body),
	})
}

// modelFromRequest recovers the model name from wherever the format puts
// it: the body for Chat and Responses, the URL path for Gemini and Bedrock.
func modelFromRequest(f wire.Format, body []byte, rawURL string) string {
	if model := gjson.GetBytes(body, "model").String(); model != "" {
		return model
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	path := u.Path
	switch f {
	case wire.FormatGemini:
		// .../v1beta/models/<model>:generateContent
		if i := strings.Index(path, "/models/"); i >= 0 {
			rest := path[i+len("/models/"):]
			if j := strings.IndexByte(rest, ':'); j >= 0 {
				return rest[:j]
			}
			return rest
		}
	case wire.FormatBedrock:
		// .../model/<modelId>/converse
		if i := strings.Index(path, "/model/"); i >= 0 {
			rest := path[i+len("/model/"):]
			if j := strings.IndexByte(rest, '/'); j >= 0 {
				return rest[:j]
			}
			return rest
		}
	}
	return ""
}
