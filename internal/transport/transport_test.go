package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/router-for-me/toolgate/internal/intercept"
	"github.com/router-for-me/toolgate/internal/session"
	"github.com/router-for-me/toolgate/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureRT records the final outgoing request body instead of sending it.
type captureRT struct {
	body    []byte
	headers http.Header
}

func (c *captureRT) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		c.body, _ = io.ReadAll(req.Body)
	}
	c.headers = req.Header.Clone()
	return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader(nil)), Request: req}, nil
}

func injectingPipeline(note string) *intercept.Pipeline {
	return intercept.New(session.NewStore(nil), nil, nil, func(_ context.Context, req *intercept.Request) (intercept.Result, error) {
		body, ok := wire.InjectIntoLastUserTurn(req.Descriptor, req.Body, note)
		return intercept.Result{Body: body, Modified: ok}, nil
	})
}

func post(t *testing.T, url string, body []byte) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	require.NoError(t, err)
	return req
}

func TestRoundTrip_RewritesMatchingRequest(t *testing.T) {
	base := &captureRT{}
	tr := New(injectingPipeline("injected"),
		WithBase(base),
		WithEndpoints([]string{"/chat/completions"}),
	)

	body := []byte(`{"messages": [{"role": "user", "content": "hi"}]}`)
	resp, err := tr.RoundTrip(post(t, "https://api.openai.com/v1/chat/completions", body))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	assert.Contains(t, string(base.body), "injected")
	assert.NotEqual(t, body, base.body)
}

func TestRoundTrip_NonMatchingURLUntouched(t *testing.T) {
	base := &captureRT{}
	tr := New(injectingPipeline("injected"),
		WithBase(base),
		WithEndpoints([]string{"/chat/completions"}),
	)

	body := []byte(`{"messages": [{"role": "user", "content": "hi"}]}`)
	_, err := tr.RoundTrip(post(t, "https://api.openai.com/v1/embeddings", body))
	require.NoError(t, err)
	assert.Equal(t, body, base.body)
}

func TestRoundTrip_GetUntouched(t *testing.T) {
	base := &captureRT{}
	tr := New(injectingPipeline("injected"), WithBase(base))

	req, err := http.NewRequest(http.MethodGet, "https://api.openai.com/v1/models", nil)
	require.NoError(t, err)
	_, err = tr.RoundTrip(req)
	require.NoError(t, err)
	assert.Nil(t, base.body)
}

func TestRoundTrip_InvalidJSONForwardedVerbatim(t *testing.T) {
	base := &captureRT{}
	tr := New(injectingPipeline("injected"), WithBase(base), WithEndpoints(nil))

	body := []byte(`this is not json`)
	_, err := tr.RoundTrip(post(t, "https://api.openai.com/v1/chat/completions", body))
	require.NoError(t, err)
	assert.Equal(t, body, base.body)
}

func TestRoundTrip_GzipBodyDecodedAndReencoded(t *testing.T) {
	base := &captureRT{}
	tr := New(injectingPipeline("injected"), WithBase(base), WithEndpoints(nil))

	plain := []byte(`{"messages": [{"role": "user", "content": "hi"}]}`)
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(plain)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	req := post(t, "https://api.openai.com/v1/chat/completions", buf.Bytes())
	req.Header.Set("Content-Encoding", "gzip")
	_, err = tr.RoundTrip(req)
	require.NoError(t, err)

	// The forwarded body is still gzip and decodes to the rewritten JSON.
	zr, err := gzip.NewReader(bytes.NewReader(base.body))
	require.NoError(t, err)
	decoded, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "injected")
}

func TestRoundTrip_UnknownEncodingForwardedVerbatim(t *testing.T) {
	base := &captureRT{}
	tr := New(injectingPipeline("injected"), WithBase(base), WithEndpoints(nil))

	body := []byte(`{"messages": [{"role": "user", "content": "hi"}]}`)
	req := post(t, "https://api.openai.com/v1/chat/completions", body)
	req.Header.Set("Content-Encoding", "zstd")
	_, err := tr.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, body, base.body)
}

func TestSetEndpoints_Swap(t *testing.T) {
	base := &captureRT{}
	tr := New(injectingPipeline("injected"), WithBase(base), WithEndpoints([]string{"/nothing"}))

	body := []byte(`{"messages": [{"role": "user", "content": "hi"}]}`)
	_, err := tr.RoundTrip(post(t, "https://api.openai.com/v1/chat/completions", body))
	require.NoError(t, err)
	assert.Equal(t, body, base.body, "no match before swap")

	tr.SetEndpoints([]string{"/chat/completions"})
	_, err = tr.RoundTrip(post(t, "https://api.openai.com/v1/chat/completions", body))
	require.NoError(t, err)
	assert.Contains(t, string(base.body), "injected")
}

func TestInstallTransport_Restores(t *testing.T) {
	prev := http.DefaultTransport
	restore := InstallTransport(New(injectingPipeline("x")))
	assert.NotEqual(t, prev, http.DefaultTransport)
	restore()
	assert.Equal(t, prev, http.DefaultTransport)
}
