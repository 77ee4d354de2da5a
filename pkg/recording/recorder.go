package recording

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pmaojo/apicentric/pkg/apierrors"
	"github.com/pmaojo/apicentric/pkg/spec"
)

// proxyTimeout bounds how long a recording proxy forward may take before
// the caller gets KindUpstreamTimeout.
const proxyTimeout = 30 * time.Second

// hopByHopHeaders must not be copied across a proxy hop (RFC 7230 §6.1).
var hopByHopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailers", "Transfer-Encoding", "Upgrade",
}

// Recorder forwards unmatched requests to a service's configured upstream
// and appends newly observed endpoints back into the service definition.
type Recorder struct {
	client *http.Client

	mu       sync.Mutex
	inFlight map[string]chan struct{} // dedup key -> done signal
}

// NewRecorder creates a Recorder with the standard proxy timeout.
func NewRecorder() *Recorder {
	return &Recorder{
		client:   &http.Client{Timeout: proxyTimeout},
		inFlight: make(map[string]chan struct{}),
	}
}

// Forward proxies r to upstreamBase, stripping hop-by-hop headers, and
// returns the upstream's status, headers, and body.
func (rec *Recorder) Forward(ctx context.Context, upstreamBase string, r *http.Request, body []byte) (*http.Response, []byte, error) {
	target := strings.TrimRight(upstreamBase, "/") + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	proxyCtx, cancel := context.WithTimeout(ctx, proxyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(proxyCtx, r.Method, target, newBodyReader(body))
	if err != nil {
		return nil, nil, apierrors.Wrap(apierrors.KindUpstreamUnreachable, target, err)
	}
	req.Header = r.Header.Clone()
	stripHopByHop(req.Header)

	resp, err := rec.client.Do(req)
	if err != nil {
		if proxyCtx.Err() != nil {
			return nil, nil, apierrors.New(apierrors.KindUpstreamTimeout, target, "upstream did not respond in time")
		}
		return nil, nil, apierrors.Wrap(apierrors.KindUpstreamUnreachable, target, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, apierrors.Wrap(apierrors.KindUpstreamUnreachable, target, err)
	}
	return resp, respBody, nil
}

func stripHopByHop(h http.Header) {
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
}

func newBodyReader(body []byte) io.Reader {
	if len(body) == 0 {
		return nil
	}
	return strings.NewReader(string(body))
}

// dedupKey identifies a single normalized (method, path) pair within a
// service's recording stream so concurrent requests to the same unmatched
// route don't race to append duplicate endpoints.
func dedupKey(method, normalizedPath string) string {
	return strings.ToUpper(method) + " " + normalizedPath
}

// Once runs fn at most once concurrently per (method, normalizedPath) key;
// callers that arrive while fn is running for the same key block until it
// finishes, then skip fn themselves (the winner's endpoint append already
// covers them on the next match pass).
func (rec *Recorder) Once(method, normalizedPath string, fn func() error) error {
	key := dedupKey(method, normalizedPath)

	rec.mu.Lock()
	if done, running := rec.inFlight[key]; running {
		rec.mu.Unlock()
		<-done
		return nil
	}
	done := make(chan struct{})
	rec.inFlight[key] = done
	rec.mu.Unlock()

	err := fn()

	rec.mu.Lock()
	delete(rec.inFlight, key)
	rec.mu.Unlock()
	close(done)

	return err
}

// BuildEndpoint constructs a new Endpoint from an observed unmatched
// request/response pair, using the normalized path as its route and the
// captured response as its sole (200-or-observed-status) response.
func BuildEndpoint(method, path string, status int, responseBody string, contentType string) *spec.Endpoint {
	return &spec.Endpoint{
		Method: strings.ToUpper(method),
		Path:   NormalizePath(path),
		Responses: map[int]*spec.ResponseSpec{
			status: {
				ContentType: contentType,
				Body:        responseBody,
			},
		},
	}
}
