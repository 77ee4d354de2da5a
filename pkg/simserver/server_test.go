package simserver

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmaojo/apicentric/pkg/requestlog"
	"github.com/pmaojo/apicentric/pkg/spec"
)

func testService() *spec.Service {
	return &spec.Service{
		Name: "greeter",
		Server: spec.Server{
			BasePath: "/api",
		},
		Endpoints: []*spec.Endpoint{
			{
				Method: "GET",
				Path:   "/users/{id}",
				Responses: map[int]*spec.ResponseSpec{
					200: {ContentType: "application/json", Body: `{"id":"{{params.id}}"}`},
				},
			},
		},
	}
}

func startTestServer(t *testing.T, svc *spec.Service) *Server {
	t.Helper()
	srv := New(svc, nil)
	require.NoError(t, srv.Start(0))
	t.Cleanup(func() { _ = srv.Stop() })
	return srv
}

func TestServerMatchesAndRendersResponse(t *testing.T) {
	srv := startTestServer(t, testService())

	resp, err := http.Get(fmt.Sprintf("http://%s/api/users/42", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":"42"}`, string(body))
	assert.Equal(t, 1, srv.Logs().Count())
}

func TestServerReturns404OnNoMatch(t *testing.T) {
	srv := startTestServer(t, testService())

	resp, err := http.Get(fmt.Sprintf("http://%s/api/nope", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerAppliesDelay(t *testing.T) {
	svc := testService()
	svc.Endpoints[0].Responses[200].DelayMs = 50

	srv := startTestServer(t, svc)

	start := time.Now()
	resp, err := http.Get(fmt.Sprintf("http://%s/api/users/1", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestServerCORSPreflight(t *testing.T) {
	svc := testService()
	svc.Server.CORS = &spec.CORS{Enabled: true, Origins: []string{"*"}}

	srv := startTestServer(t, svc)

	req, err := http.NewRequest(http.MethodOptions, fmt.Sprintf("http://%s/api/users/1", srv.Addr()), nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://example.com")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServerRecordsUnknownRequestsViaUpstream(t *testing.T) {
	var upstreamHits int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamHits++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"recorded":true}`))
	}))
	defer upstream.Close()

	svc := testService()
	svc.Server.RecordUnknown = true
	svc.Server.ProxyBaseURL = upstream.URL

	dir := t.TempDir()
	svc.SourcePath = filepath.Join(dir, "greeter.yaml")
	require.NoError(t, os.WriteFile(svc.SourcePath, []byte("name: greeter\n"), 0o644))

	srv := startTestServer(t, svc)

	resp, err := http.Get(fmt.Sprintf("http://%s/api/orders/99", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"recorded":true}`, string(body))
	assert.Equal(t, 1, upstreamHits)

	logs := srv.Logs().Query(requestlog.Filter{})
	require.NotEmpty(t, logs)
	assert.Equal(t, "recorded-proxy", string(logs[0].Source))

	recorded := srv.Service()
	require.Len(t, recorded.Endpoints, 2)
	assert.Equal(t, "/orders/{param_0}", recorded.Endpoints[1].Path,
		"recorded path must be relative to base_path, not include it")

	// A follow-up request to a different id under the same pattern must match
	// the newly recorded endpoint directly, without re-proxying upstream.
	resp2, err := http.Get(fmt.Sprintf("http://%s/api/orders/13", srv.Addr()))
	require.NoError(t, err)
	defer resp2.Body.Close()

	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.Equal(t, 1, upstreamHits, "second request must match the recorded endpoint, not hit upstream again")
}
