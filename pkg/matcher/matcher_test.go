package matcher

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmaojo/apicentric/pkg/spec"
)

func TestMatchPrefersExactOverParametric(t *testing.T) {
	endpoints := []*spec.Endpoint{
		{Method: "GET", Path: "/users/{id}", Responses: map[int]*spec.ResponseSpec{200: {Body: "param"}}},
		{Method: "GET", Path: "/users/42", Responses: map[int]*spec.ResponseSpec{200: {Body: "exact"}}},
	}

	r := httptest.NewRequest(http.MethodGet, "/users/42", nil)
	res, ok := Match(endpoints, "", r, nil)
	require.True(t, ok)
	assert.Equal(t, 1, res.Index)
}

func TestMatchParametricExtractsParams(t *testing.T) {
	endpoints := []*spec.Endpoint{
		{Method: "GET", Path: "/users/{id}/posts/{postId}"},
	}
	r := httptest.NewRequest(http.MethodGet, "/users/7/posts/99", nil)
	res, ok := Match(endpoints, "", r, nil)
	require.True(t, ok)
	assert.Equal(t, "7", res.PathParams["id"])
	assert.Equal(t, "99", res.PathParams["postId"])
}

func TestMatchRegexPath(t *testing.T) {
	endpoints := []*spec.Endpoint{
		{Method: "GET", Path: `^/files/(?P<name>[a-z]+\.txt)$`},
	}
	r := httptest.NewRequest(http.MethodGet, "/files/report.txt", nil)
	res, ok := Match(endpoints, "", r, nil)
	require.True(t, ok)
	assert.Equal(t, "report.txt", res.PathParams["name"])
}

func TestMatchHeaderPredicate(t *testing.T) {
	endpoints := []*spec.Endpoint{
		{Method: "GET", Path: "/ping", HeaderMatch: map[string]string{"X-Env": "^prod.*"}},
	}

	miss := httptest.NewRequest(http.MethodGet, "/ping", nil)
	miss.Header.Set("X-Env", "staging")
	_, ok := Match(endpoints, "", miss, nil)
	assert.False(t, ok)

	hit := httptest.NewRequest(http.MethodGet, "/ping", nil)
	hit.Header.Set("X-Env", "prod-east")
	_, ok = Match(endpoints, "", hit, nil)
	assert.True(t, ok)
}

func TestMatchBodyFieldPredicate(t *testing.T) {
	endpoints := []*spec.Endpoint{
		{Method: "POST", Path: "/orders", BodyMatch: map[string]any{"type": "premium"}},
	}

	body := `{"type":"premium","qty":2}`
	r := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	res, ok := Match(endpoints, "", r, []byte(body))
	require.True(t, ok)
	assert.Equal(t, 0, res.Index)

	other := `{"type":"basic"}`
	r2 := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(other))
	_, ok = Match(endpoints, "", r2, []byte(other))
	assert.False(t, ok)
}

func TestMatchNoEndpointsNoMatch(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/nothing", nil)
	_, ok := Match(nil, "", r, nil)
	assert.False(t, ok)
}

func TestMatchStripsBasePath(t *testing.T) {
	endpoints := []*spec.Endpoint{{Method: "GET", Path: "/widgets"}}
	r := httptest.NewRequest(http.MethodGet, "/api/v1/widgets", nil)
	res, ok := Match(endpoints, "/api/v1", r, nil)
	require.True(t, ok)
	assert.Equal(t, 0, res.Index)
}
