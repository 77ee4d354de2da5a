package script

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmaojo/apicentric/pkg/bucket"
	"github.com/pmaojo/apicentric/pkg/template"
)

func newCtx(t *testing.T) *template.Context {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"qty":3}`))
	req.Header.Set("Content-Type", "application/json")
	body, err := template.ReadBody(req)
	require.NoError(t, err)
	b := bucket.New(map[string]any{"count": float64(0)})
	return template.NewContext(req, body, nil, b)
}

func TestRunMergesResultIntoRuntime(t *testing.T) {
	ctx := newCtx(t)
	values, err := Run(`result.total = request.body.qty * 2;`, ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), int64(values["total"].(float64)))
}

func TestRunCanMutateBucket(t *testing.T) {
	ctx := newCtx(t)
	_, err := Run(`bucket.set("count", bucket.get("count") + 1);`, ctx)
	require.NoError(t, err)
	v, ok := ctx.Bucket.Get("count")
	require.True(t, ok)
	assert.Equal(t, float64(1), v)
}

func TestRunTimeout(t *testing.T) {
	ctx := newCtx(t)
	_, err := Run(`while (true) {}`, ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestRunScriptError(t *testing.T) {
	ctx := newCtx(t)
	_, err := Run(`throw new Error("boom")`, ctx)
	require.Error(t, err)
}

func TestLoadAndRunReadsFileRelativeToBaseDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "hooks"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "hooks", "enrich.js"),
		[]byte(`result.total = request.body.qty * 2;`),
		0o644,
	))

	ctx := newCtx(t)
	values, err := LoadAndRun("hooks/enrich.js", dir, ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), int64(values["total"].(float64)))
}

func TestLoadAndRunMissingFileFails(t *testing.T) {
	ctx := newCtx(t)
	_, err := LoadAndRun("hooks/missing.js", t.TempDir(), ctx)
	require.Error(t, err)
}
