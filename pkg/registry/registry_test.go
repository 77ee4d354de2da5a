package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertPersistsAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")

	r, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, r.Upsert(&Record{Name: "svc-a", SourcePath: "a.yaml", LastPort: 9001, Hash: "h1"}))

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	rec := reopened.Get("svc-a")
	require.NotNil(t, rec)
	assert.Equal(t, 9001, rec.LastPort)
}

func TestReconcileDropsOrphans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	r, err := Open(path, nil)
	require.NoError(t, err)

	require.NoError(t, r.Upsert(&Record{Name: "svc-a", Hash: "h1"}))
	require.NoError(t, r.Upsert(&Record{Name: "svc-b", Hash: "h2"}))

	changed := r.Reconcile(map[string]string{"svc-a": "h1"})
	assert.Empty(t, changed)
	assert.Nil(t, r.Get("svc-b"))
	assert.NotNil(t, r.Get("svc-a"))
}

func TestReconcileReportsChangedHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	r, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, r.Upsert(&Record{Name: "svc-a", Hash: "h1"}))

	changed := r.Reconcile(map[string]string{"svc-a": "h2"})
	assert.Equal(t, []string{"svc-a"}, changed)
}

func TestHashStable(t *testing.T) {
	assert.Equal(t, Hash([]byte("x")), Hash([]byte("x")))
	assert.NotEqual(t, Hash([]byte("x")), Hash([]byte("y")))
}

func TestAllReturnsEveryRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	r, err := Open(path, nil)
	require.NoError(t, err)

	require.NoError(t, r.Upsert(&Record{Name: "svc-a", Hash: "h1"}))
	require.NoError(t, r.Upsert(&Record{Name: "svc-b", Hash: "h2"}))

	names := map[string]bool{}
	for _, rec := range r.All() {
		names[rec.Name] = true
	}
	assert.Equal(t, map[string]bool{"svc-a": true, "svc-b": true}, names)
}
