package manager

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmaojo/apicentric/pkg/apierrors"
	"github.com/pmaojo/apicentric/pkg/registry"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	reg, err := registry.Open(filepath.Join(dir, "registry.json"), nil)
	require.NoError(t, err)
	return New(dir, 20000, 20100, reg, nil)
}

func writeService(t *testing.T, m *Manager, name string) []byte {
	t.Helper()
	data := []byte(fmt.Sprintf(`
name: %s
server:
  base_path: /api
endpoints:
  - method: GET
    path: /ping
    responses:
      200:
        content_type: application/json
        body: '{"ok":true}'
`, name))
	path := filepath.Join(m.servicesDir, name+".yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return data
}

func TestManagerCreateStartsService(t *testing.T) {
	m := newTestManager(t)
	data := []byte(`
name: greeter
server:
  base_path: /api
endpoints:
  - method: GET
    path: /ping
    responses:
      200:
        content_type: application/json
        body: '{"ok":true}'
`)

	svc, err := m.Create(data)
	require.NoError(t, err)
	require.Equal(t, "greeter", svc.Name)

	status, err := m.StatusOf("greeter")
	require.NoError(t, err)
	assert.Equal(t, StateRunning, status.State)
	assert.NotZero(t, status.Port)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/ping", status.Port))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, m.Stop("greeter"))
}

func TestManagerCreateDuplicateNameFails(t *testing.T) {
	m := newTestManager(t)
	data := writeService(t, m, "dup")
	_, err := m.Create(data)
	require.NoError(t, err)

	_, err = m.Create(data)
	require.Error(t, err)
	assert.True(t, apierrors.Is(err, apierrors.KindServiceAlreadyExists))
}

func TestManagerStartUnknownServiceFails(t *testing.T) {
	m := newTestManager(t)
	err := m.Start("nope")
	require.Error(t, err)
	assert.True(t, apierrors.Is(err, apierrors.KindServiceNotFound))
}

func TestManagerStopNotRunningFails(t *testing.T) {
	m := newTestManager(t)
	data := writeService(t, m, "idle")
	_, loadErrs, err := m.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, loadErrs)
	_ = data

	err = m.Stop("idle")
	require.Error(t, err)
	assert.True(t, apierrors.Is(err, apierrors.KindServiceNotRunning))
}

func TestManagerConcurrentStartOnlyOneSucceeds(t *testing.T) {
	m := newTestManager(t)
	writeService(t, m, "race")
	_, _, err := m.LoadAll()
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Start("race")
		}(i)
	}
	wg.Wait()

	successes, alreadyRunning := 0, 0
	for _, e := range errs {
		switch {
		case e == nil:
			successes++
		case apierrors.Is(e, apierrors.KindServiceAlreadyRunning):
			alreadyRunning++
		default:
			t.Fatalf("unexpected error: %v", e)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, alreadyRunning)

	require.NoError(t, m.Stop("race"))
}

func TestManagerUpdateRestartsRunningService(t *testing.T) {
	m := newTestManager(t)
	data := writeService(t, m, "svc")
	svc, err := m.Create(data)
	require.NoError(t, err)

	statusBefore, err := m.StatusOf(svc.Name)
	require.NoError(t, err)
	oldPort := statusBefore.Port

	updated := []byte(`
name: svc
server:
  base_path: /api
endpoints:
  - method: GET
    path: /ping
    responses:
      200:
        content_type: application/json
        body: '{"ok":false}'
  - method: GET
    path: /health
    responses:
      200:
        content_type: application/json
        body: '{"healthy":true}'
`)
	require.NoError(t, m.Update("svc", updated))

	status, err := m.StatusOf("svc")
	require.NoError(t, err)
	assert.Equal(t, StateRunning, status.State)
	assert.Equal(t, 2, status.EndpointCount)
	assert.Equal(t, oldPort, status.Port)

	require.NoError(t, m.Stop("svc"))
}

func TestManagerDeleteRemovesDefinitionFile(t *testing.T) {
	m := newTestManager(t)
	data := writeService(t, m, "gone")
	svc, err := m.Create(data)
	require.NoError(t, err)

	require.NoError(t, m.Delete(svc.Name))

	_, err = os.Stat(filepath.Join(m.servicesDir, "gone.yaml"))
	assert.True(t, os.IsNotExist(err))

	_, _, err = m.Get("gone")
	require.Error(t, err)
	assert.True(t, apierrors.Is(err, apierrors.KindServiceNotFound))
}

func TestManagerListReturnsSortedSummaries(t *testing.T) {
	m := newTestManager(t)
	writeService(t, m, "bravo")
	writeService(t, m, "alpha")
	_, _, err := m.LoadAll()
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "bravo", list[1].Name)
}
