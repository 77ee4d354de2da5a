// Package manager orchestrates every other core component (§4.10, §K):
// spec loading, port allocation, the service registry, and per-service
// simserver instances, exposing list/get/create/update/delete/start/
// stop/status/reload as the one control surface the CLI and any future
// front-end call through.
package manager

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pmaojo/apicentric/pkg/apierrors"
	"github.com/pmaojo/apicentric/pkg/logging"
	"github.com/pmaojo/apicentric/pkg/portalloc"
	"github.com/pmaojo/apicentric/pkg/registry"
	"github.com/pmaojo/apicentric/pkg/requestlog"
	"github.com/pmaojo/apicentric/pkg/simserver"
	"github.com/pmaojo/apicentric/pkg/spec"
)

// Manager owns every known service's lifecycle. One Manager exists per
// running process.
type Manager struct {
	mu          sync.RWMutex
	servicesDir string
	entries     map[string]*entry

	ports *portalloc.Allocator
	reg   *registry.Registry
	log   *slog.Logger
}

// New creates a Manager rooted at servicesDir, allocating ports from
// [portLow, portHigh] and persisting metadata through reg.
func New(servicesDir string, portLow, portHigh int, reg *registry.Registry, log *slog.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{
		servicesDir: servicesDir,
		entries:     make(map[string]*entry),
		ports:       portalloc.New(portLow, portHigh),
		reg:         reg,
		log:         log,
	}
}

// LoadAll scans servicesDir, registers every valid service as Stopped, and
// reconciles the persisted registry (§4.9): orphaned entries are dropped,
// entries whose on-disk hash changed are reported so the caller can decide
// whether to restart them. Per-file validation errors are returned alongside
// a successful load of everything else.
func (m *Manager) LoadAll() (changedSinceRegistry []string, loadErrs apierrors.InvalidSpecList, err error) {
	result, err := spec.LoadDir(m.servicesDir)
	if err != nil {
		return nil, nil, err
	}

	loaded := make(map[string]string, len(result.Services))

	m.mu.Lock()
	for _, svc := range result.Services {
		data, readErr := os.ReadFile(svc.SourcePath)
		hash := ""
		if readErr == nil {
			hash = registry.Hash(data)
		}
		loaded[svc.Name] = hash

		if existing := m.entries[svc.Name]; existing != nil {
			existing.mu.Lock()
			existing.service = svc
			existing.hash = hash
			existing.mu.Unlock()
			continue
		}

		port := 0
		if rec := m.reg.Get(svc.Name); rec != nil {
			port = rec.LastPort
		}
		e := newEntry(svc, hash)
		e.port = port
		if port != 0 {
			m.ports.Reserve(port)
		}
		m.entries[svc.Name] = e
	}
	m.mu.Unlock()

	changed := m.reg.Reconcile(loaded)
	return changed, result.Errors, nil
}

// List returns a summary of every known service.
func (m *Manager) List() []Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Summary, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the full definition plus raw YAML for name.
func (m *Manager) Get(name string) (*spec.Service, []byte, error) {
	e := m.find(name)
	if e == nil {
		return nil, nil, apierrors.New(apierrors.KindServiceNotFound, name, "service not found")
	}
	e.mu.Lock()
	svc := e.service
	e.mu.Unlock()

	raw, err := os.ReadFile(svc.SourcePath)
	if err != nil {
		return svc, nil, nil
	}
	return svc, raw, nil
}

// Create validates yamlData, persists it to servicesDir/<name>.yaml,
// registers it, and starts it.
func (m *Manager) Create(yamlData []byte) (*spec.Service, error) {
	svc, err := spec.ParseBytes(yamlData)
	if err != nil {
		return nil, err
	}

	if m.find(svc.Name) != nil {
		return nil, apierrors.New(apierrors.KindServiceAlreadyExists, svc.Name, "service already exists")
	}

	svc.SourcePath = filepath.Join(m.servicesDir, svc.Name+".yaml")
	if err := spec.Save(svc, svc.SourcePath); err != nil {
		return nil, err
	}

	m.mu.Lock()
	e := newEntry(svc, registry.Hash(yamlData))
	m.entries[svc.Name] = e
	m.mu.Unlock()

	if err := m.Start(svc.Name); err != nil {
		return svc, err
	}
	return svc, nil
}

// Update stops the service if running, validates and replaces its
// definition file atomically, reloads the routing table, and restarts it.
func (m *Manager) Update(name string, yamlData []byte) error {
	e := m.find(name)
	if e == nil {
		return apierrors.New(apierrors.KindServiceNotFound, name, "service not found")
	}

	svc, err := spec.ParseBytes(yamlData)
	if err != nil {
		return err
	}
	if svc.Name != name {
		return apierrors.New(apierrors.KindServiceNameMismatch, name,
			fmt.Sprintf("YAML declares name %q", svc.Name))
	}

	e.mu.Lock()
	wasRunning := e.state == StateRunning
	sourcePath := e.service.SourcePath
	e.mu.Unlock()

	if wasRunning {
		if err := m.Stop(name); err != nil {
			return err
		}
	}

	svc.SourcePath = sourcePath
	if err := spec.Save(svc, sourcePath); err != nil {
		return err
	}

	e.mu.Lock()
	e.service = svc
	e.hash = registry.Hash(yamlData)
	e.mu.Unlock()

	if wasRunning {
		return m.Start(name)
	}
	return nil
}

// Delete stops the service if running, frees its port, deletes its
// definition file, and removes it from the registry.
func (m *Manager) Delete(name string) error {
	e := m.find(name)
	if e == nil {
		return apierrors.New(apierrors.KindServiceNotFound, name, "service not found")
	}

	e.mu.Lock()
	running := e.state == StateRunning
	sourcePath := e.service.SourcePath
	e.mu.Unlock()

	if running {
		if err := m.Stop(name); err != nil {
			return err
		}
	}

	if err := os.Remove(sourcePath); err != nil && !os.IsNotExist(err) {
		return apierrors.Wrap(apierrors.KindFileWriteError, sourcePath, err)
	}
	if err := m.reg.Remove(name); err != nil {
		m.log.Warn("failed to remove registry entry", "service", name, "error", err)
	}

	m.mu.Lock()
	delete(m.entries, name)
	m.mu.Unlock()

	return nil
}

// Start allocates a port (reusing the last known one if still free), spawns
// the service's server task, and marks it Running. Concurrent Start calls
// for the same service are serialized by the entry's mutex; exactly one
// sees the transition to Running, the rest see ServiceAlreadyRunning.
func (m *Manager) Start(name string) error {
	e := m.find(name)
	if e == nil {
		return apierrors.New(apierrors.KindServiceNotFound, name, "service not found")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRunning || e.state == StateStarting {
		return apierrors.New(apierrors.KindServiceAlreadyRunning, name, "service already running")
	}
	e.state = StateStarting

	port, err := m.ports.Allocate(preferredPort(e))
	if err != nil {
		e.state = StateFailed
		e.reason = err.Error()
		return err
	}

	server := simserver.New(e.service, m.log.With("service", name))
	if err := server.Start(port); err != nil {
		m.ports.Release(port)
		e.state = StateFailed
		e.reason = err.Error()
		return err
	}

	e.server = server
	e.port = port
	e.state = StateRunning
	e.reason = ""

	if err := m.reg.Upsert(&registry.Record{
		Name: name, SourcePath: e.service.SourcePath, LastPort: port, Running: true, Hash: e.hash,
	}); err != nil {
		m.log.Warn("failed to persist registry after start", "service", name, "error", err)
	}

	return nil
}

func preferredPort(e *entry) int {
	if e.port != 0 {
		return e.port
	}
	return e.service.Server.Port
}

// Stop signals shutdown, drains in-flight requests (bounded inside
// simserver.Server.Stop), releases the port, and marks the service Stopped.
func (m *Manager) Stop(name string) error {
	e := m.find(name)
	if e == nil {
		return apierrors.New(apierrors.KindServiceNotFound, name, "service not found")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning {
		return apierrors.New(apierrors.KindServiceNotRunning, name, "service is not running")
	}
	e.state = StateStopping

	if err := e.server.Stop(); err != nil {
		e.state = StateFailed
		e.reason = err.Error()
		return err
	}

	m.ports.Release(e.port)
	e.server = nil
	e.state = StateStopped

	if err := m.reg.Upsert(&registry.Record{
		Name: name, SourcePath: e.service.SourcePath, LastPort: e.port, Running: false, Hash: e.hash,
	}); err != nil {
		m.log.Warn("failed to persist registry after stop", "service", name, "error", err)
	}

	return nil
}

// StatusOf returns the detailed lifecycle status for name.
func (m *Manager) StatusOf(name string) (Status, error) {
	e := m.find(name)
	if e == nil {
		return Status{}, apierrors.New(apierrors.KindServiceNotFound, name, "service not found")
	}
	return e.status(), nil
}

// Logs returns the request log store for a running service, or nil if the
// service is not currently running.
func (m *Manager) Logs(name string) *requestlog.Store {
	e := m.find(name)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.server == nil {
		return nil
	}
	return e.server.Logs()
}

// Reload rescans servicesDir; for each service whose on-disk hash changed,
// a running instance is stopped (draining in-flight requests) and then
// started again, so connections arriving between the two are refused; a
// stopped one just has its definition refreshed. Per-service errors are
// collected but never abort the batch.
func (m *Manager) Reload() []error {
	result, err := spec.LoadDir(m.servicesDir)
	if err != nil {
		return []error{err}
	}

	var errs []error
	seen := make(map[string]bool, len(result.Services))

	for _, svc := range result.Services {
		seen[svc.Name] = true

		data, readErr := os.ReadFile(svc.SourcePath)
		hash := ""
		if readErr == nil {
			hash = registry.Hash(data)
		}

		e := m.find(svc.Name)
		if e == nil {
			m.mu.Lock()
			newE := newEntry(svc, hash)
			m.entries[svc.Name] = newE
			m.mu.Unlock()
			continue
		}

		e.mu.Lock()
		if e.hash == hash {
			e.mu.Unlock()
			continue
		}
		wasRunning := e.state == StateRunning
		e.service = svc
		e.hash = hash
		e.mu.Unlock()

		if wasRunning {
			if err := m.Stop(svc.Name); err != nil {
				errs = append(errs, fmt.Errorf("%s: stop during reload: %w", svc.Name, err))
				continue
			}
			if err := m.Start(svc.Name); err != nil {
				errs = append(errs, fmt.Errorf("%s: start during reload: %w", svc.Name, err))
			}
		}
	}

	m.mu.RLock()
	names := make([]string, 0, len(m.entries))
	for n := range m.entries {
		names = append(names, n)
	}
	m.mu.RUnlock()

	for _, n := range names {
		if seen[n] {
			continue
		}
		if err := m.Delete(n); err != nil {
			errs = append(errs, fmt.Errorf("%s: removing orphaned service: %w", n, err))
		}
	}

	return errs
}

func (m *Manager) find(name string) *entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[name]
}
