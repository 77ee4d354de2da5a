// Package registry persists service metadata (name, source file, last
// allocated port, running state, definition hash) across restarts and
// reconciles it against the services directory on startup (§4.1, §5).
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/pmaojo/apicentric/pkg/apierrors"
	"github.com/pmaojo/apicentric/pkg/logging"
)

// Record is one service's persisted metadata.
type Record struct {
	Name       string `json:"name"`
	SourcePath string `json:"source_path"`
	LastPort   int    `json:"last_port"`
	Running    bool   `json:"running"`
	Hash       string `json:"hash"`
}

// Registry is a mutex-guarded, file-backed map of service name to Record.
type Registry struct {
	mu      sync.Mutex
	path    string
	records map[string]*Record
	log     *slog.Logger
}

// Open loads the registry file at path, creating an empty registry if the
// file does not yet exist.
func Open(path string, log *slog.Logger) (*Registry, error) {
	if log == nil {
		log = logging.Nop()
	}
	r := &Registry{path: path, records: make(map[string]*Record), log: log}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, apierrors.Wrap(apierrors.KindFileReadError, path, err)
	}
	if len(data) == 0 {
		return r, nil
	}

	var records []*Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, apierrors.Wrap(apierrors.KindFileReadError, path, err)
	}
	for _, rec := range records {
		r.records[rec.Name] = rec
	}
	return r, nil
}

// Hash computes the content hash used to detect a service definition
// changing on disk between runs.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Get returns the record for name, or nil if unknown.
func (r *Registry) Get(name string) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[name]
}

// All returns every currently known record, in no particular order.
func (r *Registry) All() []*Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

// Upsert records or updates a service's metadata and persists the registry.
func (r *Registry) Upsert(rec *Record) error {
	r.mu.Lock()
	r.records[rec.Name] = rec
	r.mu.Unlock()
	return r.save()
}

// Remove deletes a service's record and persists the registry.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	delete(r.records, name)
	r.mu.Unlock()
	return r.save()
}

// Reconcile compares the registry against the currently loaded service
// names and definition hashes. Records for services no longer present on
// disk are logged and dropped; records whose hash no longer matches are
// returned as changed so the caller can decide whether to restart them.
func (r *Registry) Reconcile(loaded map[string]string) (changed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, rec := range r.records {
		hash, ok := loaded[name]
		if !ok {
			r.log.Warn("removing orphaned registry entry", "service", name, "source", rec.SourcePath)
			delete(r.records, name)
			continue
		}
		if hash != rec.Hash {
			changed = append(changed, name)
		}
	}
	return changed
}

func (r *Registry) save() error {
	r.mu.Lock()
	records := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		records = append(records, rec)
	}
	r.mu.Unlock()

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return apierrors.Wrap(apierrors.KindFileWriteError, r.path, err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apierrors.Wrap(apierrors.KindFileWriteError, r.path, err)
	}

	tmp, err := os.CreateTemp(dir, ".registry-*.tmp")
	if err != nil {
		return apierrors.Wrap(apierrors.KindFileWriteError, r.path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apierrors.Wrap(apierrors.KindFileWriteError, r.path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return apierrors.Wrap(apierrors.KindFileWriteError, r.path, err)
	}
	if err := tmp.Close(); err != nil {
		return apierrors.Wrap(apierrors.KindFileWriteError, r.path, err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		return apierrors.Wrap(apierrors.KindFileWriteError, r.path, err)
	}
	return nil
}
