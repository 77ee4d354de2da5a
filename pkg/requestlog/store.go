package requestlog

import (
	"encoding/csv"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pmaojo/apicentric/internal/id"
)

// Filter narrows a Query call. Zero values are "no constraint". MaxResults
// defaults to 100 and is capped at 10000 (§4.6).
type Filter struct {
	Service    string
	Method     string
	Status     int
	PathSubstr string
	Since      time.Time
	Until      time.Time
	MaxResults int
}

const (
	defaultMaxResults = 100
	hardMaxResults    = 10000
)

// Subscriber receives entries as they are appended.
type Subscriber chan *Entry

// Store is an in-memory, bounded, subscribable append log. One Store
// instance exists per running service.
type Store struct {
	mu       sync.RWMutex
	entries  []*Entry
	capacity int

	subMu sync.RWMutex
	subs  map[Subscriber]struct{}
}

// New creates a Store holding at most capacity entries (oldest evicted
// first). capacity <= 0 defaults to 10000.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = hardMaxResults
	}
	return &Store{
		entries:  make([]*Entry, 0, capacity),
		capacity: capacity,
		subs:     make(map[Subscriber]struct{}),
	}
}

// Append records entry, assigning it an ID and timestamp if unset, evicts
// the oldest entry if at capacity, and notifies subscribers.
func (s *Store) Append(entry *Entry) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = id.ULID()
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}

	s.mu.Lock()
	if len(s.entries) >= s.capacity {
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, entry)
	s.mu.Unlock()

	s.subMu.RLock()
	for sub := range s.subs {
		select {
		case sub <- entry:
		default:
		}
	}
	s.subMu.RUnlock()
}

// Query returns entries matching filter, newest first.
func (s *Store) Query(filter Filter) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	max := filter.MaxResults
	if max <= 0 {
		max = defaultMaxResults
	}
	if max > hardMaxResults {
		max = hardMaxResults
	}

	out := make([]*Entry, 0, max)
	for i := len(s.entries) - 1; i >= 0 && len(out) < max; i-- {
		e := s.entries[i]
		if matches(e, filter) {
			out = append(out, e)
		}
	}
	return out
}

func matches(e *Entry, f Filter) bool {
	if f.Service != "" && e.Service != f.Service {
		return false
	}
	if f.Method != "" && !strings.EqualFold(e.Method, f.Method) {
		return false
	}
	if f.Status != 0 && e.Status != f.Status {
		return false
	}
	if f.PathSubstr != "" && !strings.Contains(e.Path, f.PathSubstr) {
		return false
	}
	if !f.Since.IsZero() && e.At.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.At.After(f.Until) {
		return false
	}
	return true
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = s.entries[:0]
}

// Count returns the number of stored entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Subscribe registers a channel to receive every newly appended entry and
// returns an unsubscribe function.
func (s *Store) Subscribe() (Subscriber, func()) {
	sub := make(Subscriber, 32)
	s.subMu.Lock()
	s.subs[sub] = struct{}{}
	s.subMu.Unlock()

	return sub, func() {
		s.subMu.Lock()
		delete(s.subs, sub)
		s.subMu.Unlock()
		close(sub)
	}
}

// ExportFormat selects the encoding for Export.
type ExportFormat string

// Supported export formats.
const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

// Export renders filter's matching entries in the given format.
func (s *Store) Export(filter Filter, format ExportFormat) ([]byte, error) {
	entries := s.Query(filter)

	if format == ExportCSV {
		return exportCSV(entries)
	}
	return json.MarshalIndent(entries, "", "  ")
}

func exportCSV(entries []*Entry) ([]byte, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	header := []string{"id", "service", "at", "method", "path", "status", "duration_ms", "source"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, e := range entries {
		row := []string{
			e.ID, e.Service, e.At.Format(time.RFC3339), e.Method, e.Path,
			strconv.Itoa(e.Status), strconv.FormatInt(e.DurationMs, 10), string(e.Source),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}
