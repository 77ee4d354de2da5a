// Package id provides unique identifier generation for request log entries,
// independent of the google/uuid dependency used by the template engine's
// {{uuid}} helper.
package id

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// ULID generates a 26-character, time-sortable, collision-free identifier.
// Used for request log entry IDs, so IDs sort in creation order.
func ULID() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Short returns a 16-character random hex ID, for contexts where brevity
// matters more than time ordering.
func Short() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}
