// Package portalloc allocates listener ports for services from a
// configured inclusive range (§4.1, §5).
package portalloc

import (
	"sync"

	"github.com/pmaojo/apicentric/pkg/apierrors"
)

// Allocator hands out ports from [Low, High], tracking which are currently
// in use so concurrent service starts never collide.
type Allocator struct {
	mu   sync.Mutex
	low  int
	high int
	used map[int]bool
	next int
}

// New creates an Allocator over the inclusive range [low, high].
func New(low, high int) *Allocator {
	return &Allocator{low: low, high: high, used: make(map[int]bool), next: low}
}

// Allocate reserves and returns an unused port. If preferred is non-zero
// and free, it is used directly (the service's explicit server.port).
func (a *Allocator) Allocate(preferred int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if preferred != 0 {
		if a.used[preferred] {
			return 0, apierrors.New(apierrors.KindPortBindFailed, "", "preferred port already in use")
		}
		a.used[preferred] = true
		return preferred, nil
	}

	for i := 0; i < (a.high - a.low + 1); i++ {
		port := a.next
		a.next++
		if a.next > a.high {
			a.next = a.low
		}
		if !a.used[port] {
			a.used[port] = true
			return port, nil
		}
	}

	return 0, apierrors.New(apierrors.KindPortRangeExhausted, "",
		"no free ports in configured range")
}

// Release returns port to the free pool.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.used, port)
}

// Reserve marks port as used without going through Allocate, for restoring
// state from the persisted registry on startup.
func (a *Allocator) Reserve(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.used[port] = true
}
