package simserver

import (
	"sync/atomic"

	"github.com/pmaojo/apicentric/pkg/bucket"
	"github.com/pmaojo/apicentric/pkg/spec"
)

// routingTable is the immutable snapshot a request is matched against. A
// reload (§5) builds a new table and swaps the pointer atomically; in-flight
// requests keep using the table they started with.
type routingTable struct {
	service *spec.Service
	bucket  *bucket.Bucket
}

// router holds the copy-on-write pointer described in §5: reads are
// lock-free, writes swap an atomically replaced pointer.
type router struct {
	current atomic.Pointer[routingTable]
}

func newRouter(svc *spec.Service) *router {
	r := &router{}
	r.Swap(svc)
	return r
}

// Swap installs a new service definition as the active routing table. The
// new bucket starts from svc's bucket seed; on every swap after the first,
// the previous bucket's top-level keys are copied over it, so existing keys
// keep their current values and only keys new to the seed take seed values.
func (r *router) Swap(svc *spec.Service) {
	prev := r.current.Load()
	b := bucket.New(svc.Bucket)
	if prev != nil {
		for k, v := range prev.bucket.Snapshot() {
			b.Set(k, v)
		}
	}
	r.current.Store(&routingTable{service: svc, bucket: b})
}

func (r *router) Load() *routingTable {
	return r.current.Load()
}
