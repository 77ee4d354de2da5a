package manager

import (
	"sync"

	"github.com/pmaojo/apicentric/pkg/simserver"
	"github.com/pmaojo/apicentric/pkg/spec"
)

// entry tracks one service's in-memory lifecycle state. Its mutex serializes
// state transitions for that service only; Manager.mu guards the entries map
// itself (add/remove), not the per-service fields below.
type entry struct {
	mu sync.Mutex

	service *spec.Service
	hash    string
	state   State
	port    int
	server  *simserver.Server
	reason  string
}

func newEntry(svc *spec.Service, hash string) *entry {
	return &entry{service: svc, hash: hash, state: StateStopped}
}

func (e *entry) summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Summary{
		Name:          e.service.Name,
		Port:          e.port,
		IsRunning:     e.state == StateRunning,
		EndpointCount: len(e.service.Endpoints),
	}
}

func (e *entry) status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Name:          e.service.Name,
		State:         e.state,
		Port:          e.port,
		EndpointCount: len(e.service.Endpoints),
		FailReason:    e.reason,
	}
}
