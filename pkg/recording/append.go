package recording

import (
	"sync"

	"github.com/pmaojo/apicentric/pkg/spec"
)

// AppendEndpoint adds ep to svc (in memory and on disk) unless an endpoint
// with the same method and normalized path already exists, in which case
// it is a no-op. The service's SourcePath must be set.
func AppendEndpoint(svc *spec.Service, mu *sync.Mutex, ep *spec.Endpoint) (*spec.Service, error) {
	mu.Lock()
	defer mu.Unlock()

	for _, existing := range svc.Endpoints {
		if existing.Method == ep.Method && existing.Path == ep.Path {
			return svc, nil
		}
	}

	updated := svc.Clone()
	updated.Endpoints = append(updated.Endpoints, ep)

	if err := spec.Save(updated, svc.SourcePath); err != nil {
		return svc, err
	}

	return updated, nil
}
