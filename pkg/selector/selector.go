// Package selector resolves the response an endpoint should return for a
// given request (§4.3): named scenario overrides take priority, then
// conditional responses, then anonymous scenario rotation, then the
// lowest-numbered declared status as a deterministic fallback.
package selector

import (
	"crypto/rand"
	"math/big"
	"sort"
	"sync"

	"github.com/pmaojo/apicentric/pkg/spec"
	"github.com/pmaojo/apicentric/pkg/template"
)

// Rotators holds the sequential round-robin counters for an endpoint's
// anonymous scenarios, keyed by endpoint index so two endpoints never
// share a counter.
type Rotators struct {
	mu      sync.Mutex
	counter map[int]int
}

// NewRotators creates an empty rotation-state store for one service.
func NewRotators() *Rotators {
	return &Rotators{counter: make(map[int]int)}
}

func (r *Rotators) next(endpointIndex, n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.counter[endpointIndex] % n
	r.counter[endpointIndex]++
	return i
}

// Selection pairs a resolved response with the HTTP status it should be
// served under.
type Selection struct {
	Response *spec.ResponseSpec
	Status   int
}

// Select picks the response to render for ep given the rendered template
// context. endpointIndex identifies ep within its service, for rotation
// bookkeeping. Returns (Selection{}, false) if the endpoint has no usable
// response, which the caller maps to KindNoResponseConfigured.
func Select(ep *spec.Endpoint, endpointIndex int, ctx *template.Context, rot *Rotators, engine *template.Engine) (Selection, bool) {
	if rs := selectNamedScenario(ep, ctx, engine); rs != nil {
		return Selection{Response: rs, Status: statusOf(rs, 200)}, true
	}
	if rs, status := selectConditionalResponse(ep, ctx, engine); rs != nil {
		return Selection{Response: rs, Status: status}, true
	}
	if rs := selectScenarioRotation(ep, endpointIndex, ctx, rot); rs != nil {
		return Selection{Response: rs, Status: statusOf(rs, 200)}, true
	}
	if rs, status := selectLowestStatus(ep); rs != nil {
		return Selection{Response: rs, Status: status}, true
	}
	return Selection{}, false
}

// statusOf returns rs.Status if set, otherwise fallback.
func statusOf(rs *spec.ResponseSpec, fallback int) int {
	if rs.Status != 0 {
		return rs.Status
	}
	return fallback
}

// selectNamedScenario returns the response of the first named scenario
// whose conditions match. Named scenarios are matched purely by their
// condition clause; one with no conditions is skipped here.
func selectNamedScenario(ep *spec.Endpoint, ctx *template.Context, engine *template.Engine) *spec.ResponseSpec {
	for _, sc := range ep.Scenarios {
		if !sc.IsNamed() || sc.Conditions == "" {
			continue
		}
		matched, err := engine.EvaluateCondition(sc.Conditions, ctx)
		if err != nil || !matched {
			continue
		}
		return sc.Response
	}
	return nil
}

// selectConditionalResponse returns the first declared response (by sorted
// status) whose Condition matches.
func selectConditionalResponse(ep *spec.Endpoint, ctx *template.Context, engine *template.Engine) (*spec.ResponseSpec, int) {
	for _, status := range sortedStatuses(ep.Responses) {
		rs := ep.Responses[status]
		if rs.Condition == "" {
			continue
		}
		matched, err := engine.EvaluateCondition(rs.Condition, ctx)
		if err != nil || !matched {
			continue
		}
		return rs, status
	}
	return nil, 0
}

// selectScenarioRotation advances and applies the endpoint's anonymous
// (unnamed, unconditioned) scenario rotation, sequential by default or
// uniform-random when Strategy == "random".
func selectScenarioRotation(ep *spec.Endpoint, endpointIndex int, ctx *template.Context, rot *Rotators) *spec.ResponseSpec {
	var anon []*spec.Scenario
	for _, sc := range ep.Scenarios {
		if !sc.IsNamed() {
			anon = append(anon, sc)
		}
	}
	if len(anon) == 0 {
		return nil
	}

	if anon[0].Strategy == "random" {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(anon))))
		if err != nil {
			return anon[0].Response
		}
		return anon[n.Int64()].Response
	}

	idx := rot.next(endpointIndex, len(anon))
	return anon[idx].Response
}

// selectLowestStatus falls back to the response with the smallest declared
// status code, the deterministic default when nothing else applies.
func selectLowestStatus(ep *spec.Endpoint) (*spec.ResponseSpec, int) {
	statuses := sortedStatuses(ep.Responses)
	if len(statuses) == 0 {
		return nil, 0
	}
	return ep.Responses[statuses[0]], statuses[0]
}

func sortedStatuses(responses map[int]*spec.ResponseSpec) []int {
	out := make([]int, 0, len(responses))
	for status := range responses {
		out = append(out, status)
	}
	sort.Ints(out)
	return out
}
