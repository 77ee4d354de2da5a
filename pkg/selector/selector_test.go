package selector

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmaojo/apicentric/pkg/spec"
	"github.com/pmaojo/apicentric/pkg/template"
)

func blankCtx(t *testing.T) *template.Context {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/x?tier=gold", nil)
	return template.NewContext(r, nil, nil, nil)
}

func TestSelectLowestStatusFallback(t *testing.T) {
	ep := &spec.Endpoint{
		Responses: map[int]*spec.ResponseSpec{
			404: {Body: "missing"},
			200: {Body: "ok"},
		},
	}
	sel, ok := Select(ep, 0, blankCtx(t), NewRotators(), template.New())
	require.True(t, ok)
	assert.Equal(t, 200, sel.Status)
}

func TestSelectConditionalResponse(t *testing.T) {
	ep := &spec.Endpoint{
		Responses: map[int]*spec.ResponseSpec{
			200: {Body: "default"},
			402: {Body: "needs upgrade", Condition: `{{not eq request.query.tier "gold"}}`},
		},
	}
	sel, ok := Select(ep, 0, blankCtx(t), NewRotators(), template.New())
	require.True(t, ok)
	assert.Equal(t, 200, sel.Status, "tier is gold so the 402 condition should not match")
}

func TestSelectScenarioRotationSequential(t *testing.T) {
	ep := &spec.Endpoint{
		Scenarios: []*spec.Scenario{
			{Response: &spec.ResponseSpec{Status: 200, Body: "first"}},
			{Response: &spec.ResponseSpec{Status: 200, Body: "second"}},
		},
	}
	rot := NewRotators()
	ctx := blankCtx(t)
	engine := template.New()

	sel1, _ := Select(ep, 0, ctx, rot, engine)
	sel2, _ := Select(ep, 0, ctx, rot, engine)
	sel3, _ := Select(ep, 0, ctx, rot, engine)

	assert.Equal(t, "first", sel1.Response.Body)
	assert.Equal(t, "second", sel2.Response.Body)
	assert.Equal(t, "first", sel3.Response.Body, "rotation wraps around")
}

func TestSelectNamedScenarioOverride(t *testing.T) {
	ep := &spec.Endpoint{
		Responses: map[int]*spec.ResponseSpec{200: {Body: "default"}},
		Scenarios: []*spec.Scenario{
			{Name: "gold-tier", Conditions: `{{eq request.query.tier "gold"}}`, Response: &spec.ResponseSpec{Status: 200, Body: "gold-response"}},
		},
	}
	sel, ok := Select(ep, 0, blankCtx(t), NewRotators(), template.New())
	require.True(t, ok)
	assert.Equal(t, "gold-response", sel.Response.Body)
}

func TestSelectNoResponse(t *testing.T) {
	ep := &spec.Endpoint{}
	_, ok := Select(ep, 0, blankCtx(t), NewRotators(), template.New())
	assert.False(t, ok)
}
