package template

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, body string) *Context {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/users/42?active=true", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Trace", "abc123")
	b, err := ReadBody(req)
	require.NoError(t, err)
	ctx := NewContext(req, b, map[string]any{"tier": "gold"}, nil)
	ctx.WithPathParams(map[string]string{"id": "42"})
	ctx.RequestID = "req-1"
	return ctx
}

func TestProcessSimpleSubstitution(t *testing.T) {
	ctx := newTestContext(t, `{"name":"Ada"}`)
	e := New()

	out, err := e.Process(`hello {{request.body.name}} param {{params.id}}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello Ada param 42", out)
}

func TestProcessHeaderAndQuery(t *testing.T) {
	ctx := newTestContext(t, `{}`)
	e := New()

	out, err := e.Process(`{{request.header.X-Trace}}/{{request.query.active}}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc123/true", out)
}

func TestProcessEachBlock(t *testing.T) {
	ctx := newTestContext(t, `{}`)
	ctx.Fixtures["items"] = []any{"a", "b", "c"}
	e := New()

	out, err := e.Process(`{{#each fixtures.items}}[{{fixtures.item}}]{{/each}}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "[a][b][c]", out)
}

func TestProcessIfElseBlock(t *testing.T) {
	ctx := newTestContext(t, `{}`)
	e := New()

	out, err := e.Process(`{{#if params.id}}has-id{{else}}no-id{{/if}}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "has-id", out)

	out2, err := e.Process(`{{#unless params.missing}}absent{{/unless}}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "absent", out2)
}

func TestProcessWithBlock(t *testing.T) {
	ctx := newTestContext(t, `{"user":{"name":"Grace"}}`)
	e := New()

	out, err := e.Process(`{{#with request.body.user}}hi {{fixtures.item.name}}{{/with}}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "hi Grace", out)
}

func TestSequenceIncrements(t *testing.T) {
	ctx := newTestContext(t, `{}`)
	e := New()

	first, _ := e.Process(`{{sequence counter}}`, ctx)
	second, _ := e.Process(`{{sequence counter}}`, ctx)
	assert.Equal(t, "0", first)
	assert.Equal(t, "1", second)
}

func TestRandomPicksFromLiteralSet(t *testing.T) {
	ctx := newTestContext(t, `{}`)
	e := New()

	choices := map[string]bool{"pending": true, "shipped": true, "delivered": true}
	for i := 0; i < 20; i++ {
		out, err := e.Process(`{{random pending, shipped, delivered}}`, ctx)
		require.NoError(t, err)
		assert.True(t, choices[out], "unexpected random value %q", out)
	}
}

func TestFakerDeterministicWithinRequest(t *testing.T) {
	ctx := newTestContext(t, `{}`)
	e := New()

	first, _ := e.Process(`{{faker.email}}`, ctx)
	second, _ := e.Process(`{{faker.email}}`, ctx)
	assert.Equal(t, first, second)
	assert.Contains(t, first, "@")
}

func TestCheckRejectsUnbalancedBlock(t *testing.T) {
	err := Check(`{{#each fixtures.items}}no close`)
	assert.Error(t, err)
}

func TestCheckAcceptsWellFormedTemplate(t *testing.T) {
	err := Check(`{{#if request.body.ok}}{{request.body.value}}{{/if}}`)
	assert.NoError(t, err)
}

func TestConditionEvaluation(t *testing.T) {
	ctx := newTestContext(t, `{"name":"Ada"}`)
	e := New()

	eqMatch, err := e.EvaluateCondition(`{{eq request.body.name "Ada"}}`, ctx)
	require.NoError(t, err)
	assert.True(t, eqMatch)

	neqMatch, err := e.EvaluateCondition(`{{not eq request.body.name "Bob"}}`, ctx)
	require.NoError(t, err)
	assert.True(t, neqMatch)

	negMatch, err := e.EvaluateCondition(`{{not params.missing}}`, ctx)
	require.NoError(t, err)
	assert.True(t, negMatch)
}

func TestConditionEvaluationFalsy(t *testing.T) {
	ctx := newTestContext(t, `{}`)
	e := New()

	match, err := e.EvaluateCondition(`{{not request.body.customer_id}}`, ctx)
	require.NoError(t, err)
	assert.True(t, match, "missing customer_id should render the negated condition truthy")

	ctxWithID := newTestContext(t, `{"customer_id":"abc"}`)
	match, err = e.EvaluateCondition(`{{not request.body.customer_id}}`, ctxWithID)
	require.NoError(t, err)
	assert.False(t, match, "present customer_id should render the negated condition falsy")
}

func TestEvaluateConditionRejectsMalformedTemplate(t *testing.T) {
	e := New()
	_, err := e.EvaluateCondition(`{{#each fixtures.items}}unclosed`, newTestContext(t, `{}`))
	assert.Error(t, err)
}
