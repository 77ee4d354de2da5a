package bucket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetReturnsSeededValue(t *testing.T) {
	b := New(map[string]any{"counter": float64(1)})

	v, ok := b.Get("counter")
	assert.True(t, ok)
	assert.Equal(t, float64(1), v)
}

func TestGetMissingKeyReturnsFalse(t *testing.T) {
	b := New(nil)

	_, ok := b.Get("missing")
	assert.False(t, ok)
}

func TestGetEmptyPathReturnsWholeTree(t *testing.T) {
	b := New(map[string]any{"a": float64(1)})

	v, ok := b.Get("")
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"a": float64(1)}, v)
}

func TestGetNestedPath(t *testing.T) {
	b := New(map[string]any{"user": map[string]any{"name": "ana"}})

	v, ok := b.Get("user.name")
	assert.True(t, ok)
	assert.Equal(t, "ana", v)
}

func TestGetIndexesIntoArrays(t *testing.T) {
	b := New(map[string]any{"items": []any{"a", "b", "c"}})

	v, ok := b.Get("items.1")
	assert.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestGetArrayIndexOutOfRangeReturnsFalse(t *testing.T) {
	b := New(map[string]any{"items": []any{"a"}})

	_, ok := b.Get("items.5")
	assert.False(t, ok)
}

func TestSetCreatesIntermediateMaps(t *testing.T) {
	b := New(nil)

	b.Set("user.profile.name", "ana")

	v, ok := b.Get("user.profile.name")
	assert.True(t, ok)
	assert.Equal(t, "ana", v)
}

func TestSetOverwritesExistingValue(t *testing.T) {
	b := New(map[string]any{"count": float64(1)})

	b.Set("count", float64(2))

	v, _ := b.Get("count")
	assert.Equal(t, float64(2), v)
}

func TestSetEmptyPathReplacesWholeTree(t *testing.T) {
	b := New(map[string]any{"old": "value"})

	b.Set("", map[string]any{"new": "value"})

	_, ok := b.Get("old")
	assert.False(t, ok)
	v, ok := b.Get("new")
	assert.True(t, ok)
	assert.Equal(t, "value", v)
}

func TestSnapshotReturnsIndependentCopy(t *testing.T) {
	b := New(map[string]any{"a": float64(1)})

	snap := b.Snapshot()
	snap["a"] = float64(2)

	v, _ := b.Get("a")
	assert.Equal(t, float64(1), v, "mutating the snapshot must not affect the bucket")
}
