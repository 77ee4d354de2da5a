package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestULIDLength(t *testing.T) {
	u := ULID()
	assert.Len(t, u, 26)
}

func TestULIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		u := ULID()
		assert.False(t, seen[u], "duplicate ULID generated")
		seen[u] = true
	}
}

func TestULIDMonotonicWithinSameMillisecond(t *testing.T) {
	a := ULID()
	b := ULID()
	assert.NotEqual(t, a, b)
	assert.LessOrEqual(t, a, b)
}

func TestShortLength(t *testing.T) {
	s := Short()
	assert.Len(t, s, 16)
}
