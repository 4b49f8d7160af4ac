package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedBurstAndRefill(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	k := NewKeyed(1, 2)
	k.now = func() time.Time { return now }

	assert.True(t, k.Allow("kim@example.com"))
	assert.True(t, k.Allow("kim@example.com"))
	assert.False(t, k.Allow("kim@example.com"), "burst exhausted")
	assert.True(t, k.Allow("lee@example.com"), "keys are independent")

	now = now.Add(time.Minute)
	assert.True(t, k.Allow("kim@example.com"), "one token refilled")
	assert.False(t, k.Allow("kim@example.com"))
}

func TestKeyedDisabled(t *testing.T) {
	for _, k := range []*Keyed{NewKeyed(0, 5), NewKeyed(5, 0), nil} {
		for i := 0; i < 100; i++ {
			assert.True(t, k.Allow("x"))
		}
	}
}

func TestKeyedDropsIdleBuckets(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	k := NewKeyed(60, 1)
	k.now = func() time.Time { return now }

	k.Allow("a")
	k.Allow("b")
	assert.Equal(t, 2, k.Len())

	now = now.Add(11 * time.Minute)
	k.Allow("c")
	assert.Equal(t, 1, k.Len())
}
