package ratelimit

import (
	"testing"
	"time"

	"laxenta/pkg/clock"

	"github.com/stretchr/testify/assert"
)

func TestBurstGuard_AllowsBurstThenRefills(t *testing.T) {
	c := clock.NewManual(time.Unix(1_700_000_000, 0))
	g := NewBurstGuard(1, 2, time.Minute, c)

	assert.True(t, g.Allow("U1"))
	assert.True(t, g.Allow("U1"))
	assert.False(t, g.Allow("U1"))
	assert.True(t, g.Allow("U2"), "subjects have separate buckets")

	c.Advance(time.Second)
	assert.True(t, g.Allow("U1"))
	assert.False(t, g.Allow("U1"))
}

func TestBurstGuard_SweepForgetsIdleSubjects(t *testing.T) {
	c := clock.NewManual(time.Unix(1_700_000_000, 0))
	g := NewBurstGuard(1, 1, time.Minute, c)

	g.Allow("U1")
	c.Advance(30 * time.Second)
	g.Allow("U2")
	c.Advance(31 * time.Second)

	assert.Equal(t, 1, g.Sweep())
	assert.Equal(t, 0, g.Sweep())
}
