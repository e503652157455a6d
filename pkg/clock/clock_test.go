package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual_AdvanceAndSet(t *testing.T) {
	start := time.Unix(0, 0)
	c := NewManual(start)
	assert.Equal(t, start, c.Now())

	assert.Equal(t, start.Add(5*time.Millisecond), c.Advance(5*time.Millisecond))
	assert.Equal(t, start.Add(5*time.Millisecond), c.Now())

	later := start.Add(time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestOrReal(t *testing.T) {
	assert.IsType(t, Real{}, OrReal(nil))

	m := NewManual(time.Unix(10, 0))
	assert.Same(t, m, OrReal(m))
}
