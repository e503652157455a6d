package ratelimit

import (
	"sync"
	"testing"
	"time"

	"laxenta/pkg/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(0, 0)

func newLimiter(t *testing.T, policies map[string]Policy) (*Limiter, *clock.Manual) {
	t.Helper()
	c := clock.NewManual(epoch)
	lim, err := New(policies, WithClock(c))
	require.NoError(t, err)
	return lim, c
}

func TestTryAdmit_WindowBoundaries(t *testing.T) {
	lim, c := newLimiter(t, map[string]Policy{"k": {Max: 3, Window: 1000 * time.Millisecond}})

	for i := 0; i < 3; i++ {
		c.Set(epoch.Add(time.Duration(i) * time.Millisecond))
		dec, err := lim.TryAdmit("U1", "k")
		require.NoError(t, err)
		assert.True(t, dec.Admitted, "admission %d", i)
		assert.Equal(t, 2-i, dec.Remaining)
	}

	c.Set(epoch.Add(3 * time.Millisecond))
	dec, err := lim.TryAdmit("U1", "k")
	require.NoError(t, err)
	assert.False(t, dec.Admitted)
	assert.Equal(t, epoch.Add(1000*time.Millisecond), dec.ResetAt)

	c.Set(epoch.Add(1001 * time.Millisecond))
	dec, err = lim.TryAdmit("U1", "k")
	require.NoError(t, err)
	assert.True(t, dec.Admitted)
	assert.Equal(t, epoch.Add(2001*time.Millisecond), dec.ResetAt)
	assert.Equal(t, 2, dec.Remaining)
}

func TestTryAdmit_RollsScenario(t *testing.T) {
	lim, c := newLimiter(t, map[string]Policy{"rolls": {Max: 8, Window: 3300000 * time.Millisecond}})

	for i := 0; i < 8; i++ {
		dec, err := lim.TryAdmit("U1", "rolls")
		require.NoError(t, err)
		require.True(t, dec.Admitted)
	}

	c.Advance(time.Millisecond)
	dec, err := lim.TryAdmit("U1", "rolls")
	require.NoError(t, err)
	assert.False(t, dec.Admitted)
	assert.Equal(t, epoch.Add(3300000*time.Millisecond), dec.ResetAt)
}

func TestTryAdmit_DenialLeavesCountUnchanged(t *testing.T) {
	lim, c := newLimiter(t, map[string]Policy{"k": {Max: 1, Window: time.Second}})

	dec, _ := lim.TryAdmit("U1", "k")
	require.True(t, dec.Admitted)
	for i := 0; i < 5; i++ {
		dec, _ = lim.TryAdmit("U1", "k")
		require.False(t, dec.Admitted)
	}

	// Window start must not have moved with the denials.
	c.Advance(time.Second + time.Nanosecond)
	dec, _ = lim.TryAdmit("U1", "k")
	assert.True(t, dec.Admitted)
}

func TestTryAdmit_SubjectsAndClassesAreIndependent(t *testing.T) {
	lim, _ := newLimiter(t, map[string]Policy{
		"rolls":     {Max: 1, Window: time.Minute},
		"marriages": {Max: 1, Window: time.Minute},
	})

	dec, _ := lim.TryAdmit("U1", "rolls")
	assert.True(t, dec.Admitted)
	dec, _ = lim.TryAdmit("U1", "rolls")
	assert.False(t, dec.Admitted)

	dec, _ = lim.TryAdmit("U2", "rolls")
	assert.True(t, dec.Admitted)
	dec, _ = lim.TryAdmit("U1", "marriages")
	assert.True(t, dec.Admitted)
}

func TestTryAdmit_UnknownClass(t *testing.T) {
	lim, _ := newLimiter(t, nil)
	_, err := lim.TryAdmit("U1", "nope")
	assert.ErrorIs(t, err, ErrUnknownClass)
}

func TestNew_RejectsInvalidPolicy(t *testing.T) {
	_, err := New(map[string]Policy{"bad": {Max: 0, Window: time.Second}})
	assert.ErrorIs(t, err, ErrInvalidPolicy)

	_, err = New(map[string]Policy{"bad": {Max: 1}})
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestPeek_DoesNotConsume(t *testing.T) {
	lim, _ := newLimiter(t, map[string]Policy{"k": {Max: 1, Window: time.Minute}})

	for i := 0; i < 3; i++ {
		dec, err := lim.Peek("U1", "k")
		require.NoError(t, err)
		assert.True(t, dec.Admitted)
	}
	dec, _ := lim.TryAdmit("U1", "k")
	assert.True(t, dec.Admitted)

	dec, _ = lim.Peek("U1", "k")
	assert.False(t, dec.Admitted)
	assert.Equal(t, epoch.Add(time.Minute), dec.ResetAt)
}

func TestResetAndSetPolicy(t *testing.T) {
	lim, _ := newLimiter(t, map[string]Policy{"k": {Max: 1, Window: time.Minute}})

	lim.TryAdmit("U1", "k")
	dec, _ := lim.TryAdmit("U1", "k")
	require.False(t, dec.Admitted)

	lim.Reset("U1", "k")
	dec, _ = lim.TryAdmit("U1", "k")
	assert.True(t, dec.Admitted)

	require.NoError(t, lim.SetPolicy("k", Policy{Max: 3, Window: time.Minute}))
	dec, _ = lim.TryAdmit("U1", "k")
	assert.True(t, dec.Admitted)

	assert.ErrorIs(t, lim.SetPolicy("k", Policy{}), ErrInvalidPolicy)
	p, ok := lim.Policy("k")
	assert.True(t, ok)
	assert.Equal(t, 3, p.Max)
}

func TestSweep_DropsOnlyElapsedBuckets(t *testing.T) {
	lim, c := newLimiter(t, map[string]Policy{"k": {Max: 1, Window: time.Minute}})

	lim.TryAdmit("U1", "k")
	c.Advance(30 * time.Second)
	lim.TryAdmit("U2", "k")

	c.Advance(31 * time.Second)
	assert.Equal(t, 1, lim.Sweep())
	assert.Equal(t, 1, lim.Len())

	dec, _ := lim.TryAdmit("U2", "k")
	assert.False(t, dec.Admitted, "sweep must not reset a live window")
}

func TestTryAdmit_ConcurrentNeverExceedsMax(t *testing.T) {
	lim, _ := newLimiter(t, map[string]Policy{"k": {Max: 5, Window: time.Hour}})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec, err := lim.TryAdmit("U1", "k")
			if err == nil && dec.Admitted {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, admitted)
}
