package janitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct{ calls atomic.Int32 }

func (f *fakeSweeper) Sweep() int { return int(f.calls.Add(1)) }

func TestRegister_Validation(t *testing.T) {
	s := New(zerolog.Nop())
	_, err := s.Register("@every 1m", nil)
	assert.Error(t, err)

	_, err = s.Register("", JobFunc{JobName: "x", Fn: func(context.Context) error { return nil }})
	assert.Error(t, err)

	_, err = s.Register("not a spec", JobFunc{JobName: "x", Fn: func(context.Context) error { return nil }})
	assert.Error(t, err)
}

func TestRunNow_RunsEveryJobAndReports(t *testing.T) {
	s := New(zerolog.Nop())
	sw := &fakeSweeper{}
	reported := map[string]int{}

	_, err := s.Register("@every 1h", SweepJob("registry-sweep", sw, func(name string, n int) { reported[name] = n }))
	require.NoError(t, err)
	_, err = s.Register("@every 1h", JobFunc{JobName: "failing", Fn: func(context.Context) error { return errors.New("boom") }})
	require.NoError(t, err)

	s.RunNow()
	s.RunNow()
	assert.EqualValues(t, 2, sw.calls.Load())
	assert.Equal(t, 2, reported["registry-sweep"])
}

func TestStartStop_FiresOnSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	sw := &fakeSweeper{}
	_, err := s.Register("@every 1s", SweepJob("tick", sw, nil))
	require.NoError(t, err)

	s.Start()
	s.Start()
	assert.Eventually(t, func() bool { return sw.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	<-s.Stop().Done()
	<-s.Stop().Done()
}
