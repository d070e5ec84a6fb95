package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step is one Record call and the outcome expected from it.
type step struct {
	fail       bool
	wantResult bool
	wantChange StateChange
	wantState  State
}

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		steps []step
	}{
		{
			name: "opens on the threshold failure",
			opts: []Option{WithFailureThreshold(2)},
			steps: []step{
				{fail: true, wantResult: false, wantState: StateClosed},
				{fail: true, wantResult: true, wantChange: StateChange{Opened: true}, wantState: StateOpen},
				{fail: true, wantResult: true, wantState: StateOpen},
			},
		},
		{
			name: "success in between resets the failure streak",
			opts: []Option{WithFailureThreshold(2)},
			steps: []step{
				{fail: true, wantState: StateClosed},
				{fail: false, wantResult: true, wantState: StateClosed},
				{fail: true, wantState: StateClosed},
				{fail: true, wantResult: true, wantChange: StateChange{Opened: true}, wantState: StateOpen},
			},
		},
		{
			name: "closes after consecutive successes while open",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				{fail: true, wantResult: true, wantChange: StateChange{Opened: true}, wantState: StateOpen},
				{fail: false, wantResult: false, wantState: StateOpen},
				{fail: false, wantResult: true, wantChange: StateChange{Closed: true}, wantState: StateClosed},
			},
		},
		{
			name: "failure while recovering restarts the success count",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				{fail: true, wantResult: true, wantChange: StateChange{Opened: true}, wantState: StateOpen},
				{fail: false, wantState: StateOpen},
				{fail: true, wantResult: true, wantState: StateOpen},
				{fail: false, wantState: StateOpen},
				{fail: false, wantResult: true, wantChange: StateChange{Closed: true}, wantState: StateClosed},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("redis-cache", tt.opts...)
			for i, s := range tt.steps {
				var result bool
				var change StateChange
				if s.fail {
					result, change = b.RecordFailure()
				} else {
					result, change = b.RecordSuccess()
				}
				require.Equal(t, s.wantResult, result, "step %d result", i)
				require.Equal(t, s.wantChange, change, "step %d change", i)
				require.Equal(t, s.wantState, b.State(), "step %d state", i)
			}
		})
	}
}

func TestBreakerDefaults(t *testing.T) {
	b := New("redis-cache")
	assert.Equal(t, "redis-cache", b.Name())
	assert.Equal(t, "closed", b.State().String())
	assert.True(t, b.Allow())

	for range 4 {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen(), "default threshold is five")
	b.RecordFailure()
	assert.True(t, b.IsOpen())
	assert.Equal(t, "open", b.State().String())

	b.Reset()
	assert.False(t, b.IsOpen())
}

func TestBreakerAllowProbesOncePerCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	b := New("redis-cache",
		WithFailureThreshold(1),
		WithCooldown(time.Second),
		WithClock(func() time.Time { return now }),
	)

	b.RecordFailure()
	assert.False(t, b.Allow(), "no probe before cooldown elapses")

	now = now.Add(time.Second)
	assert.True(t, b.Allow(), "first call after cooldown probes")
	assert.False(t, b.Allow(), "second call in the same window is rejected")

	now = now.Add(time.Second)
	assert.True(t, b.Allow())
}
