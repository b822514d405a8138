package poisearch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewBreaker(3, 30*time.Second, 1)

	require.True(t, b.Allow())
	b.RecordFailure()
	require.True(t, b.Allow())
	b.RecordFailure()
	require.True(t, b.Allow())
	b.RecordFailure()

	// Three consecutive failures flip the breaker open; the next call is
	// rejected without any attempt.
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(3, 30*time.Second, 1)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	// The streak never reached three in a row.
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	b := NewBreaker(1, 30*time.Second, 1).WithClock(clock)

	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
	require.False(t, b.Allow())

	// Cooldown elapses: exactly one probe is admitted.
	now = now.Add(31 * time.Second)
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())

	t.Run("probe success closes", func(t *testing.T) {
		b.RecordSuccess()
		assert.Equal(t, StateClosed, b.State())
		assert.True(t, b.Allow())
	})
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	b := NewBreaker(1, 30*time.Second, 1).WithClock(clock)

	b.RecordFailure()
	now = now.Add(31 * time.Second)
	require.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())

	// The reopened cooldown starts from the probe failure.
	now = now.Add(31 * time.Second)
	assert.True(t, b.Allow())
}

func TestBreakerTransitionCallback(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	b := NewBreaker(1, time.Second, 1).WithClock(clock)

	var transitions []string
	b.OnTransition(func(from, to BreakerState) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	b.RecordFailure()
	now = now.Add(2 * time.Second)
	b.Allow()
	b.RecordSuccess()

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}
