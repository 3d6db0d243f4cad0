package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// advance replaces the breaker's clock with one offset into the future.
func advance(b *Breaker, d time.Duration) {
	base := time.Now()
	b.mu.Lock()
	b.clock = func() time.Time { return base.Add(d) }
	b.mu.Unlock()
}

func TestBreaker_InitialState(t *testing.T) {
	b := New("test")
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "test", b.Name())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New("test", WithFailureThreshold(3))

	// First two failures don't open
	useFallback, change := b.RecordFailure()
	assert.False(t, useFallback)
	assert.False(t, change.Opened)

	useFallback, change = b.RecordFailure()
	assert.False(t, useFallback)
	assert.False(t, change.Opened)

	// Third failure opens the circuit
	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())
}

func TestBreaker_ClosesAfterSuccessThreshold(t *testing.T) {
	b := New("test", WithFailureThreshold(1), WithSuccessThreshold(2))

	// Open the circuit
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	// First success doesn't close
	usePrimary, change := b.RecordSuccess()
	assert.False(t, usePrimary)
	assert.False(t, change.Closed)
	assert.True(t, b.IsOpen())

	// Second success closes
	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b := New("test", WithFailureThreshold(1), WithCooldown(time.Minute))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	// Before the cooldown the breaker stays open
	advance(b, 30*time.Second)
	assert.True(t, b.IsOpen())

	// After the cooldown probe traffic is admitted
	advance(b, time.Minute)
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateHalfOpen, b.State())

	// A successful probe closes the circuit
	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_FailedProbeRestartsCooldown(t *testing.T) {
	b := New("test", WithFailureThreshold(1), WithCooldown(time.Minute))

	b.RecordFailure()
	advance(b, time.Minute)
	assert.Equal(t, StateHalfOpen, b.State())

	// The probe fails, the breaker reopens and the cooldown restarts
	useFallback, _ := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, b.IsOpen())

	advance(b, 90*time.Second)
	assert.True(t, b.IsOpen())

	advance(b, 3*time.Minute)
	assert.False(t, b.IsOpen())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New("test", WithFailureThreshold(3))

	// Two failures
	b.RecordFailure()
	b.RecordFailure()

	// A success resets the count
	b.RecordSuccess()

	// Two more failures still don't open
	b.RecordFailure()
	useFallback, change := b.RecordFailure()
	assert.False(t, useFallback)
	assert.False(t, change.Opened)
	assert.False(t, b.IsOpen())
}
