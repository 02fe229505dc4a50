package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_StartsClosed(t *testing.T) {
	b := New("authority")
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "authority", b.Name())
}

func TestBreaker_OpensOnConsecutiveFailures(t *testing.T) {
	b := New("authority", WithFailureThreshold(3))

	tripped, change := b.RecordFailure()
	assert.False(t, tripped)
	assert.False(t, change.Opened)

	tripped, change = b.RecordFailure()
	assert.False(t, tripped)
	assert.False(t, change.Opened)

	// The threshold failure is the one that trips it.
	tripped, change = b.RecordFailure()
	assert.True(t, tripped)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())
}

func TestBreaker_NeedsSuccessRunToClose(t *testing.T) {
	b := New("authority", WithFailureThreshold(1), WithSuccessThreshold(2))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	closed, change := b.RecordSuccess()
	assert.False(t, closed)
	assert.False(t, change.Closed)
	assert.True(t, b.IsOpen())

	closed, change = b.RecordSuccess()
	assert.True(t, closed)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestBreaker_SuccessClearsFailureRun(t *testing.T) {
	b := New("authority", WithFailureThreshold(3))

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	// The run starts over after the success.
	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())

	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestBreaker_FailureClearsSuccessRun(t *testing.T) {
	b := New("authority", WithFailureThreshold(1), WithSuccessThreshold(3))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.RecordSuccess()
	b.RecordSuccess()
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.RecordSuccess()
	b.RecordSuccess()
	assert.True(t, b.IsOpen())
	b.RecordSuccess()
	assert.False(t, b.IsOpen())
}

func TestBreaker_ResetForcesClosed(t *testing.T) {
	b := New("authority", WithFailureThreshold(1))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.Reset()
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_FailureWhileOpenIsNotATransition(t *testing.T) {
	b := New("authority", WithFailureThreshold(1))

	b.RecordFailure()

	tripped, change := b.RecordFailure()
	assert.True(t, tripped)
	assert.False(t, change.Opened)
}
