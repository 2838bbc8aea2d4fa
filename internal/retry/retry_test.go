package retry

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDelaysLengthAndBounds(t *testing.T) {
	cfg := Config{
		MaxAttempts:    4,
		BaseDelay:      200 * time.Millisecond,
		Multiplier:     2.0,
		MaxDelay:       5 * time.Second,
		JitterFraction: 0.1,
	}
	rng := rand.New(rand.NewSource(42))

	delays := ComputeDelays(cfg, rng)
	require.Len(t, delays, 3)

	expected := []time.Duration{200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond}
	for i, d := range delays {
		lo := time.Duration(float64(expected[i]) * 0.9)
		hi := time.Duration(float64(expected[i]) * 1.1)
		assert.GreaterOrEqual(t, d, lo, "delay %d below jitter floor", i)
		assert.LessOrEqual(t, d, hi, "delay %d above jitter ceiling", i)
		assert.LessOrEqual(t, d, 5*time.Second)
	}
}

func TestComputeDelaysCap(t *testing.T) {
	cfg := Config{
		MaxAttempts: 8,
		BaseDelay:   time.Second,
		Multiplier:  3.0,
		MaxDelay:    2 * time.Second,
	}

	delays := ComputeDelays(cfg, rand.New(rand.NewSource(1)))
	require.Len(t, delays, 7)
	for _, d := range delays {
		assert.LessOrEqual(t, d, 2*time.Second)
	}
	// Without jitter the capped tail is exact
	assert.Equal(t, 2*time.Second, delays[6])
}

func TestComputeDelaysSingleAttempt(t *testing.T) {
	assert.Empty(t, ComputeDelays(Config{MaxAttempts: 1, BaseDelay: time.Second}, nil))
	assert.Empty(t, ComputeDelays(Config{MaxAttempts: 0}, nil))
}

func TestComputeDelaysDeterministicWithSeed(t *testing.T) {
	cfg := DefaultConfig()
	a := ComputeDelays(cfg, rand.New(rand.NewSource(7)))
	b := ComputeDelays(cfg, rand.New(rand.NewSource(7)))
	assert.Equal(t, a, b)
}

func TestSleepUsesScheduleAndIgnoresOutOfRange(t *testing.T) {
	var slept []time.Duration
	record := func(d time.Duration) { slept = append(slept, d) }

	delays := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}

	Sleep(0, delays, record)
	Sleep(1, delays, record)
	Sleep(2, delays, record) // out of range, no sleep
	Sleep(-1, delays, record)

	require.Len(t, slept, 2)
	assert.Equal(t, 100*time.Millisecond, slept[0])
	assert.Equal(t, 200*time.Millisecond, slept[1])
}
