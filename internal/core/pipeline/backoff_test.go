package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDoublesWithoutJitter(t *testing.T) {
	b := Backoff{Base: 2 * time.Second, Max: 5 * time.Minute}
	assert.Equal(t, 2*time.Second, b.Delay(1))
	assert.Equal(t, 4*time.Second, b.Delay(2))
	assert.Equal(t, 8*time.Second, b.Delay(3))
	assert.Equal(t, 16*time.Second, b.Delay(4))
}

func TestBackoffCapsAtMax(t *testing.T) {
	b := Backoff{Base: 2 * time.Second, Max: 10 * time.Second}
	assert.Equal(t, 10*time.Second, b.Delay(4))
	assert.Equal(t, 10*time.Second, b.Delay(20))
}

func TestBackoffClampsLowAttempt(t *testing.T) {
	b := Backoff{Base: 2 * time.Second, Max: time.Minute}
	assert.Equal(t, b.Delay(1), b.Delay(0))
	assert.Equal(t, b.Delay(1), b.Delay(-3))
}

func TestBackoffJitterBounds(t *testing.T) {
	b := Backoff{Base: 10 * time.Second, Max: time.Hour, Jitter: 0.2}
	lo := time.Duration(float64(10*time.Second) * 0.8)
	hi := time.Duration(float64(10*time.Second) * 1.2)
	for i := 0; i < 200; i++ {
		d := b.Delay(1)
		assert.GreaterOrEqual(t, d, lo)
		assert.LessOrEqual(t, d, hi)
	}
}
