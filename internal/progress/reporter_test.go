package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func snap(processed, total int, elapsed time.Duration) Snapshot {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return Snapshot{
		Processed: processed,
		Total:     total,
		StartedAt: start,
		Now:       start.Add(elapsed),
	}
}

func TestPercent(t *testing.T) {
	t.Run("normal progress", func(t *testing.T) {
		assert.InDelta(t, 25.0, Percent(snap(25, 100, time.Minute)), 0.001)
	})

	t.Run("unknown total reports zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Percent(snap(50, 0, time.Minute)))
	})

	t.Run("processed beyond estimate clamps at 100", func(t *testing.T) {
		assert.Equal(t, 100.0, Percent(snap(150, 100, time.Minute)))
	})
}

func TestSpeed(t *testing.T) {
	t.Run("messages per second since start", func(t *testing.T) {
		assert.InDelta(t, 2.0, Speed(snap(120, 1000, time.Minute)), 0.001)
	})

	t.Run("young run assumes the cold-start rate", func(t *testing.T) {
		assert.Equal(t, ColdStartSpeed, Speed(snap(50, 1000, 500*time.Millisecond)))
	})

	t.Run("little progress assumes the cold-start rate", func(t *testing.T) {
		assert.Equal(t, ColdStartSpeed, Speed(snap(3, 1000, time.Minute)))
	})
}

func TestETA(t *testing.T) {
	t.Run("steady rate", func(t *testing.T) {
		// 120 done in 60s, 880 remaining at 2/s
		d, ok := ETA(snap(120, 1000, time.Minute))
		assert.True(t, ok)
		assert.InDelta(t, 440.0, d.Seconds(), 0.5)
	})

	t.Run("unknown total", func(t *testing.T) {
		_, ok := ETA(snap(120, 0, time.Minute))
		assert.False(t, ok)
	})

	t.Run("cold start still yields a finite estimate", func(t *testing.T) {
		d, ok := ETA(snap(0, 1000, time.Minute))
		assert.True(t, ok)
		assert.InDelta(t, 1000.0, d.Seconds(), 0.5)
	})

	t.Run("already complete", func(t *testing.T) {
		_, ok := ETA(snap(1000, 1000, time.Minute))
		assert.False(t, ok)
	})
}

func TestFormatETA(t *testing.T) {
	assert.Equal(t, "unknown", FormatETA(0, false))
	assert.Equal(t, "45s", FormatETA(45*time.Second, true))
	assert.Equal(t, "7m20s", FormatETA(440*time.Second, true))
	assert.Equal(t, "2h5m", FormatETA(2*time.Hour+5*time.Minute, true))
}
