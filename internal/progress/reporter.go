package progress

import (
	"fmt"
	"math"
	"time"
)

// ETAUnknown is reported whenever the remaining work or the observed
// speed cannot support an estimate. Callers render it verbatim rather
// than guessing.
const ETAUnknown = "unknown"

// Snapshot is a point-in-time view of a sync run used to derive user
// facing progress numbers.
type Snapshot struct {
	Processed int
	Total     int
	StartedAt time.Time
	Now       time.Time
}

// Percent returns completion in the range [0, 100]. A zero or unknown
// total reports 0 rather than dividing by zero, and processed counts
// beyond the estimated total clamp at 100.
func Percent(s Snapshot) float64 {
	if s.Total <= 0 {
		return 0
	}
	pct := float64(s.Processed) / float64(s.Total) * 100
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// ColdStartSpeed is the messages-per-second rate assumed until a run has
// processed enough to trust its own average. It is deliberately low so
// the first ETA shown is pessimistic rather than zero or infinite.
const ColdStartSpeed = 1.0

// coldStartFloor is the processed count below which the observed average
// is still dominated by startup noise.
const coldStartFloor = 25

// Speed returns messages per second observed since the run started.
// Young runs and runs with little progress report ColdStartSpeed so the
// ETA stays finite instead of swinging between zero and absurd rates.
func Speed(s Snapshot) float64 {
	elapsed := s.Now.Sub(s.StartedAt).Seconds()
	if elapsed < 1 || s.Processed < coldStartFloor {
		return ColdStartSpeed
	}
	return float64(s.Processed) / elapsed
}

// ETA estimates the remaining duration. It returns false when the total
// is unknown or the work is already complete; otherwise the cold-start
// speed guarantees a finite estimate.
func ETA(s Snapshot) (time.Duration, bool) {
	if s.Total <= 0 || s.Processed >= s.Total {
		return 0, false
	}
	speed := Speed(s)
	if speed <= 0 {
		return 0, false
	}
	remaining := float64(s.Total-s.Processed) / speed
	return time.Duration(remaining * float64(time.Second)), true
}

// FormatETA renders a duration the way the status endpoint exposes it:
// seconds under a minute, minutes under an hour, then hours and minutes.
func FormatETA(d time.Duration, ok bool) string {
	if !ok {
		return ETAUnknown
	}
	seconds := int(math.Ceil(d.Seconds()))
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm%ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%dh%dm", seconds/3600, (seconds%3600)/60)
	}
}
