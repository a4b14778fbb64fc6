package session

import "time"

// YawnPhase is the state of the yawn debounce machine.
type YawnPhase int

const (
	// Quiescent: no counted yawn within the reset window. Streak is 0.
	Quiescent YawnPhase = iota
	// Recent: a yawn was counted less than the reset window ago.
	Recent
)

func (p YawnPhase) String() string {
	if p == Recent {
		return "recent"
	}
	return "quiescent"
}

// YawnState debounces the per-frame yawn flag into a streak of distinct
// yawns.
//
//	Recent    -> Quiescent  now - LastYawn >= reset window (streak = 0)
//	any       -> Recent     yawning and (no prior yawn or now - LastYawn >= min gap)
//
// The reset transition is checked first on every frame.
type YawnState struct {
	Phase    YawnPhase
	LastYawn time.Time
	Streak   int
	Total    int
}

// Observe advances the machine by one frame and reports whether a new yawn
// was counted.
func (y *YawnState) Observe(yawning bool, now time.Time, minGap, resetWindow time.Duration) bool {
	if y.Phase == Recent && now.Sub(y.LastYawn) >= resetWindow {
		y.Phase = Quiescent
		y.Streak = 0
	}

	if !yawning {
		return false
	}
	if !y.LastYawn.IsZero() && now.Sub(y.LastYawn) < minGap {
		return false
	}

	y.Phase = Recent
	y.LastYawn = now
	y.Streak++
	y.Total++
	return true
}
