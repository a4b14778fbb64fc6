// Package session tracks the temporal state of each monitored driver and
// turns per-frame features into alert levels and alarm edges.
package session

import (
	"time"

	"github.com/ayusman/vigil/internal/alarm"
	"github.com/ayusman/vigil/internal/alert"
	"github.com/ayusman/vigil/internal/config"
	"github.com/ayusman/vigil/internal/features"
)

// State is the mutable temporal state of one session. Zero time values mean
// "not set".
type State struct {
	EyesClosedSince    time.Time
	PhoneDetectedSince time.Time
	DangerSince        time.Time
	AlarmActive        bool
	Yawn               YawnState

	StartedAt  time.Time
	LastUpdate time.Time
	LastLevel  alert.Level
	Frames     int
}

// Result is the outcome of one frame.
type Result struct {
	SessionID     string
	Features      features.FeatureSet
	Level         alert.Level
	PhoneDetected bool
	AlarmActive   bool
	Edge          alarm.Edge
	Timestamp     time.Time

	// Yawning is the yawn signal the classifier saw, which depends on the
	// configured policy.
	Yawning       bool
	EyesClosedFor time.Duration
	PhoneHeldFor  time.Duration
	YawnStreak    int
	YawnTotal     int
}

// since returns how long ago t was, never negative.
func since(t, now time.Time) time.Duration {
	if d := now.Sub(t); d > 0 {
		return d
	}
	return 0
}

// Advance applies one frame to the state and returns its result. It is the
// whole per-frame state machine; the Tracker only adds locking and delivery
// of the returned edge.
func (s *State) Advance(th config.Thresholds, fs features.FeatureSet, now time.Time) Result {
	if !fs.FaceDetected {
		// Hands without a face are not attributed to the driver.
		fs.PhoneDetected = false
	}

	// Eyes
	var eyesFor time.Duration
	if fs.FaceDetected && fs.EyesClosed {
		if s.EyesClosedSince.IsZero() {
			s.EyesClosedSince = now
		}
		eyesFor = since(s.EyesClosedSince, now)
	} else {
		s.EyesClosedSince = time.Time{}
	}

	// Yawns
	s.Yawn.Observe(fs.FaceDetected && fs.Yawning, now, th.YawnMinGap, th.YawnResetWindow)
	yawning := s.Yawn.Streak >= 2
	if th.YawnPolicy == config.YawnInstant {
		yawning = fs.FaceDetected && fs.Yawning
	}

	// Phone
	var phoneFor time.Duration
	if fs.PhoneDetected {
		if s.PhoneDetectedSince.IsZero() {
			s.PhoneDetectedSince = now
		}
		phoneFor = since(s.PhoneDetectedSince, now)
	} else {
		s.PhoneDetectedSince = time.Time{}
	}

	// Losing the driver's face is the WARNING baseline, never more or less.
	level := alert.Warning
	if fs.FaceDetected {
		level = alert.Classify(th, eyesFor, yawning, fs.Head, phoneFor)
	}

	if level == alert.Danger {
		if s.DangerSince.IsZero() {
			s.DangerSince = now
		}
	} else {
		s.DangerSince = time.Time{}
	}

	var edge alarm.Edge
	s.AlarmActive, edge = alarm.Evaluate(level, s.DangerSince, s.AlarmActive, now, th.Danger)

	s.LastLevel = level
	s.LastUpdate = now
	s.Frames++

	return Result{
		Features:      fs,
		Level:         level,
		PhoneDetected: fs.PhoneDetected,
		AlarmActive:   s.AlarmActive,
		Edge:          edge,
		Timestamp:     now,
		Yawning:       yawning,
		EyesClosedFor: eyesFor,
		PhoneHeldFor:  phoneFor,
		YawnStreak:    s.Yawn.Streak,
		YawnTotal:     s.Yawn.Total,
	}
}

// ForceOff clears danger tracking and the alarm, returning the edge that
// must be delivered.
func (s *State) ForceOff() alarm.Edge {
	s.DangerSince = time.Time{}
	if !s.AlarmActive {
		return alarm.None
	}
	s.AlarmActive = false
	return alarm.Deactivate
}
