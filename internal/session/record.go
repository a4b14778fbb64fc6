package session

import (
	"time"

	"github.com/ayusman/vigil/internal/alert"
	"github.com/ayusman/vigil/internal/features"
)

// TimestampLayout matches the microsecond local timestamps clients expect.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// EyesState is the per-eye opening.
type EyesState struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// MouthState is the mouth aspect ratio and vertical opening.
type MouthState struct {
	MAR     float64 `json:"mar"`
	Opening float64 `json:"opening"`
}

// HeadPosition is the head posture; directions are absent when not turned
// or tilted.
type HeadPosition struct {
	Turned     bool                `json:"turned"`
	Tilted     bool                `json:"tilted"`
	DirectionH features.Horizontal `json:"direction_h,omitempty"`
	DirectionV features.Vertical   `json:"direction_v,omitempty"`
}

// Record is the transport form of a Result.
type Record struct {
	AlertLevel    alert.Level  `json:"alert_level"`
	EyesState     EyesState    `json:"eyes_state"`
	MouthState    MouthState   `json:"mouth_state"`
	HeadPosition  HeadPosition `json:"head_position"`
	PhoneDetected bool         `json:"phone_detected"`
	AlarmActive   bool         `json:"alarm_active"`
	Timestamp     string       `json:"timestamp"`

	FaceDetected      bool    `json:"face_detected"`
	EyesClosedSeconds float64 `json:"eyes_closed_seconds"`
	PhoneSeconds      float64 `json:"phone_seconds"`
	YawnCount         int     `json:"yawn_count"`
}

// Record converts the result for transport.
func (r Result) Record() Record {
	f := r.Features
	return Record{
		AlertLevel: r.Level,
		EyesState:  EyesState{Left: f.EyeOpeningLeft, Right: f.EyeOpeningRight},
		MouthState: MouthState{MAR: f.MouthAspectRatio, Opening: f.MouthOpening},
		HeadPosition: HeadPosition{
			Turned:     f.Head.Turned,
			Tilted:     f.Head.Tilted,
			DirectionH: f.Head.DirectionH,
			DirectionV: f.Head.DirectionV,
		},
		PhoneDetected:     r.PhoneDetected,
		AlarmActive:       r.AlarmActive,
		Timestamp:         r.Timestamp.Local().Format(TimestampLayout),
		FaceDetected:      f.FaceDetected,
		EyesClosedSeconds: r.EyesClosedFor.Seconds(),
		PhoneSeconds:      r.PhoneHeldFor.Seconds(),
		YawnCount:         r.YawnTotal,
	}
}

// EyesClosedRemaining is the time left before the eyes have been closed for
// the full eyes-closed threshold. Zero when the eyes are open.
func (r Result) EyesClosedRemaining(eyesClosedTime time.Duration) time.Duration {
	if !r.Features.FaceDetected || !r.Features.EyesClosed || r.EyesClosedFor >= eyesClosedTime {
		return 0
	}
	return eyesClosedTime - r.EyesClosedFor
}
