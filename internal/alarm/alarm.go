// Package alarm decides when sustained danger turns the alarm on or off and
// delivers those decisions to alarm devices.
package alarm

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ayusman/vigil/internal/alert"
)

// Edge is a change of alarm state. Devices only ever see edges.
type Edge int

const (
	None Edge = iota
	Activate
	Deactivate
)

func (e Edge) String() string {
	switch e {
	case None:
		return "none"
	case Activate:
		return "activate"
	case Deactivate:
		return "deactivate"
	default:
		return fmt.Sprintf("Edge(%d)", int(e))
	}
}

// MarshalJSON encodes the edge by name.
func (e Edge) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// Evaluate returns the new alarm state and the edge it implies.
//
// The alarm turns on once level has been DANGER since dangerSince for at
// least threshold, and turns off on the first non-DANGER level regardless
// of how long danger lasted. A zero dangerSince means danger is not being
// tracked. Calling Evaluate again with its own output never yields another
// edge.
func Evaluate(level alert.Level, dangerSince time.Time, active bool, now time.Time, threshold time.Duration) (bool, Edge) {
	if level == alert.Danger {
		if !active && !dangerSince.IsZero() && now.Sub(dangerSince) >= threshold {
			return true, Activate
		}
		return active, None
	}

	if active {
		return false, Deactivate
	}
	return false, None
}

// Sink receives alarm edges for a session.
// Signal is called while the session is locked and must not block for long.
type Sink interface {
	Signal(sessionID string, edge Edge)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(sessionID string, edge Edge)

// Signal calls f.
func (f SinkFunc) Signal(sessionID string, edge Edge) {
	f(sessionID, edge)
}

// Sinks fans an edge out to several sinks in order. Nil entries are skipped.
type Sinks []Sink

// Signal forwards the edge to every sink.
func (s Sinks) Signal(sessionID string, edge Edge) {
	for _, sink := range s {
		if sink != nil {
			sink.Signal(sessionID, edge)
		}
	}
}
