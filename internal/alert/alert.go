// Package alert maps per-frame measurements and durations to an alert level.
package alert

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ayusman/vigil/internal/config"
	"github.com/ayusman/vigil/internal/features"
)

// Level is the severity of the driver's state.
type Level int

const (
	Normal Level = iota
	Warning
	Danger
)

var levelNames = [...]string{"NORMAL", "WARNING", "DANGER"}

func (l Level) String() string {
	if l < Normal || l > Danger {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel parses the name produced by String.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return Normal, fmt.Errorf("unknown alert level %q", s)
}

// MarshalJSON encodes the level by name.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a level name.
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Score returns the danger points of one observation.
//
//	eyes closed > 80% of EyesClosedTime  +2, > 50%  +1
//	yawning                              +1
//	turned and tilted                    +2, either +1
//	phone held > PhoneDetection          +3, at all  +1
func Score(th config.Thresholds, eyesClosedFor time.Duration, yawning bool, head features.HeadPosture, phoneHeldFor time.Duration) int {
	score := 0

	eyes := eyesClosedFor.Seconds()
	limit := th.EyesClosedTime.Seconds()
	switch {
	case eyes > limit*0.8:
		score += 2
	case eyes > limit*0.5:
		score++
	}

	if yawning {
		score++
	}

	switch {
	case head.Turned && head.Tilted:
		score += 2
	case head.Turned || head.Tilted:
		score++
	}

	switch {
	case phoneHeldFor > th.PhoneDetection:
		score += 3
	case phoneHeldFor > 0:
		score++
	}

	return score
}

// Classify returns DANGER for a score of 3 or more, WARNING for 1 or 2 and
// NORMAL otherwise.
func Classify(th config.Thresholds, eyesClosedFor time.Duration, yawning bool, head features.HeadPosture, phoneHeldFor time.Duration) Level {
	return FromScore(Score(th, eyesClosedFor, yawning, head, phoneHeldFor))
}

// FromScore converts a score to its level.
func FromScore(score int) Level {
	switch {
	case score >= 3:
		return Danger
	case score >= 1:
		return Warning
	default:
		return Normal
	}
}
