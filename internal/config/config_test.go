package config

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultThresholds_Valid(t *testing.T) {
	require.NoError(t, DefaultThresholds().Validate())
}

func TestThresholds_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Thresholds)
	}{
		{"zero eye threshold", func(th *Thresholds) { th.EyeClosed = 0 }},
		{"infinite eye threshold", func(th *Thresholds) { th.EyeClosed = math.Inf(1) }},
		{"NaN rotation", func(th *Thresholds) { th.HeadRotation = math.NaN() }},
		{"infinite mouth opening", func(th *Thresholds) { th.MouthOpen = math.Inf(1) }},
		{"negative MAR cutoff", func(th *Thresholds) { th.MouthAspectRatio = -0.1 }},
		{"negative mouth opening", func(th *Thresholds) { th.MouthOpen = -1 }},
		{"zero rotation", func(th *Thresholds) { th.HeadRotation = 0 }},
		{"zero tilt", func(th *Thresholds) { th.HeadTilt = 0 }},
		{"zero eyes closed time", func(th *Thresholds) { th.EyesClosedTime = 0 }},
		{"negative phone time", func(th *Thresholds) { th.PhoneDetection = -time.Second }},
		{"zero danger", func(th *Thresholds) { th.Danger = 0 }},
		{"reset window not above gap", func(th *Thresholds) { th.YawnResetWindow = th.YawnMinGap }},
		{"unknown yawn policy", func(th *Thresholds) { th.YawnPolicy = "often" }},
		{"unknown tie break", func(th *Thresholds) { th.HeadTieBreak = "up" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := DefaultThresholds()
			tt.mutate(&th)
			err := th.Validate()
			require.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("EYES_CLOSED_TIME_THRESHOLD", "10")
	t.Setenv("DANGER_THRESHOLD", "1.5")
	t.Setenv("YAWN_POLICY", "instant")
	t.Setenv("HEAD_TURN_TIE_BREAK", "left")
	t.Setenv("HTTP_ADDR", ":9999")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Thresholds.EyesClosedTime)
	assert.Equal(t, 1500*time.Millisecond, cfg.Thresholds.Danger)
	assert.Equal(t, YawnInstant, cfg.Thresholds.YawnPolicy)
	assert.Equal(t, TieBreakLeft, cfg.Thresholds.HeadTieBreak)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 478, cfg.FaceLandmarkCount)
}

func TestLoad_RejectsInvalidThresholds(t *testing.T) {
	t.Run("non-numeric float", func(t *testing.T) {
		t.Setenv("HEAD_TILT_THRESHOLD", "steep")
		_, err := Load()
		require.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("infinite float", func(t *testing.T) {
		t.Setenv("EYE_CLOSED_THRESHOLD", "Inf")
		_, err := Load()
		require.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("non-numeric duration", func(t *testing.T) {
		t.Setenv("YAWN_MIN_GAP", "soon")
		_, err := Load()
		require.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("infinite duration", func(t *testing.T) {
		t.Setenv("DANGER_THRESHOLD", "+Inf")
		_, err := Load()
		require.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("non-numeric mouth opening", func(t *testing.T) {
		t.Setenv("MOUTH_OPEN_THRESHOLD", "wide")
		_, err := Load()
		require.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("zero workers", func(t *testing.T) {
		t.Setenv("DETECTOR_WORKERS", "0")
		_, err := Load()
		require.ErrorIs(t, err, ErrInvalidConfiguration)
	})
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, Seconds(0.25))
	assert.Equal(t, 20*time.Second, Seconds(20))
}
