package tray

import (
	"testing"
	"time"

	"github.com/ayusman/vigil/internal/alert"
	"github.com/ayusman/vigil/internal/features"
	"github.com/ayusman/vigil/internal/session"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		level alert.Level
		alarm bool
		want  string
	}{
		{alert.Normal, false, "Vigil NORMAL"},
		{alert.Warning, false, "Vigil WARNING"},
		{alert.Danger, false, "Vigil DANGER"},
		{alert.Danger, true, "Vigil ⚠ ALARM"},
	}

	for _, tt := range tests {
		if got := Title(tt.level, tt.alarm); got != tt.want {
			t.Errorf("Title(%v, %v) = %q, want %q", tt.level, tt.alarm, got, tt.want)
		}
	}
}

func TestDetail(t *testing.T) {
	tests := []struct {
		name string
		res  session.Result
		want string
	}{
		{
			name: "no face",
			res:  session.Result{},
			want: "No face",
		},
		{
			name: "no face with phone",
			res:  session.Result{PhoneDetected: true},
			want: "No face · phone",
		},
		{
			name: "eyes closed",
			res: session.Result{
				Features:      features.FeatureSet{FaceDetected: true, EyeOpeningLeft: 0.004, EyeOpeningRight: 0.006, MouthAspectRatio: 0.1, EyesClosed: true},
				EyesClosedFor: 2500 * time.Millisecond,
				YawnTotal:     2,
			},
			want: "Eyes 0.004/0.006 · MAR 0.10 · yawns 2 · closed 2.5s",
		},
		{
			name: "phone",
			res: session.Result{
				Features:      features.FeatureSet{FaceDetected: true, EyeOpeningLeft: 0.03, EyeOpeningRight: 0.03},
				PhoneDetected: true,
				PhoneHeldFor:  6 * time.Second,
			},
			want: "Eyes 0.030/0.030 · MAR 0.00 · yawns 0 · phone 6.0s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detail(tt.res); got != tt.want {
				t.Errorf("Detail() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTray_DefaultsEnabled(t *testing.T) {
	tr := New()
	if !tr.IsEnabled() {
		t.Error("tray should start enabled")
	}
	// Update before the menu exists is a no-op.
	tr.Update(session.Result{Level: alert.Danger})
}
