// Package api provides HTTP API handlers for profiles, settings and sessions.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/vigil/internal/config"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// Thresholds is the JSON form of config.Thresholds. Durations are seconds.
// Absent fields keep the value they are applied to.
type Thresholds struct {
	EyeClosed        *float64 `json:"eye_closed,omitempty"`
	MouthAspectRatio *float64 `json:"mouth_aspect_ratio,omitempty"`
	MouthOpen        *float64 `json:"mouth_open,omitempty"`
	HeadRotation     *float64 `json:"head_rotation,omitempty"`
	HeadTilt         *float64 `json:"head_tilt,omitempty"`
	HeadTieBreak     *string  `json:"head_tie_break,omitempty"`
	EyesClosedTime   *float64 `json:"eyes_closed_time,omitempty"`
	PhoneDetection   *float64 `json:"phone_detection,omitempty"`
	Danger           *float64 `json:"danger,omitempty"`
	YawnMinGap       *float64 `json:"yawn_min_gap,omitempty"`
	YawnResetWindow  *float64 `json:"yawn_reset_window,omitempty"`
	YawnPolicy       *string  `json:"yawn_policy,omitempty"`
}

// Apply overlays the fields that are set onto base.
func (t Thresholds) Apply(base config.Thresholds) config.Thresholds {
	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setD := func(dst *time.Duration, src *float64) {
		if src != nil {
			*dst = config.Seconds(*src)
		}
	}

	setF(&base.EyeClosed, t.EyeClosed)
	setF(&base.MouthAspectRatio, t.MouthAspectRatio)
	setF(&base.MouthOpen, t.MouthOpen)
	setF(&base.HeadRotation, t.HeadRotation)
	setF(&base.HeadTilt, t.HeadTilt)
	if t.HeadTieBreak != nil {
		base.HeadTieBreak = config.TieBreak(*t.HeadTieBreak)
	}
	setD(&base.EyesClosedTime, t.EyesClosedTime)
	setD(&base.PhoneDetection, t.PhoneDetection)
	setD(&base.Danger, t.Danger)
	setD(&base.YawnMinGap, t.YawnMinGap)
	setD(&base.YawnResetWindow, t.YawnResetWindow)
	if t.YawnPolicy != nil {
		base.YawnPolicy = config.YawnPolicy(*t.YawnPolicy)
	}
	return base
}

// ThresholdsFrom converts th to its JSON form with every field set.
func ThresholdsFrom(th config.Thresholds) Thresholds {
	f := func(v float64) *float64 { return &v }
	s := func(v string) *string { return &v }
	return Thresholds{
		EyeClosed:        f(th.EyeClosed),
		MouthAspectRatio: f(th.MouthAspectRatio),
		MouthOpen:        f(th.MouthOpen),
		HeadRotation:     f(th.HeadRotation),
		HeadTilt:         f(th.HeadTilt),
		HeadTieBreak:     s(string(th.HeadTieBreak)),
		EyesClosedTime:   f(th.EyesClosedTime.Seconds()),
		PhoneDetection:   f(th.PhoneDetection.Seconds()),
		Danger:           f(th.Danger.Seconds()),
		YawnMinGap:       f(th.YawnMinGap.Seconds()),
		YawnResetWindow:  f(th.YawnResetWindow.Seconds()),
		YawnPolicy:       s(string(th.YawnPolicy)),
	}
}
