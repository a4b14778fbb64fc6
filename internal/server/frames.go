package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ayusman/vigil/internal/app"
	"github.com/ayusman/vigil/internal/capture"
	"github.com/ayusman/vigil/internal/detector"
	"github.com/ayusman/vigil/internal/session"
	"github.com/ayusman/vigil/internal/store"
)

// frameMessage is a JSON frame: either an encoded image or client-side
// landmarks.
type frameMessage struct {
	Image string `json:"image,omitempty"`
	detector.Detection
}

// errorMessage is sent for frames that could not be processed.
type errorMessage struct {
	Error string `json:"error"`
}

// decodeText turns a text frame into a detection. Text is a JSON frame
// when it starts with '{', an image data URL otherwise.
func decodeText(p *app.Pipeline, data []byte) (*detector.Detection, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var msg frameMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("%w: %v", capture.ErrInvalidFrame, err)
		}
		if msg.Image == "" {
			det := msg.Detection
			return &det, nil
		}
		data = []byte(msg.Image)
	}

	img, err := capture.DecodeDataURL(string(data))
	if err != nil {
		return nil, err
	}
	return p.DetectImage(img)
}

// statusFor maps frame errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, capture.ErrInvalidFrame):
		return http.StatusBadRequest
	case errors.Is(err, detector.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errProfilesUnavailable):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSessionFault):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
