package server

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/vigil/internal/app"
	"github.com/ayusman/vigil/internal/capture"
	"github.com/ayusman/vigil/internal/detector"
	"github.com/ayusman/vigil/internal/features"
)

// DetectHandler classifies a single frame in an ephemeral session.
//
// The body is either an encoded image (any image/* or
// application/octet-stream content type) or a text frame as accepted on the
// websocket: a data URL or a JSON frame.
type DetectHandler struct {
	pipeline *app.Pipeline
	resolve  resolveFunc
	maxBytes int64
}

// NewDetectHandler creates a new DetectHandler.
func NewDetectHandler(p *app.Pipeline, resolve resolveFunc, maxBytes int64) *DetectHandler {
	return &DetectHandler{pipeline: p, resolve: resolve, maxBytes: maxBytes}
}

func (h *DetectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	received := time.Now()

	th, err := h.resolve(r.URL.Query().Get("profile"))
	if err != nil {
		writeJSON(w, statusFor(err), errorMessage{Error: err.Error()})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorMessage{Error: err.Error()})
		return
	}
	if len(body) == 0 {
		writeJSON(w, http.StatusBadRequest, errorMessage{Error: capture.ErrInvalidFrame.Error() + ": empty body"})
		return
	}

	var det *detector.Detection
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "image/") || strings.HasPrefix(ct, "application/octet-stream") {
		det, err = h.pipeline.DetectImage(body)
	} else {
		det, err = decodeText(h.pipeline, body)
	}
	if err != nil {
		writeJSON(w, statusFor(err), errorMessage{Error: err.Error()})
		return
	}

	id := uuid.New().String()
	tracker := h.pipeline.Tracker()
	if err := tracker.StartWithThresholds(id, th); err != nil {
		writeJSON(w, statusFor(err), errorMessage{Error: err.Error()})
		return
	}
	defer tracker.End(id)

	res, err := h.pipeline.Apply(r.Context(), id, features.NewExtractor(th), det, received)
	if err != nil {
		writeJSON(w, statusFor(err), errorMessage{Error: err.Error()})
		return
	}

	w.Header().Set(SessionHeader, id)
	writeJSON(w, http.StatusOK, res.Record())
}
