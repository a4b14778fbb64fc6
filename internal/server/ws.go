package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/vigil/internal/app"
	"github.com/ayusman/vigil/internal/config"
	"github.com/ayusman/vigil/internal/detector"
	"github.com/ayusman/vigil/internal/features"
	"github.com/ayusman/vigil/internal/session"
)

// SessionHeader carries the session id in the upgrade response.
const SessionHeader = "X-Session-Id"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// resolveFunc returns the thresholds for an optional profile name.
type resolveFunc func(profile string) (config.Thresholds, error)

// SessionHandler runs one session per websocket connection. Every message
// is one frame and gets exactly one reply: the result record or an error.
type SessionHandler struct {
	pipeline *app.Pipeline
	resolve  resolveFunc
	logger   *zap.Logger
	maxBytes int64
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(p *app.Pipeline, resolve resolveFunc, logger *zap.Logger, maxBytes int64) *SessionHandler {
	return &SessionHandler{
		pipeline: p,
		resolve:  resolve,
		logger:   logger,
		maxBytes: maxBytes,
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	profile := r.URL.Query().Get("profile")
	th, err := h.resolve(profile)
	if err != nil {
		writeJSON(w, statusFor(err), errorMessage{Error: err.Error()})
		return
	}

	id := uuid.New().String()
	conn, err := upgrader.Upgrade(w, r, http.Header{SessionHeader: []string{id}})
	if err != nil {
		h.logger.Warn("websocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	tracker := h.pipeline.Tracker()
	if err := tracker.StartWithThresholds(id, th); err != nil {
		conn.WriteJSON(errorMessage{Error: err.Error()})
		return
	}
	// Every exit path ends the session so its alarm is released.
	defer tracker.End(id)

	log := h.logger.With(zap.String("session_id", id), zap.String("profile", profile))
	log.Info("client connected", zap.String("remote", r.RemoteAddr))

	conn.SetReadLimit(h.maxBytes)
	ex := features.NewExtractor(th)

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("client read failed", zap.Error(err))
			}
			break
		}
		received := time.Now()

		var reply interface{}
		res, err := h.frame(r, id, ex, mt, data, received)
		if err != nil {
			log.Debug("frame rejected", zap.Error(err))
			reply = errorMessage{Error: err.Error()}
		} else {
			reply = res
		}

		if err := conn.WriteJSON(reply); err != nil {
			log.Warn("client write failed", zap.Error(err))
			break
		}
	}

	log.Info("client disconnected")
}

// frame decodes and applies one message.
func (h *SessionHandler) frame(r *http.Request, id string, ex *features.Extractor, mt int, data []byte, received time.Time) (session.Record, error) {
	var (
		det *detector.Detection
		err error
	)
	switch mt {
	case websocket.BinaryMessage:
		det, err = h.pipeline.DetectImage(data)
	default:
		det, err = decodeText(h.pipeline, data)
	}
	if err != nil {
		return session.Record{}, err
	}

	res, err := h.pipeline.Apply(r.Context(), id, ex, det, received)
	if err != nil {
		return session.Record{}, err
	}
	return res.Record(), nil
}
