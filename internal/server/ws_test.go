package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/vigil/internal/alarm"
	"github.com/ayusman/vigil/internal/app"
	"github.com/ayusman/vigil/internal/config"
	"github.com/ayusman/vigil/internal/detector"
	"github.com/ayusman/vigil/internal/session"
	"github.com/ayusman/vigil/internal/store"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSink struct {
	mu    sync.Mutex
	edges []alarm.Edge
}

func (s *recordingSink) Signal(_ string, e alarm.Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges = append(s.edges, e)
}

func (s *recordingSink) Edges() []alarm.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]alarm.Edge(nil), s.edges...)
}

type fixture struct {
	ts      *httptest.Server
	tracker *session.Tracker
	clock   *testClock
	sink    *recordingSink
	store   *store.Store
}

func newFixture(t *testing.T, withStore bool) *fixture {
	t.Helper()

	f := &fixture{
		clock: &testClock{now: time.Date(2026, 4, 2, 1, 0, 0, 0, time.UTC)},
		sink:  &recordingSink{},
	}
	f.tracker = session.NewTracker(config.DefaultThresholds(), session.WithSink(f.sink))

	cfg := Config{
		Pipeline: app.NewPipeline(app.PipelineConfig{Tracker: f.tracker, Clock: f.clock.Now}),
	}
	if withStore {
		s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		f.store = s
		cfg.Store = s
	}

	f.ts = httptest.NewServer(New(cfg))
	t.Cleanup(f.ts.Close)
	return f
}

func (f *fixture) dial(t *testing.T, query string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws" + query
	return websocket.DefaultDialer.Dial(url, nil)
}

func landmarkFrame(t *testing.T, det *detector.Detection) []byte {
	t.Helper()
	data, err := json.Marshal(det)
	require.NoError(t, err)
	return data
}

func exchange(t *testing.T, conn *websocket.Conn, msg []byte) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))
	var reply map[string]interface{}
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func TestSessionHandler_Lifecycle(t *testing.T) {
	f := newFixture(t, false)

	conn, resp, err := f.dial(t, "")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get(SessionHeader))
	assert.Equal(t, 1, f.tracker.Len())

	reply := exchange(t, conn, landmarkFrame(t, &detector.Detection{Width: 640, Height: 480, Face: detector.NeutralFace()}))
	assert.Equal(t, "NORMAL", reply["alert_level"])
	assert.Equal(t, false, reply["alarm_active"])
	assert.Equal(t, false, reply["phone_detected"])
	assert.Contains(t, reply, "eyes_state")
	assert.Contains(t, reply, "mouth_state")
	assert.Contains(t, reply, "head_position")
	assert.Contains(t, reply, "timestamp")

	reply = exchange(t, conn, landmarkFrame(t, &detector.Detection{Width: 640, Height: 480}))
	assert.Equal(t, "WARNING", reply["alert_level"], "no face")

	conn.Close()
	assert.Eventually(t, func() bool { return f.tracker.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSessionHandler_FrameErrors(t *testing.T) {
	f := newFixture(t, false)

	conn, _, err := f.dial(t, "")
	require.NoError(t, err)
	defer conn.Close()

	tests := []struct {
		name string
		msg  string
	}{
		{name: "not a data url", msg: "garbage"},
		{name: "malformed json", msg: `{"width":`},
		{name: "zero dimensions", msg: `{"width":0,"height":0}`},
		{name: "short face mesh", msg: `{"width":640,"height":480,"face":{"points":[{"x":0.5,"y":0.5,"z":0}]}}`},
		{name: "image without detector", msg: `{"image":"data:image/jpeg;base64,AAAA"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := exchange(t, conn, []byte(tt.msg))
			assert.NotEmpty(t, reply["error"])
			assert.NotContains(t, reply, "alert_level")
		})
	}

	// The session survives rejected frames.
	reply := exchange(t, conn, landmarkFrame(t, &detector.Detection{Width: 640, Height: 480, Face: detector.NeutralFace()}))
	assert.Equal(t, "NORMAL", reply["alert_level"])
}

func TestSessionHandler_DisconnectReleasesAlarm(t *testing.T) {
	f := newFixture(t, false)

	conn, _, err := f.dial(t, "")
	require.NoError(t, err)

	phone := landmarkFrame(t, &detector.Detection{
		Width:  640,
		Height: 480,
		Face:   detector.NeutralFace(),
		Hands:  []detector.HandLandmarks{detector.GripHandLandmarks()},
	})

	var reply map[string]interface{}
	for _, step := range []time.Duration{0, 6 * time.Second, 3 * time.Second} {
		f.clock.Advance(step)
		reply = exchange(t, conn, phone)
	}
	assert.Equal(t, "DANGER", reply["alert_level"])
	assert.Equal(t, true, reply["alarm_active"])
	assert.Equal(t, []alarm.Edge{alarm.Activate}, f.sink.Edges())

	conn.Close()
	assert.Eventually(t, func() bool {
		edges := f.sink.Edges()
		return len(edges) == 2 && edges[1] == alarm.Deactivate
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionHandler_ConcurrentSessionsAreIsolated(t *testing.T) {
	f := newFixture(t, false)

	drowsy, _, err := f.dial(t, "")
	require.NoError(t, err)
	defer drowsy.Close()
	alert, _, err := f.dial(t, "")
	require.NoError(t, err)
	defer alert.Close()

	assert.Equal(t, 2, f.tracker.Len())

	closed := landmarkFrame(t, &detector.Detection{Width: 640, Height: 480, Face: detector.ClosedEyesFace()})
	open := landmarkFrame(t, &detector.Detection{Width: 640, Height: 480, Face: detector.NeutralFace()})

	exchange(t, drowsy, closed)
	f.clock.Advance(17 * time.Second)
	reply := exchange(t, drowsy, closed)
	assert.Equal(t, "WARNING", reply["alert_level"])

	reply = exchange(t, alert, open)
	assert.Equal(t, "NORMAL", reply["alert_level"])
}

func TestSessionHandler_Profiles(t *testing.T) {
	f := newFixture(t, true)

	strict := config.DefaultThresholds()
	strict.EyesClosedTime = 2 * time.Second
	require.NoError(t, f.store.Profiles().Create(&store.Profile{ID: "p1", Name: "strict", Thresholds: strict}))

	t.Run("unknown profile is rejected before upgrade", func(t *testing.T) {
		_, resp, err := f.dial(t, "?profile=missing")
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, 0, f.tracker.Len())
	})

	t.Run("profile thresholds apply to the session", func(t *testing.T) {
		conn, _, err := f.dial(t, "?profile=strict")
		require.NoError(t, err)
		defer conn.Close()

		closed := landmarkFrame(t, &detector.Detection{Width: 640, Height: 480, Face: detector.ClosedEyesFace()})
		exchange(t, conn, closed)
		f.clock.Advance(1700 * time.Millisecond)
		reply := exchange(t, conn, closed)

		// 1.7s of a 2s budget is past 80%.
		assert.Equal(t, "WARNING", reply["alert_level"])
		assert.InDelta(t, 1.7, reply["eyes_closed_seconds"], 1e-9)
	})
}

func TestSessionHandler_ProfileWithoutStore(t *testing.T) {
	f := newFixture(t, false)

	_, resp, err := f.dial(t, "?profile=strict")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
