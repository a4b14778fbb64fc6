package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/vigil/internal/alarm"
	"github.com/ayusman/vigil/internal/alert"
	"github.com/ayusman/vigil/internal/config"
	"github.com/ayusman/vigil/internal/features"
)

var (
	// ErrUnknownSession is returned for operations on a session that was never
	// started or has already ended.
	ErrUnknownSession = errors.New("unknown session")
	// ErrSessionExists is returned when starting a session id twice.
	ErrSessionExists = errors.New("session already exists")
	// ErrSessionFault is returned when a frame could not be applied. The
	// session's alarm has been forced off and the session remains usable.
	ErrSessionFault = errors.New("session update failed")
)

type entry struct {
	mu     sync.Mutex
	th     config.Thresholds
	state  State
	closed bool
}

// Tracker owns the state of every active session. Updates to different
// sessions never contend on a shared lock; updates to one session are
// serialized.
type Tracker struct {
	th     config.Thresholds
	sink   alarm.Sink
	logger *zap.Logger
	clock  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithSink delivers alarm edges to sink.
func WithSink(sink alarm.Sink) Option {
	return func(t *Tracker) { t.sink = sink }
}

// WithLogger sets the logger used for level changes and faults.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithClock replaces time.Now for session start times.
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) { t.clock = clock }
}

// NewTracker creates a Tracker whose sessions default to th.
func NewTracker(th config.Thresholds, opts ...Option) *Tracker {
	t := &Tracker{
		th:       th,
		logger:   zap.NewNop(),
		clock:    time.Now,
		sessions: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Thresholds returns the default thresholds of new sessions.
func (t *Tracker) Thresholds() config.Thresholds {
	return t.th
}

// Start creates a zeroed session using the default thresholds.
func (t *Tracker) Start(id string) error {
	return t.StartWithThresholds(id, t.th)
}

// StartWithThresholds creates a zeroed session with its own thresholds.
func (t *Tracker) StartWithThresholds(id string, th config.Thresholds) error {
	if err := th.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.sessions[id]; ok {
		return fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	t.sessions[id] = &entry{
		th:    th,
		state: State{StartedAt: t.clock()},
	}

	t.logger.Info("session started", zap.String("session_id", id))
	return nil
}

func (t *Tracker) lookup(id string) (*entry, error) {
	t.mu.RLock()
	e, ok := t.sessions[id]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return e, nil
}

// Update applies one frame to the session as a single atomic step.
func (t *Tracker) Update(id string, fs features.FeatureSet, now time.Time) (Result, error) {
	e, err := t.lookup(id)
	if err != nil {
		return Result{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// End won the race: the entry was removed after lookup.
	if e.closed {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}

	return t.step(id, e, fs, now)
}

func (t *Tracker) step(id string, e *entry, fs features.FeatureSet, now time.Time) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("session update panicked",
				zap.String("session_id", id),
				zap.Any("panic", r))
			t.forceOff(id, e)
			res = Result{}
			err = fmt.Errorf("%w: %s: %v", ErrSessionFault, id, r)
		}
	}()

	prev := e.state.LastLevel
	first := e.state.Frames == 0

	res = e.state.Advance(e.th, fs, now)
	res.SessionID = id

	if first || res.Level != prev {
		t.logger.Info("alert level changed",
			zap.String("session_id", id),
			zap.Stringer("level", res.Level),
			zap.Stringer("previous", prev))
	}
	t.signal(id, res.Edge)

	return res, nil
}

// forceOff clears danger and alarm. A failing sink must not leave the
// session locked in a bad state, so its panics are swallowed here.
func (t *Tracker) forceOff(id string, e *entry) {
	edge := e.state.ForceOff()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("alarm sink panicked", zap.String("session_id", id), zap.Any("panic", r))
		}
	}()
	t.signal(id, edge)
}

func (t *Tracker) signal(id string, edge alarm.Edge) {
	if edge == alarm.None {
		return
	}
	t.logger.Info("alarm edge", zap.String("session_id", id), zap.Stringer("edge", edge))
	if t.sink != nil {
		t.sink.Signal(id, edge)
	}
}

// End discards the session, forcing its alarm off first. It may run
// concurrently with Update for the same id; after End returns no update of
// that session can turn the alarm back on.
func (t *Tracker) End(id string) error {
	t.mu.Lock()
	e, ok := t.sessions[id]
	delete(t.sessions, id)
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	t.forceOff(id, e)

	t.logger.Info("session ended",
		zap.String("session_id", id),
		zap.Int("frames", e.state.Frames),
		zap.Int("yawns", e.state.Yawn.Total))
	return nil
}

// Snapshot returns a copy of the session's state.
func (t *Tracker) Snapshot(id string) (State, error) {
	e, err := t.lookup(id)
	if err != nil {
		return State{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return State{}, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return e.state, nil
}

// Summary describes an active session.
type Summary struct {
	ID          string      `json:"id"`
	StartedAt   time.Time   `json:"started_at"`
	LastUpdate  time.Time   `json:"last_update"`
	Frames      int         `json:"frames"`
	Level       alert.Level `json:"alert_level"`
	AlarmActive bool        `json:"alarm_active"`
	YawnTotal   int         `json:"yawn_total"`
}

// Sessions lists active sessions ordered by start time.
func (t *Tracker) Sessions() []Summary {
	t.mu.RLock()
	ids := make([]string, 0, len(t.sessions))
	entries := make([]*entry, 0, len(t.sessions))
	for id, e := range t.sessions {
		ids = append(ids, id)
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	out := make([]Summary, 0, len(entries))
	for i, e := range entries {
		e.mu.Lock()
		if !e.closed {
			out = append(out, Summary{
				ID:          ids[i],
				StartedAt:   e.state.StartedAt,
				LastUpdate:  e.state.LastUpdate,
				Frames:      e.state.Frames,
				Level:       e.state.LastLevel,
				AlarmActive: e.state.AlarmActive,
				YawnTotal:   e.state.Yawn.Total,
			})
		}
		e.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Len returns the number of active sessions.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// Close ends every session.
func (t *Tracker) Close() {
	t.mu.RLock()
	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	for _, id := range ids {
		// Already ended concurrently: nothing to do.
		_ = t.End(id)
	}
}
