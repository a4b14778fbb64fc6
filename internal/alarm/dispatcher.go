package alarm

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Device is a physical or remote alarm.
type Device interface {
	Activate(ctx context.Context, sessionID string) error
	Deactivate(ctx context.Context, sessionID string) error
}

type event struct {
	sessionID string
	edge      Edge
}

// Dispatcher is a Sink that delivers edges to a Device from a single
// goroutine, in the order they were signalled. Device errors are logged and
// dropped. Signal never waits on the device: the queue is unbounded, so a
// slow device cannot stall the session that raised the edge.
type Dispatcher struct {
	device  Device
	logger  *zap.Logger
	timeout time.Duration

	wake chan struct{}
	done chan struct{}

	mu     sync.Mutex
	queue  []event
	closed bool
}

// NewDispatcher starts a dispatcher for device. Each device call is bounded
// by timeout.
func NewDispatcher(device Device, logger *zap.Logger, timeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		device:  device,
		logger:  logger,
		timeout: timeout,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Signal queues an edge. Edges signalled after Close are dropped.
func (d *Dispatcher) Signal(sessionID string, edge Edge) {
	if edge == None {
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("alarm edge after dispatcher close",
			zap.String("session_id", sessionID), zap.Stringer("edge", edge))
		return
	}
	d.queue = append(d.queue, event{sessionID: sessionID, edge: edge})
	d.mu.Unlock()

	d.notify()
}

// Pending returns the number of queued edges not yet handed to the device.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *Dispatcher) notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Close stops accepting edges and waits until queued ones are delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.notify()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		closed := d.closed
		d.mu.Unlock()

		for _, ev := range batch {
			d.deliver(ev)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-d.wake
	}
}

func (d *Dispatcher) deliver(ev event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var err error
	switch ev.edge {
	case Activate:
		err = d.device.Activate(ctx, ev.sessionID)
	case Deactivate:
		err = d.device.Deactivate(ctx, ev.sessionID)
	}

	if err != nil {
		d.logger.Error("alarm device failed",
			zap.String("session_id", ev.sessionID),
			zap.Stringer("edge", ev.edge),
			zap.Error(err))
		return
	}
	d.logger.Debug("alarm edge delivered",
		zap.String("session_id", ev.sessionID),
		zap.Stringer("edge", ev.edge))
}
