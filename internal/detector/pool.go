package detector

import (
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// Pool spreads detection across a fixed set of detectors so that one slow
// frame never blocks other sessions for longer than the acquire timeout.
// Pool is itself a Detector.
type Pool struct {
	idle    chan Detector
	all     []Detector
	timeout time.Duration
}

// NewPool creates size detectors with factory. A zero timeout waits forever
// for a free worker.
func NewPool(size int, timeout time.Duration, factory func() (Detector, error)) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}

	p := &Pool{
		idle:    make(chan Detector, size),
		timeout: timeout,
	}

	for i := 0; i < size; i++ {
		d, err := factory()
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("create detector %d: %w", i, err)
		}
		p.all = append(p.all, d)
		p.idle <- d
	}

	return p, nil
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.all)
}

// Detect runs the frame on the first free worker. When no worker frees up
// within the timeout, ErrUnavailable is returned and the frame is dropped.
func (p *Pool) Detect(frame *gocv.Mat) (*Detection, error) {
	var d Detector
	if p.timeout <= 0 {
		d = <-p.idle
	} else {
		timer := time.NewTimer(p.timeout)
		defer timer.Stop()
		select {
		case d = <-p.idle:
		case <-timer.C:
			return nil, fmt.Errorf("%w: all %d detectors busy", ErrUnavailable, len(p.all))
		}
	}
	defer func() { p.idle <- d }()

	return d.Detect(frame)
}

// Close releases every worker.
func (p *Pool) Close() error {
	var errs []error
	for _, d := range p.all {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
