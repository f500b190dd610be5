package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mfolta/subwatch/models"
)

// ErrAlreadyRunning is returned when Start is called while a previous
// monitoring loop is still active.
var ErrAlreadyRunning = errors.New("monitoring is already running")

// Sink receives events pushed from a running monitoring loop. The
// dashboard session implements this to keep its feed and activity log
// current.
type Sink interface {
	NewPostDetected(post models.Post)
	LogMessage(message, kind string)
	UpdateMonitoringStatus(active bool)
}

// PollFunc performs one polling pass. Errors are logged and do not stop
// the loop.
type PollFunc func(ctx context.Context) error

// Runner drives a single polling loop at a fixed interval. Only one
// loop runs at a time; starting twice fails until Stop is called.
type Runner struct {
	interval time.Duration
	log      *logrus.Logger

	mutex   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewRunner creates a runner polling at the given interval.
func NewRunner(pollingInterval time.Duration, log *logrus.Logger) *Runner {
	return &Runner{
		interval: pollingInterval,
		log:      log,
	}
}

// Start launches the polling loop in a background goroutine. The poll
// function runs once immediately and then once per interval until Stop
// is called or the parent context is cancelled.
func (r *Runner) Start(ctx context.Context, poll PollFunc) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.running {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	go r.loop(loopCtx, poll)

	return nil
}

func (r *Runner) loop(ctx context.Context, poll PollFunc) {
	defer func() {
		r.mutex.Lock()
		r.running = false
		close(r.done)
		r.mutex.Unlock()
	}()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if err := poll(ctx); err != nil && ctx.Err() == nil {
		r.log.WithError(err).Error("Polling pass failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := poll(ctx); err != nil && ctx.Err() == nil {
				r.log.WithError(err).Error("Polling pass failed")
			}
		}
	}
}

// Stop cancels the running loop and waits for it to exit. Stopping an
// idle runner is a no-op.
func (r *Runner) Stop() {
	r.mutex.Lock()
	if !r.running {
		r.mutex.Unlock()
		return
	}
	cancel := r.cancel
	done := r.done
	r.mutex.Unlock()

	cancel()
	<-done
}

// Active reports whether a loop is currently running.
func (r *Runner) Active() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.running
}
