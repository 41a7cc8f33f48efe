package actionlog

import (
	"context"
	"log/slog"
	"sync"
)

type queued struct {
	ctx context.Context
	evt Event
}

// Async hands events to a single background writer so request handlers never
// wait on disk. When the queue is full the event is dropped with a warning.
type Async struct {
	next   Recorder
	logger *slog.Logger
	queue  chan queued

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
}

// NewAsync starts the background writer.
func NewAsync(next Recorder, buffer int, logger *slog.Logger) *Async {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 256
	}
	a := &Async{
		next:   next,
		logger: logger,
		queue:  make(chan queued, buffer),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for q := range a.queue {
		a.next.Record(q.ctx, q.evt)
	}
}

// Record implements Recorder. The event is written after the request's
// context is cancelled, so it is detached from cancellation here.
func (a *Async) Record(ctx context.Context, evt Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- queued{ctx: context.WithoutCancel(ctx), evt: evt}:
	default:
		a.logger.WarnContext(ctx, "action log queue full, dropping event",
			slog.String("action_type", evt.ActionType),
		)
	}
}

// Close stops accepting events and waits until queued ones are written or
// ctx ends.
func (a *Async) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.queue)
		a.mu.Unlock()
	})
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
