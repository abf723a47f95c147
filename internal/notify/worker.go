package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultMaxAttempts = 5
	defaultBatch       = 50
)

type recoverer interface {
	Recover(ctx context.Context) (int64, error)
}

// Worker drains the queue on a ticker until stopped.
type Worker struct {
	Queue       Queue
	Deliver     func(ctx context.Context, env Envelope) error
	Interval    time.Duration
	Batch       int
	MaxAttempts int
	Logger      *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewWorker(q Queue, d *Dispatcher, interval time.Duration, maxAttempts int) *Worker {
	return &Worker{
		Queue:       q,
		Deliver:     d.Deliver,
		Interval:    interval,
		MaxAttempts: maxAttempts,
		Logger:      d.logger(),
		stopCh:      make(chan struct{}),
	}
}

func (w *Worker) log() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}

// Result counts one drain pass.
type Result struct {
	Sent    int
	Retried int
	Failed  int
}

// RunOnce claims one batch and tries each envelope once.
func (w *Worker) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	batch := w.Batch
	if batch <= 0 {
		batch = defaultBatch
	}
	maxAttempts := w.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	envs, err := w.Queue.Claim(ctx, batch)
	if err != nil {
		return res, err
	}
	for _, env := range envs {
		if err := w.Deliver(ctx, env); err != nil {
			dead, rerr := w.Queue.Retry(ctx, env, err, maxAttempts)
			if rerr != nil {
				w.log().ErrorContext(ctx, "outbox retry bookkeeping failed", "id", env.ID, "error", rerr)
				continue
			}
			if dead {
				res.Failed++
				w.log().ErrorContext(ctx, "notification failed permanently", "id", env.ID, "event", env.Event, "attempts", env.Attempts+1, "error", err)
			} else {
				res.Retried++
				w.log().WarnContext(ctx, "notification delivery failed", "id", env.ID, "event", env.Event, "attempt", env.Attempts+1, "max", maxAttempts, "error", err)
			}
			continue
		}
		if err := w.Queue.Ack(ctx, env); err != nil {
			w.log().ErrorContext(ctx, "outbox ack failed", "id", env.ID, "error", err)
			continue
		}
		res.Sent++
	}
	return res, nil
}

// Start runs the poll loop in the background until ctx ends or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	if w.stopCh == nil {
		w.stopCh = make(chan struct{})
	}
	interval := w.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if r, ok := w.Queue.(recoverer); ok {
		if n, err := r.Recover(ctx); err != nil {
			w.log().WarnContext(ctx, "outbox recover failed", "error", err)
		} else if n > 0 {
			w.log().InfoContext(ctx, "outbox rows released", "count", n)
		}
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		w.log().Info("outbox worker started", "interval", interval.String())
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-ticker.C:
				if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
					w.log().Warn("outbox worker error", "error", err)
				}
			}
		}
	}()
}

// Stop ends the loop and waits for the in-flight pass.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		if w.stopCh != nil {
			close(w.stopCh)
		}
	})
	w.wg.Wait()
	w.log().Info("outbox worker stopped")
}
