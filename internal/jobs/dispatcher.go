// Package jobs provides the fire-and-forget boundary to the back office's
// job queue (notification emails, reset emails). Enqueue failures are logged
// and discarded; they never propagate to the caller.
package jobs

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Job kinds dispatched by this service.
const (
	KindAccountLocked      = "account_locked"
	KindPasswordResetEmail = "password_reset_email"
)

// Job is a queued unit of work.
type Job struct {
	Kind    string
	Payload map[string]string
}

// Queue is the outbound job transport. The production implementation lives
// with the back office's worker fleet.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// LogQueue records jobs through zerolog. It stands in for the back office's
// broker in development and single-node deployments.
type LogQueue struct {
	logger zerolog.Logger
}

func NewLogQueue(logger zerolog.Logger) *LogQueue {
	return &LogQueue{logger: logger}
}

func (q *LogQueue) Enqueue(_ context.Context, job Job) error {
	// Payload values stay out of the log; reset jobs carry raw tokens.
	q.logger.Info().
		Str("kind", job.Kind).
		Str("user_id", job.Payload["user_id"]).
		Msg("Job enqueued")
	return nil
}

// Dispatcher wraps a Queue with async, failure-swallowing dispatch.
type Dispatcher struct {
	queue  Queue
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. A nil queue drops every job (useful in
// tests and environments without a worker fleet).
func NewDispatcher(queue Queue, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{queue: queue, logger: logger}
}

// Enqueue hands the job off on a background goroutine. The caller's context
// is not used: the job must outlive the request that spawned it.
func (d *Dispatcher) Enqueue(kind string, payload map[string]string) {
	if d == nil || d.queue == nil {
		return
	}

	job := Job{Kind: kind, Payload: payload}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.queue.Enqueue(context.Background(), job); err != nil {
			d.logger.Error().Err(err).Str("kind", kind).Msg("Job enqueue failed")
		}
	}()
}

// Wait blocks until in-flight enqueues finish. Used during shutdown.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
