package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"portfolio-backend/internal/queue"
	"portfolio-backend/internal/shared/telemetry"
)

// Task is one unit of background work: drive a session to a terminal state.
type Task struct {
	SessionID string
	RequestID string
}

// Dispatcher hands tasks to whatever executes them.
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task) error
}

// Runner executes a session's pipeline. *Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, sessionID string) error
}

var (
	// ErrDispatcherClosed is returned by Dispatch after Shutdown.
	ErrDispatcherClosed = errors.New("dispatcher is shutting down")
	// ErrQueueFull is returned when every worker is busy and the queue has no room.
	ErrQueueFull = errors.New("dispatch queue is full")
)

// LocalDispatcher runs tasks on a bounded in-process worker pool.
type LocalDispatcher struct {
	runner  Runner
	workers int

	ch   chan Task
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

// Option configures a LocalDispatcher.
type Option func(*LocalDispatcher)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) Option {
	return func(d *LocalDispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueSize sets the number of tasks that may wait for a worker.
func WithQueueSize(n int) Option {
	return func(d *LocalDispatcher) {
		if n > 0 {
			d.ch = make(chan Task, n)
		}
	}
}

// NewLocalDispatcher starts the worker pool.
func NewLocalDispatcher(runner Runner, opts ...Option) *LocalDispatcher {
	d := &LocalDispatcher{
		runner:  runner,
		workers: 4,
		ch:      make(chan Task, 64),
	}
	for _, o := range opts {
		o(d)
	}
	d.start()
	return d
}

func (d *LocalDispatcher) start() {
	d.once.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go func(workerID int) {
				defer d.wg.Done()
				for task := range d.ch {
					d.run(workerID, task)
				}
			}(i + 1)
		}
	})
}

func (d *LocalDispatcher) run(workerID int, task Task) {
	ctx := WithRequestID(context.Background(), task.RequestID)
	if err := d.runner.Run(ctx, task.SessionID); err != nil {
		telemetry.Error("dispatch.task_failed", map[string]any{
			"worker_id":  workerID,
			"session_id": task.SessionID,
			"request_id": task.RequestID,
			"error":      err.Error(),
		})
	}
}

// Dispatch enqueues task without waiting for a free slot.
func (d *LocalDispatcher) Dispatch(ctx context.Context, task Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case d.ch <- task:
		return nil
	default:
		telemetry.Warn("dispatch.queue_full", map[string]any{
			"session_id": task.SessionID,
			"request_id": task.RequestID,
			"capacity":   cap(d.ch),
		})
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish or ctx to end.
func (d *LocalDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); d.wg.Wait() }()

	select {
	case <-ctx.Done():
		telemetry.Warn("dispatch.shutdown_interrupted", nil)
		return ctx.Err()
	case <-done:
		telemetry.Info("dispatch.drained", nil)
		return nil
	}
}

// QueueDispatcher publishes tasks to an external queue for cmd/worker or
// cmd/lambda-worker to consume.
type QueueDispatcher struct {
	Client queue.Client
	Now    func() time.Time
}

// Dispatch sends task as a queue message.
func (d *QueueDispatcher) Dispatch(ctx context.Context, task Task) error {
	if d.Client == nil {
		return errors.New("queue client not configured")
	}
	if strings.TrimSpace(task.SessionID) == "" {
		return errors.New("task session id is required")
	}
	now := time.Now().UTC()
	if d.Now != nil {
		now = d.Now()
	}
	msg := queue.Message{
		SessionID:  task.SessionID,
		RequestID:  task.RequestID,
		EnqueuedAt: now.Format(time.RFC3339),
		Version:    queue.MessageVersion,
	}
	if err := d.Client.Send(ctx, msg); err != nil {
		return fmt.Errorf("enqueue session %s: %w", task.SessionID, err)
	}
	telemetry.Info("dispatch.enqueued", map[string]any{
		"session_id": task.SessionID,
		"request_id": task.RequestID,
	})
	return nil
}

var (
	_ Dispatcher = (*LocalDispatcher)(nil)
	_ Dispatcher = (*QueueDispatcher)(nil)
)
