package asr

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ai-speech-asr-service/internal/models"
	"ai-speech-asr-service/internal/observability/logging"
	"ai-speech-asr-service/internal/observability/metrics"
)

// ErrStopped is returned by Submit once the worker is stopping.
var ErrStopped = errors.New("asr: worker stopped")

// QueueSize returns the event queue capacity for the configured buffer and
// gap timeout.
func QueueSize(buffer int, gap time.Duration) int {
	if buffer < 1 {
		buffer = 1
	}
	if gap > 0 && buffer < 4 {
		buffer = 4
	}
	return buffer
}

// Status is a snapshot of the worker and engine state.
type Status struct {
	Running      bool      `json:"running"`
	State        string    `json:"state"`
	Pending      int       `json:"pending"`
	Queued       int       `json:"queued"`
	Processed    uint64    `json:"processed"`
	Flushed      uint64    `json:"flushed"`
	Errors       uint64    `json:"errors"`
	LastError    string    `json:"lastError,omitempty"`
	LastActivity time.Time `json:"lastActivity,omitzero"`
}

// Worker feeds queued VAD events and gap-timeout ticks into an Engine from a
// single goroutine.
type Worker struct {
	engine  *Engine
	queue   chan *models.VadEvent
	metrics *metrics.Metrics
	log     zerolog.Logger

	// OnError is called with every failed invocation. Set before Start.
	OnError func(error)

	mu       sync.Mutex
	started  bool
	quit     chan struct{}
	done     chan struct{}
	cancel   context.CancelFunc
	stopOnce sync.Once

	// intake is held shared by Submit; Stop takes it exclusively so that
	// every accepted event is queued before the run loop drains.
	intake  sync.RWMutex
	closing chan struct{}

	running   atomic.Bool
	status    atomic.Pointer[Status]
	processed uint64
	errors    uint64
	lastError string
}

// NewWorker creates a worker with a queue of the given capacity, see
// QueueSize.
func NewWorker(engine *Engine, queueSize int, m *metrics.Metrics) *Worker {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	if queueSize < 1 {
		queueSize = 1
	}
	w := &Worker{
		engine:  engine,
		queue:   make(chan *models.VadEvent, queueSize),
		metrics: m,
		log:     logging.WithComponent("worker"),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	w.publishStatus()
	return w
}

// Start launches the processing goroutine. Cancelling ctx does not stop the
// worker; use Stop.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel
	w.running.Store(true)
	w.publishStatus()

	go w.run(runCtx)
	w.log.Info().
		Dur("gapTimeout", w.engine.GapTimeout()).
		Int("queue", cap(w.queue)).
		Msg("Worker started")
}

// Submit enqueues an event, blocking while the queue is full. An accepted
// event is processed even if Stop is called concurrently.
func (w *Worker) Submit(ctx context.Context, ev *models.VadEvent) error {
	w.intake.RLock()
	defer w.intake.RUnlock()

	select {
	case <-w.closing:
		return ErrStopped
	default:
	}

	select {
	case w.queue <- ev:
		w.metrics.QueueDepth.Set(float64(len(w.queue)))
		return nil
	case <-w.closing:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop stops intake, processes the queued events, flushes any pending
// utterance and waits for the goroutine to exit. If ctx expires first the
// in-flight invocation is cancelled. Stop is idempotent and a no-op on a
// worker that was never started.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if !started {
		return nil
	}

	w.stopOnce.Do(func() {
		close(w.closing)
		w.intake.Lock()
		close(w.quit)
		w.intake.Unlock()
	})

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.cancel()
		<-w.done
		return ctx.Err()
	}
}

// Running reports whether the processing goroutine is alive.
func (w *Worker) Running() bool { return w.running.Load() }

// Status returns the latest snapshot.
func (w *Worker) Status() Status {
	s := *w.status.Load()
	s.Queued = len(w.queue)
	return s
}

func (w *Worker) run(ctx context.Context) {
	defer func() {
		w.cancel()
		w.running.Store(false)
		w.publishStatus()
		close(w.done)
		w.log.Info().Uint64("processed", w.processed).Msg("Worker stopped")
	}()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.quit:
			w.drain(ctx)
			return
		case ev := <-w.queue:
			w.invoke(ctx, ev)
		case <-timer.C:
			select {
			case ev := <-w.queue:
				w.invoke(ctx, ev)
			default:
				w.invoke(ctx, nil)
			}
		}
		w.arm(timer)
	}
}

// arm schedules a gap-timeout tick while an utterance is accumulating.
func (w *Worker) arm(timer *time.Timer) {
	gap := w.engine.GapTimeout()
	if gap > 0 && w.engine.Pending() > 0 {
		timer.Reset(gap)
		return
	}
	timer.Stop()
}

func (w *Worker) drain(ctx context.Context) {
	for len(w.queue) > 0 {
		w.invoke(ctx, <-w.queue)
	}
	if err := w.engine.Flush(ctx, ReasonShutdown); err != nil {
		w.fail(err)
	}
}

func (w *Worker) invoke(ctx context.Context, ev *models.VadEvent) {
	w.metrics.QueueDepth.Set(float64(len(w.queue)))
	err := w.engine.Process(ctx, ev)
	w.processed++
	if err != nil {
		w.fail(err)
		return
	}
	w.publishStatus()
}

func (w *Worker) fail(err error) {
	w.errors++
	w.lastError = err.Error()
	w.log.Error().Err(err).Int("pending", w.engine.Pending()).Msg("Engine invocation failed")
	if w.OnError != nil {
		w.OnError(err)
	}
	w.publishStatus()
}

func (w *Worker) publishStatus() {
	w.status.Store(&Status{
		Running:      w.running.Load(),
		State:        w.engine.State().String(),
		Pending:      w.engine.Pending(),
		Processed:    w.processed,
		Flushed:      w.engine.Flushed(),
		Errors:       w.errors,
		LastError:    w.lastError,
		LastActivity: w.engine.LastActivity(),
	})
}
