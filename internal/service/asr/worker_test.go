package asr

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"ai-speech-asr-service/internal/service/stt/mock"
)

func newWorkerHarness(t *testing.T, gap time.Duration, responses ...mock.Response) (*harness, *Worker) {
	t.Helper()
	h := newHarness(t, Options{GapTimeout: gap})
	h.stt = mock.New(responses...)
	h.engine.stt = h.stt
	h.engine.now = time.Now
	w := NewWorker(h.engine, QueueSize(0, gap), h.metrics)
	return h, w
}

func texts(ts ...string) []mock.Response {
	out := make([]mock.Response, len(ts))
	for i, s := range ts {
		out[i] = mock.Response{Text: s}
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func stop(t *testing.T, w *Worker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestQueueSize(t *testing.T) {
	tests := []struct {
		buffer int
		gap    time.Duration
		want   int
	}{
		{0, 0, 1},
		{-3, 0, 1},
		{8, 0, 8},
		{0, 500 * time.Millisecond, 4},
		{2, 500 * time.Millisecond, 4},
		{16, 500 * time.Millisecond, 16},
	}

	for _, tt := range tests {
		if got := QueueSize(tt.buffer, tt.gap); got != tt.want {
			t.Errorf("QueueSize(%d, %s) = %d, want %d", tt.buffer, tt.gap, got, tt.want)
		}
	}
}

func TestWorker_GapTimeoutFlush(t *testing.T) {
	h, w := newWorkerHarness(t, 50*time.Millisecond, texts("hello ...")...)
	w.Start(context.Background())
	defer stop(t, w)

	if err := w.Submit(context.Background(), vad("m1", 0, 8000)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, "timeout flush", func() bool { return len(h.pub.all()) == 1 })

	if got := h.pub.all()[0].event.Text; got != "hello" {
		t.Errorf("expected 'hello', got %q", got)
	}
	if n := testutil.ToFloat64(h.metrics.UtterancesFlushed.WithLabelValues(ReasonTimeout)); n != 1 {
		t.Errorf("expected 1 timeout flush, got %v", n)
	}
	waitFor(t, "idle status", func() bool { return w.Status().State == "IDLE" })
}

func TestWorker_ContinuationWithinGap(t *testing.T) {
	h, w := newWorkerHarness(t, 500*time.Millisecond, texts("hello ...", "world")...)
	w.Start(context.Background())
	defer stop(t, w)

	for _, ev := range []string{"m1", "m2"} {
		if err := w.Submit(context.Background(), vad(ev, 0, 8000)); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	waitFor(t, "merged utterance", func() bool { return len(h.pub.all()) == 1 })

	if got := h.pub.all()[0].event.Text; got != "hello world" {
		t.Errorf("expected 'hello world', got %q", got)
	}
	if n := testutil.ToFloat64(h.metrics.UtterancesFlushed.WithLabelValues(ReasonComplete)); n != 1 {
		t.Errorf("expected 1 complete flush, got %v", n)
	}
}

func TestWorker_StopFlushesPendingUtterance(t *testing.T) {
	h, w := newWorkerHarness(t, time.Minute, texts("goodbye ...")...)
	w.Start(context.Background())

	if err := w.Submit(context.Background(), vad("m1", 0, 8000)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, "accumulating", func() bool { return w.Status().Pending == 1 })

	stop(t, w)

	got := h.pub.all()
	if len(got) != 1 || got[0].event.Text != "goodbye" {
		t.Fatalf("expected pending utterance flushed on stop, got %+v", got)
	}
	if n := testutil.ToFloat64(h.metrics.UtterancesFlushed.WithLabelValues(ReasonShutdown)); n != 1 {
		t.Errorf("expected 1 shutdown flush, got %v", n)
	}
	if w.Running() || w.Status().Running {
		t.Error("expected worker to report stopped")
	}
}

func TestWorker_StopDrainsQueue(t *testing.T) {
	h, w := newWorkerHarness(t, 0,
		mock.Response{Text: "one", Delay: 50 * time.Millisecond},
		mock.Response{Text: "two"},
		mock.Response{Text: "three"},
	)
	w = NewWorker(h.engine, 4, h.metrics)
	w.Start(context.Background())

	for _, id := range []string{"m1", "m2", "m3"} {
		if err := w.Submit(context.Background(), vad(id, 0, 8000)); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	stop(t, w)

	if n := len(h.pub.all()); n != 3 {
		t.Errorf("expected all queued events processed, got %d utterances", n)
	}
	if st := w.Status(); st.Processed != 3 || st.Queued != 0 {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestWorker_SubmitRacingStop(t *testing.T) {
	for run := 0; run < 50; run++ {
		_, w := newWorkerHarness(t, 0)
		w.Start(context.Background())

		var accepted atomic.Uint64
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					if err := w.Submit(context.Background(), vad("m", 0, 0)); err != nil {
						if !errors.Is(err, ErrStopped) {
							t.Errorf("Submit: %v", err)
						}
						return
					}
					accepted.Add(1)
				}
			}()
		}

		time.Sleep(time.Millisecond)
		stop(t, w)
		wg.Wait()

		if got, want := w.Status().Processed, accepted.Load(); got != want {
			t.Fatalf("run %d: processed %d of %d accepted events", run, got, want)
		}
	}
}

func TestWorker_StopIdempotent(t *testing.T) {
	_, w := newWorkerHarness(t, 0, texts("x")...)

	if err := w.Stop(context.Background()); err != nil {
		t.Errorf("Stop before Start: %v", err)
	}

	w.Start(context.Background())
	stop(t, w)
	stop(t, w)

	if err := w.Submit(context.Background(), vad("m1", 0, 8000)); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestWorker_SubmitHonoursContext(t *testing.T) {
	_, w := newWorkerHarness(t, 0, texts("x")...)

	// Not started: the single slot fills and the next Submit blocks.
	if err := w.Submit(context.Background(), vad("m1", 0, 8000)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := w.Submit(ctx, vad("m2", 0, 8000)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestWorker_ErrorsDoNotStopWorker(t *testing.T) {
	h, w := newWorkerHarness(t, 0, texts("hello")...)
	h.loader.err = os.ErrNotExist

	errs := make(chan error, 4)
	w.OnError = func(err error) { errs <- err }
	w.Start(context.Background())
	defer stop(t, w)

	if err := w.Submit(context.Background(), vad("m1", 0, 8000)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case err := <-errs:
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("unexpected error %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnError not called")
	}

	waitFor(t, "error status", func() bool { return w.Status().Errors == 1 })
	if st := w.Status(); !st.Running || st.LastError == "" {
		t.Errorf("expected running worker with last error, got %+v", st)
	}
}

func TestWorker_StopDeadlineCancelsInvocation(t *testing.T) {
	h, w := newWorkerHarness(t, 0, mock.Response{Text: "slow", Delay: time.Minute})
	w.Start(context.Background())

	if err := w.Submit(context.Background(), vad("m1", 0, 8000)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, "backend call", func() bool { return len(h.stt.Calls()) == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := w.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
	if w.Running() {
		t.Error("expected worker goroutine to exit")
	}
	if len(h.pub.all()) != 0 {
		t.Error("expected cancelled utterance not to be published")
	}
}
