package jobs

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWorker_RunsRegisteredSweeps(t *testing.T) {
	w := NewWorker(zerolog.New(os.Stderr))

	var calls int64
	w.Register("test-sweep", 50*time.Millisecond, func(ctx context.Context) (int64, error) {
		atomic.AddInt64(&calls, 1)
		return 1, nil
	})

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&calls) < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 2 sweep runs, got %d", atomic.LoadInt64(&calls))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWorker_SweepErrorDoesNotStopSchedule(t *testing.T) {
	w := NewWorker(zerolog.New(os.Stderr))

	var calls int64
	w.Register("failing-sweep", 50*time.Millisecond, func(ctx context.Context) (int64, error) {
		atomic.AddInt64(&calls, 1)
		return 0, errors.New("boom")
	})

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&calls) < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected sweep to keep running after errors, got %d runs", atomic.LoadInt64(&calls))
		case <-time.After(10 * time.Millisecond):
		}
	}
}
