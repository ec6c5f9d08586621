package daemon

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mwarner/jobscout/internal/digest"
)

type nopGate struct{}

func (nopGate) Send(ctx context.Context, opts digest.Options) (digest.Report, error) {
	return digest.Report{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_RequiresSchedule(t *testing.T) {
	d := New(nil, nopGate{}, "", "", digest.Options{}, discardLogger())
	if err := d.Run(context.Background()); err == nil {
		t.Fatal("expected error with no schedules")
	}
}

func TestRun_RejectsInvalidSpec(t *testing.T) {
	d := New(nil, nopGate{}, "not a cron spec", "", digest.Options{}, discardLogger())
	if err := d.Run(context.Background()); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := New(nil, nopGate{}, "0 */6 * * *", "0 8 * * *", digest.Options{}, discardLogger())

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop on context cancel")
	}
}
