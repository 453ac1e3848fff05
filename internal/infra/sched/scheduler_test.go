//go:build !integration

package sched

import (
	"context"
	"errors"
	"testing"
	"time"

	"signals-platform/internal/infra/logging"
)

type fakeDigest struct {
	sent  int
	err   error
	calls int
}

func (f *fakeDigest) SendPendingDigest(ctx context.Context) (int, error) {
	f.calls++
	return f.sent, f.err
}

func TestAdd_RejectsInvalidSpec(t *testing.T) {
	s := NewScheduler(time.Second, logging.Silent())

	err := s.Add(PendingDigestJob, "every morning", func(context.Context) error { return nil })

	if err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestAdd_AcceptsFiveFieldSpec(t *testing.T) {
	s := NewScheduler(time.Second, logging.Silent())

	if err := s.Add(PendingDigestJob, "0 9 * * *", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(s.cron.Entries()); n != 1 {
		t.Errorf("expected 1 entry, got %d", n)
	}
}

func TestRun_BoundsJobWithTimeout(t *testing.T) {
	// --- Arrange ---
	s := NewScheduler(50*time.Millisecond, logging.Silent())
	var deadline time.Time
	var hasDeadline bool

	// --- Act ---
	s.run("probe", func(ctx context.Context) error {
		deadline, hasDeadline = ctx.Deadline()
		return nil
	})

	// --- Assert ---
	if !hasDeadline {
		t.Fatal("expected job context to carry a deadline")
	}
	if time.Until(deadline) > 50*time.Millisecond {
		t.Errorf("deadline too far away: %v", deadline)
	}
}

func TestStop_CancelsRunningJobs(t *testing.T) {
	// --- Arrange ---
	s := NewScheduler(time.Minute, logging.Silent())
	s.Start()
	started := make(chan struct{})
	done := make(chan error, 1)
	go s.run("slow", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	})
	<-started

	// --- Act ---
	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(stopCtx)

	// --- Assert ---
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("job was not cancelled")
	}
}

func TestPendingDigest(t *testing.T) {
	t.Run("passes through count", func(t *testing.T) {
		uc := &fakeDigest{sent: 3}
		if err := PendingDigest(uc, logging.Silent())(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if uc.calls != 1 {
			t.Errorf("expected one call, got %d", uc.calls)
		}
	})

	t.Run("returns use case error", func(t *testing.T) {
		uc := &fakeDigest{err: errors.New("upstream down")}
		if err := PendingDigest(uc, logging.Silent())(context.Background()); err == nil {
			t.Fatal("expected error")
		}
	})
}
