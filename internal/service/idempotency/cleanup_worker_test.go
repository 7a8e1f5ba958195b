package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
	"github.com/vladislavdragonenkov/blackstore/internal/storage/memory"
)

type failingRepo struct {
	domain.IdempotencyRepository
	err error
}

func (f failingRepo) DeleteExpired(context.Context, time.Time, int) (int, error) {
	return 0, f.err
}

func seed(t *testing.T, repo domain.IdempotencyRepository, prefix string, n int, ttl time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("%s-%d", prefix, i)
		if _, err := repo.CreateProcessing(context.Background(), key, "hash", ttl); err != nil {
			t.Fatalf("CreateProcessing: %v", err)
		}
	}
}

func TestCleanupWorker_DeleteExpired_InBatches(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	repo := memory.NewIdempotencyRepository()
	seed(t, repo, "expired", 5, now.Add(-time.Hour))
	seed(t, repo, "live", 2, now.Add(time.Hour))

	deleted, err := NewCleanupWorker(repo, WithBatchSize(2)).DeleteExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if deleted != 5 {
		t.Fatalf("deleted = %d, want 5", deleted)
	}

	again, err := NewCleanupWorker(repo).DeleteExpired(context.Background(), now)
	if err != nil || again != 0 {
		t.Fatalf("second pass = %d, %v", again, err)
	}
}

func TestCleanupWorker_DeleteExpired_Error(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	deleted, err := NewCleanupWorker(failingRepo{err: boom}).DeleteExpired(context.Background(), time.Now())
	if !errors.Is(err, boom) || deleted != 0 {
		t.Fatalf("DeleteExpired = %d, %v", deleted, err)
	}
}

func TestCleanupWorker_DeleteExpired_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewCleanupWorker(memory.NewIdempotencyRepository()).DeleteExpired(ctx, time.Now()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCleanupWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := memory.NewIdempotencyRepository()
	seed(t, repo, "expired", 3, time.Now().UTC().Add(-time.Minute))

	worker := NewCleanupWorker(repo, WithInterval(5*time.Millisecond), WithBatchSize(10))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}

	if _, err := repo.Get(context.Background(), "expired-0"); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expired key must be removed, got %v", err)
	}
}

type blockingRepo struct {
	domain.IdempotencyRepository
	calls atomic.Int32
}

func (b *blockingRepo) DeleteExpired(ctx context.Context, _ time.Time, _ int) (int, error) {
	b.calls.Add(1)
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestCleanupWorker_Run_RunTimeoutKeepsLoopAlive(t *testing.T) {
	t.Parallel()

	repo := &blockingRepo{}
	worker := NewCleanupWorker(repo, WithInterval(5*time.Millisecond), WithRunTimeout(5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	worker.Run(ctx)

	if got := repo.calls.Load(); got < 2 {
		t.Fatalf("expected several timed-out runs, got %d", got)
	}
}
