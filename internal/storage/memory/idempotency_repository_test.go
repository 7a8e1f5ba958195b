package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
	"github.com/vladislavdragonenkov/blackstore/internal/storage/memory"
)

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time { return c.now }

func newClockedRepo() (*memory.IdempotencyRepository, *manualClock) {
	clock := &manualClock{now: time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)}
	return memory.NewIdempotencyRepositoryWithClock(clock.Now), clock
}

func TestIdempotencyRepository_PlaceOrderReplay(t *testing.T) {
	ctx := context.Background()
	repo, clock := newClockedRepo()
	ttl := clock.now.Add(24 * time.Hour)

	created, err := repo.CreateProcessing(ctx, "user-1:place-1", "hash-1", ttl)
	if err != nil {
		t.Fatalf("CreateProcessing failed: %v", err)
	}
	if created.Status != domain.IdempotencyStatusProcessing || !created.CreatedAt.Equal(clock.now) {
		t.Fatalf("unexpected record: %+v", created)
	}

	body := []byte(`{"order":{"id":"o-1"}}`)
	if err := repo.MarkDone(ctx, "user-1:place-1", body, 201); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	body[0] = 'X'

	got, err := repo.Get(ctx, " user-1:place-1 ")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Replayable() || got.HTTPStatus != 201 || string(got.ResponseBody) != `{"order":{"id":"o-1"}}` {
		t.Fatalf("stored response must be isolated from caller buffer: %+v", got)
	}

	if _, err := repo.CreateProcessing(ctx, " ", "hash", ttl); !errors.Is(err, domain.ErrIdempotencyKeyRequired) {
		t.Fatalf("expected ErrIdempotencyKeyRequired, got %v", err)
	}
	if _, err := repo.CreateProcessing(ctx, "k", "", ttl); !errors.Is(err, domain.ErrIdempotencyRequestHashRequired) {
		t.Fatalf("expected ErrIdempotencyRequestHashRequired, got %v", err)
	}
}

func TestIdempotencyRepository_ConflictAndHashMismatch(t *testing.T) {
	ctx := context.Background()
	repo, clock := newClockedRepo()
	ttl := clock.now.Add(time.Hour)

	if _, err := repo.CreateProcessing(ctx, "k", "hash-a", ttl); err != nil {
		t.Fatalf("CreateProcessing failed: %v", err)
	}
	if _, err := repo.CreateProcessing(ctx, "k", "hash-a", ttl); !errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
		t.Fatalf("expected ErrIdempotencyKeyAlreadyExists, got %v", err)
	}
	existing, err := repo.CreateProcessing(ctx, "k", "hash-b", ttl)
	if !errors.Is(err, domain.ErrIdempotencyHashMismatch) || existing.RequestHash != "hash-a" {
		t.Fatalf("expected ErrIdempotencyHashMismatch with stored record, got %+v, %v", existing, err)
	}
}

func TestIdempotencyRepository_ExpiredKeyIsReusable(t *testing.T) {
	ctx := context.Background()
	repo, clock := newClockedRepo()

	if _, err := repo.CreateProcessing(ctx, "k", "hash-a", clock.now.Add(time.Minute)); err != nil {
		t.Fatalf("CreateProcessing failed: %v", err)
	}
	clock.now = clock.now.Add(2 * time.Minute)

	if _, err := repo.Get(ctx, "k"); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expired key must read as missing, got %v", err)
	}
	if err := repo.MarkDone(ctx, "k", nil, 201); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expired key must not be completed, got %v", err)
	}

	fresh, err := repo.CreateProcessing(ctx, "k", "hash-b", time.Time{})
	if err != nil {
		t.Fatalf("expired key must be reusable: %v", err)
	}
	if fresh.RequestHash != "hash-b" || !fresh.TTLAt.Equal(clock.now.Add(24*time.Hour)) {
		t.Fatalf("unexpected fresh record: %+v", fresh)
	}
}

func TestIdempotencyRepository_DeleteExpiredOldestFirst(t *testing.T) {
	ctx := context.Background()
	repo, clock := newClockedRepo()
	now := clock.now

	for i, key := range []string{"old", "older", "oldest"} {
		if _, err := repo.CreateProcessing(ctx, key, "h", now.Add(-time.Duration(i+1)*time.Minute)); err != nil {
			t.Fatalf("CreateProcessing %s: %v", key, err)
		}
	}
	if _, err := repo.CreateProcessing(ctx, "active", "h", now.Add(time.Hour)); err != nil {
		t.Fatalf("CreateProcessing active: %v", err)
	}
	if err := repo.MarkFailed(ctx, "active", []byte(`{"error":"catalog unavailable"}`), 502); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	removed, err := repo.DeleteExpired(ctx, now, 2)
	if err != nil || removed != 2 {
		t.Fatalf("DeleteExpired = %d, %v", removed, err)
	}
	removed, err = repo.DeleteExpired(ctx, now, 0)
	if err != nil || removed != 1 {
		t.Fatalf("unbounded sweep must remove the remaining key, got %d, %v", removed, err)
	}

	active, err := repo.Get(ctx, "active")
	if err != nil || active.HTTPStatus != 502 || active.Status != domain.IdempotencyStatusFailed {
		t.Fatalf("active = %+v, %v", active, err)
	}
}
