package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
	"github.com/vladislavdragonenkov/blackstore/internal/storage/memory"
)

func TestTimelineRepository_KeepsChronology(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTimelineRepository()
	base := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

	events := []domain.TimelineEvent{
		{OrderID: "o-1", Type: domain.TimelineOrderPlaced, Reason: "placed", Occurred: base},
		{OrderID: "o-1", Type: domain.TimelineStatusChanged, Reason: "delivered", Occurred: base.Add(2 * time.Hour)},
		{OrderID: "o-1", Type: domain.TimelineStatusChanged, Reason: "shipped", Occurred: base.Add(time.Hour)},
		{OrderID: "o-1", Type: domain.TimelineStatusChanged, Reason: "delivered again", Occurred: base.Add(2 * time.Hour)},
		{OrderID: "o-2", Type: domain.TimelineOrderPlaced, Reason: "other", Occurred: base},
	}
	for _, event := range events {
		if err := repo.Append(ctx, event); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := repo.List(ctx, "o-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"placed", "shipped", "delivered", "delivered again"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, reason := range want {
		if got[i].Reason != reason {
			t.Fatalf("event %d = %q, want %q", i, got[i].Reason, reason)
		}
	}

	got[0].Reason = "mutated"
	again, _ := repo.List(ctx, "o-1")
	if again[0].Reason != "placed" {
		t.Fatal("List must return a copy")
	}
}

func TestTimelineRepository_UnknownOrderAndValidation(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTimelineRepository()

	events, err := repo.List(ctx, "missing")
	if err != nil || events == nil || len(events) != 0 {
		t.Fatalf("List(missing) = %v, %v", events, err)
	}
	if err := repo.Append(ctx, domain.TimelineEvent{Type: domain.TimelineOrderPlaced}); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if err := repo.Append(ctx, domain.TimelineEvent{OrderID: "o-1"}); err != nil {
		t.Fatalf("Append without timestamp: %v", err)
	}
	stamped, _ := repo.List(ctx, "o-1")
	if stamped[0].Occurred.IsZero() || stamped[0].Occurred.Location() != time.UTC {
		t.Fatalf("missing timestamp must be filled in UTC: %v", stamped[0].Occurred)
	}
}
