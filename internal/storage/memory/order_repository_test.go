package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
	"github.com/vladislavdragonenkov/blackstore/internal/storage/memory"
)

func newOrder(id, userID string, created time.Time) domain.Order {
	return domain.Order{
		ID:        id,
		UserID:    userID,
		ProductID: 1,
		Title:     "Backpack",
		Price:     decimal.RequireFromString("109.95"),
		Quantity:  1,
		Total:     decimal.RequireFromString("109.95"),
		Category:  "men's clothing",
		Status:    domain.OrderStatusOrdered,
		CreatedAt: created,
	}
}

func TestOrderRepository_CreateGet(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", "user-1", time.Now().UTC())

	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(ctx, order); !errors.Is(err, domain.ErrOrderExists) {
		t.Fatalf("expected ErrOrderExists, got %v", err)
	}

	stored, err := repo.Get(ctx, "user-1", "order-1")
	if err != nil || !stored.Total.Equal(order.Total) {
		t.Fatalf("get = %+v, %v", stored, err)
	}
	if _, err := repo.Get(ctx, "user-2", "order-1"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("orders must be scoped by user, got %v", err)
	}
}

func TestOrderRepository_ListByUserNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if err := repo.Create(ctx, newOrder(id, "user-1", base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if err := repo.Create(ctx, newOrder("z", "user-2", base)); err != nil {
		t.Fatalf("create z: %v", err)
	}

	orders, err := repo.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 3 || orders[0].ID != "c" || orders[2].ID != "a" {
		t.Fatalf("unexpected list: %+v", orders)
	}

	empty, err := repo.ListByUser(ctx, "nobody")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty list, got %v, %v", empty, err)
	}
}

func TestOrderRepository_UpdateStatusAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", "user-1", time.Now().UTC())
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := repo.UpdateStatus(ctx, "user-1", "order-1", domain.OrderStatusShipped)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Status != domain.OrderStatusShipped || !updated.Total.Equal(order.Total) {
		t.Fatalf("only status must change: %+v", updated)
	}
	if _, err := repo.UpdateStatus(ctx, "user-1", "order-1", "lost"); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := repo.UpdateStatus(ctx, "user-1", "missing", domain.OrderStatusShipped); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	if err := repo.Delete(ctx, "user-1", "order-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := repo.Delete(ctx, "user-1", "order-1"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on second delete, got %v", err)
	}
}
