package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	})
	return NewStore(db), mock
}

var (
	created    = time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	userFields = []string{"id", "display_name", "email", "photo_url", "total_orders", "total_spent", "created_at"}
	orderField = []string{"id", "user_id", "product_id", "title", "image", "price", "quantity", "total", "category", "status", "created_at"}
)

func TestUserRepository_CreateDuplicate(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewUserRepository(store)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("u1", "Ann", "ann@example.com", "", int64(0), "0", created).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	user := domain.User{ID: "u1", DisplayName: "Ann", Email: "ann@example.com", CreatedAt: created, TotalSpent: decimal.Zero}
	if err := repo.Create(context.Background(), user); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("err = %v, want ErrUserExists", err)
	}
}

func TestUserRepository_GetMissing(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewUserRepository(store)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.Get(context.Background(), "ghost"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
	if _, err := repo.Get(context.Background(), " "); !errors.Is(err, domain.ErrUserIDRequired) {
		t.Fatalf("blank id err = %v", err)
	}
}

func TestUserRepository_IncrementCounters(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewUserRepository(store)

	mock.ExpectQuery(regexp.QuoteMeta("SET total_orders = total_orders + $2")).
		WithArgs("u1", int64(1), "19.98").
		WillReturnRows(sqlmock.NewRows(userFields).AddRow("u1", "Ann", "", "", int64(3), "59.97", created))

	user, err := repo.IncrementCounters(context.Background(), "u1", 1, decimal.RequireFromString("19.98"))
	if err != nil {
		t.Fatalf("IncrementCounters: %v", err)
	}
	if user.TotalOrders != 3 || !user.TotalSpent.Equal(decimal.RequireFromString("59.97")) {
		t.Fatalf("unexpected counters: %+v", user)
	}
}

func TestUserRepository_UpdateProfileKeepsUnsetFields(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewUserRepository(store)

	name := "Anna"
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE($2, display_name)")).
		WithArgs("u1", name, nil).
		WillReturnRows(sqlmock.NewRows(userFields).AddRow("u1", name, "", "photo", int64(0), "0", created))

	user, err := repo.UpdateProfile(context.Background(), "u1", domain.UserPatch{DisplayName: &name})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if user.DisplayName != name || user.PhotoURL != "photo" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestOrderRepository_ListByUser(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewOrderRepository(store)

	rows := sqlmock.NewRows(orderField).
		AddRow("o2", "u1", int64(2), "Ring", "", "9.99", 2, "19.98", "jewelery", "shipped", created.Add(time.Hour)).
		AddRow("o1", "u1", int64(1), "Bag", "", "109.95", 1, "109.95", "", "", created)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC")).
		WithArgs("u1").
		WillReturnRows(rows)

	orders, err := repo.ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != "o2" {
		t.Fatalf("unexpected orders: %+v", orders)
	}
	if orders[1].Status != domain.OrderStatusOrdered {
		t.Fatalf("empty status must normalize, got %q", orders[1].Status)
	}
	if !orders[0].Total.Equal(decimal.RequireFromString("19.98")) {
		t.Fatalf("total = %s", orders[0].Total)
	}
}

func TestOrderRepository_UpdateStatus(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewOrderRepository(store)

	if _, err := repo.UpdateStatus(context.Background(), "u1", "o1", "lost"); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("invalid status err = %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE orders SET status = $3")).
		WithArgs("u1", "missing", "shipped").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.UpdateStatus(context.Background(), "u1", "missing", domain.OrderStatusShipped); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestOrderRepository_DeleteMissing(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewOrderRepository(store)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM orders")).
		WithArgs("u1", "o1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "u1", "o1"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestIdempotencyRepository_CreateProcessingConflict(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewIdempotencyRepository(store)
	repo.now = func() time.Time { return created }

	ttl := created.Add(time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO idempotency_keys")).
		WithArgs("k1", "hash-b", "processing", ttl, created).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery(regexp.QuoteMeta("FROM idempotency_keys")).
		WithArgs("k1").
		WillReturnRows(sqlmock.NewRows([]string{"key", "request_hash", "response_body", "http_status", "status", "ttl_at", "created_at", "updated_at"}).
			AddRow("k1", "hash-a", []byte(`{"id":"o1"}`), int64(201), "done", ttl, created, created))

	rec, err := repo.CreateProcessing(context.Background(), "k1", "hash-b", ttl)
	if !errors.Is(err, domain.ErrIdempotencyHashMismatch) {
		t.Fatalf("err = %v, want ErrIdempotencyHashMismatch", err)
	}
	if rec.HTTPStatus != 201 || !rec.Replayable() {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestIdempotencyRepository_DeleteExpiredBatched(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewIdempotencyRepository(store)

	before := created
	mock.ExpectExec(regexp.QuoteMeta("ORDER BY ttl_at")).
		WithArgs(before, 10).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteExpired(context.Background(), before, 10)
	if err != nil || n != 4 {
		t.Fatalf("DeleteExpired = %d, %v", n, err)
	}
}

func TestOutboxRepository_MarkSentMissing(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewOutboxRepository(store)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox_messages")).
		WithArgs("m1", "sent", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.MarkSent(context.Background(), "m1"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("err = %v, want ErrOutboxPublish", err)
	}
}

func TestStore_NilGuards(t *testing.T) {
	var store *Store
	if err := store.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error for nil store")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
}
