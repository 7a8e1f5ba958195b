package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// UserRepository описывает хранилище профилей пользователей.
type UserRepository interface {
	// Get возвращает профиль или ErrUserNotFound.
	Get(ctx context.Context, id string) (User, error)
	// Create сохраняет новый профиль. Возвращает ErrUserExists, если он уже есть.
	Create(ctx context.Context, user User) error
	// UpdateProfile сливает непустые поля патча с сохранённым профилем и возвращает результат.
	UpdateProfile(ctx context.Context, id string, patch UserPatch) (User, error)
	// IncrementCounters атомарно добавляет orders и spent к счётчикам на стороне хранилища.
	IncrementCounters(ctx context.Context, id string, orders int64, spent decimal.Decimal) (User, error)
}

// OrderRepository описывает хранилище заказов, разбитое по пользователям.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ErrOrderExists при совпадении ID.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ пользователя или ErrOrderNotFound.
	Get(ctx context.Context, userID, orderID string) (Order, error)
	// ListByUser возвращает все заказы пользователя в порядке от новых к старым.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// UpdateStatus перезаписывает только статус и возвращает обновлённый заказ.
	UpdateStatus(ctx context.Context, userID, orderID string, status OrderStatus) (Order, error)
	// Delete удаляет заказ безвозвратно.
	Delete(ctx context.Context, userID, orderID string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// CatalogSource отдаёт полный список товаров удалённого каталога.
type CatalogSource interface {
	Products(ctx context.Context) ([]Product, error)
}

// IdentityProvider проводит вход через внешнего провайдера.
type IdentityProvider interface {
	// Authenticate обменивает учётные данные провайдера на Identity.
	// Отменённый вход возвращает ErrSignInCancelled, отклонённый — ErrSignInFailed.
	Authenticate(ctx context.Context, credential string) (Identity, error)
	// SignOut завершает сессию у провайдера.
	SignOut(ctx context.Context, identity Identity) error
}
