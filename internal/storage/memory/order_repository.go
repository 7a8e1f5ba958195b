package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

// orderRepositoryInMemory хранит заказы в разрезе пользователя: userID -> orderID -> заказ.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]map[string]domain.Order
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]map[string]domain.Order),
	}
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderRepositoryInMemory) Create(_ context.Context, order domain.Order) error {
	if order.UserID == "" {
		return domain.ErrUserIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byUser, ok := r.items[order.UserID]
	if !ok {
		byUser = make(map[string]domain.Order)
		r.items[order.UserID] = byUser
	}
	if _, exists := byUser[order.ID]; exists {
		return domain.ErrOrderExists
	}
	byUser[order.ID] = order
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, userID, orderID string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[userID][orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// ListByUser возвращает заказы пользователя от новых к старым.
func (r *orderRepositoryInMemory) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byUser := r.items[userID]
	result := make([]domain.Order, 0, len(byUser))
	for _, order := range byUser {
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

// UpdateStatus меняет только статус заказа.
func (r *orderRepositoryInMemory) UpdateStatus(_ context.Context, userID, orderID string, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, domain.ErrInvalidStatus
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[userID][orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order.Status = status
	r.items[userID][orderID] = order
	return order, nil
}

// Delete удаляет заказ.
func (r *orderRepositoryInMemory) Delete(_ context.Context, userID, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[userID][orderID]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(r.items[userID], orderID)
	if len(r.items[userID]) == 0 {
		delete(r.items, userID)
	}
	return nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
