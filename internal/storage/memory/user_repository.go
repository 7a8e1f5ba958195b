package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

// userRepositoryInMemory — in-memory реализация UserRepository.
type userRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.User
}

// NewUserRepository возвращает in-memory репозиторий профилей для локальной разработки и тестов.
func NewUserRepository() domain.UserRepository {
	return &userRepositoryInMemory{items: make(map[string]domain.User)}
}

func (r *userRepositoryInMemory) Get(_ context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.items[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (r *userRepositoryInMemory) Create(_ context.Context, user domain.User) error {
	if user.ID == "" {
		return domain.ErrUserIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[user.ID]; exists {
		return domain.ErrUserExists
	}
	r.items[user.ID] = user
	return nil
}

func (r *userRepositoryInMemory) UpdateProfile(_ context.Context, id string, patch domain.UserPatch) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.items[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	user = patch.Apply(user)
	r.items[id] = user
	return user, nil
}

// IncrementCounters выполняет чтение и запись под одной блокировкой, поэтому
// параллельные оформления не теряют инкременты.
func (r *userRepositoryInMemory) IncrementCounters(_ context.Context, id string, orders int64, spent decimal.Decimal) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.items[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	user.TotalOrders += orders
	user.TotalSpent = user.TotalSpent.Add(spent).Round(2)
	r.items[id] = user
	return user, nil
}

var _ domain.UserRepository = (*userRepositoryInMemory)(nil)
