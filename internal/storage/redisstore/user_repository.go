package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

// Поля хеша профиля. Сумма хранится в центах, чтобы HINCRBY был точным.
const (
	fieldID          = "id"
	fieldDisplayName = "display_name"
	fieldEmail       = "email"
	fieldPhotoURL    = "photo_url"
	fieldTotalOrders = "total_orders"
	fieldSpentCents  = "total_spent_cents"
	fieldCreatedAt   = "created_at"
)

var createUserScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

var incrementCountersScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HINCRBY', KEYS[1], 'total_orders', ARGV[1])
redis.call('HINCRBY', KEYS[1], 'total_spent_cents', ARGV[2])
return 1
`)

// UserRepository хранит профиль в хеше <prefix>:user:<id>.
type UserRepository struct {
	store *Store
}

// NewUserRepository создаёт Redis-реализацию UserRepository.
func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) userKey(id string) string {
	return r.store.key("user", id)
}

// Get возвращает профиль.
func (r *UserRepository) Get(ctx context.Context, id string) (domain.User, error) {
	if id == "" {
		return domain.User{}, domain.ErrUserIDRequired
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	fields, err := r.store.client.HGetAll(ctx, r.userKey(id)).Result()
	if err != nil {
		return domain.User{}, fmt.Errorf("redis get user %s: %w", id, err)
	}
	return decodeUser(fields)
}

// Create сохраняет профиль, если его ещё нет.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	if user.ID == "" {
		return domain.ErrUserIDRequired
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	created, err := createUserScript.Run(ctx, r.store.client, []string{r.userKey(user.ID)}, encodeUser(user)...).Int()
	if err != nil {
		return fmt.Errorf("redis create user %s: %w", user.ID, err)
	}
	if created == 0 {
		return domain.ErrUserExists
	}
	return nil
}

// UpdateProfile применяет патч в транзакции WATCH.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, patch domain.UserPatch) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := r.userKey(id)
	var updated domain.User
	err := r.store.watchRetry(ctx, func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		current, err := decodeUser(fields)
		if err != nil {
			return err
		}
		updated = patch.Apply(current)
		if patch.Empty() {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldDisplayName, updated.DisplayName, fieldPhotoURL, updated.PhotoURL)
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.User{}, err
		}
		return domain.User{}, fmt.Errorf("redis update user %s: %w", id, err)
	}
	return updated, nil
}

// IncrementCounters увеличивает счётчики на стороне Redis.
func (r *UserRepository) IncrementCounters(ctx context.Context, id string, orders int64, spent decimal.Decimal) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	ok, err := incrementCountersScript.Run(ctx, r.store.client, []string{r.userKey(id)}, orders, toCents(spent)).Int()
	if err != nil {
		return domain.User{}, fmt.Errorf("redis increment counters %s: %w", id, err)
	}
	if ok == 0 {
		return domain.User{}, domain.ErrUserNotFound
	}
	return r.Get(ctx, id)
}

func encodeUser(u domain.User) []any {
	return []any{
		fieldID, u.ID,
		fieldDisplayName, u.DisplayName,
		fieldEmail, u.Email,
		fieldPhotoURL, u.PhotoURL,
		fieldTotalOrders, u.TotalOrders,
		fieldSpentCents, toCents(u.TotalSpent),
		fieldCreatedAt, u.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func decodeUser(fields map[string]string) (domain.User, error) {
	if len(fields) == 0 {
		return domain.User{}, domain.ErrUserNotFound
	}
	user := domain.User{
		ID:          fields[fieldID],
		DisplayName: fields[fieldDisplayName],
		Email:       fields[fieldEmail],
		PhotoURL:    fields[fieldPhotoURL],
	}
	var err error
	if user.TotalOrders, err = strconv.ParseInt(fields[fieldTotalOrders], 10, 64); err != nil {
		return domain.User{}, fmt.Errorf("parse total_orders: %w", err)
	}
	cents, err := strconv.ParseInt(fields[fieldSpentCents], 10, 64)
	if err != nil {
		return domain.User{}, fmt.Errorf("parse total_spent_cents: %w", err)
	}
	user.TotalSpent = decimal.New(cents, -2)
	if user.CreatedAt, err = time.Parse(time.RFC3339Nano, fields[fieldCreatedAt]); err != nil {
		return domain.User{}, fmt.Errorf("parse created_at: %w", err)
	}
	return user, nil
}

func toCents(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

var _ domain.UserRepository = (*UserRepository)(nil)
