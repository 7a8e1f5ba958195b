package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

// Заказ лежит JSON-строкой в <prefix>:order:<user>:<id>, а sorted set
// <prefix>:orders:<user> индексирует id по времени создания в миллисекундах.
var createOrderScript = redis.NewScript(`
if not redis.call('SET', KEYS[1], ARGV[1], 'NX') then
	return 0
end
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[3])
return 1
`)

// OrderRepository — Redis-реализация OrderRepository.
type OrderRepository struct {
	store *Store
}

// NewOrderRepository создаёт Redis-реализацию OrderRepository.
func NewOrderRepository(store *Store) *OrderRepository {
	return &OrderRepository{store: store}
}

func (r *OrderRepository) orderKey(userID, orderID string) string {
	return r.store.key("order", userID, orderID)
}

func (r *OrderRepository) indexKey(userID string) string {
	return r.store.key("orders", userID)
}

// Create сохраняет заказ и индекс одним скриптом.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) error {
	if order.UserID == "" {
		return domain.ErrUserIDRequired
	}
	order.Status = order.Status.Normalize()
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", order.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	keys := []string{r.orderKey(order.UserID, order.ID), r.indexKey(order.UserID)}
	created, err := createOrderScript.Run(ctx, r.store.client, keys, payload, order.CreatedAt.UnixMilli(), order.ID).Int()
	if err != nil {
		return fmt.Errorf("redis create order %s: %w", order.ID, err)
	}
	if created == 0 {
		return domain.ErrOrderExists
	}
	return nil
}

// Get возвращает заказ пользователя.
func (r *OrderRepository) Get(ctx context.Context, userID, orderID string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := r.store.client.Get(ctx, r.orderKey(userID, orderID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("redis get order %s: %w", orderID, err)
	}
	return decodeOrder(raw)
}

// ListByUser читает индекс от новых к старым и достаёт заказы одним MGET.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	ids, err := r.store.client.ZRevRange(ctx, r.indexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list order ids: %w", err)
	}
	orders := make([]domain.Order, 0, len(ids))
	if len(ids) == 0 {
		return orders, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.orderKey(userID, id)
	}
	values, err := r.store.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load orders: %w", err)
	}
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// индекс пережил удалённый заказ
			continue
		}
		order, err := decodeOrder([]byte(s))
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// UpdateStatus перезаписывает статус в транзакции WATCH.
func (r *OrderRepository) UpdateStatus(ctx context.Context, userID, orderID string, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, domain.ErrInvalidStatus
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := r.orderKey(userID, orderID)
	var updated domain.Order
	err := r.store.watchRetry(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if updated, err = decodeOrder(raw); err != nil {
			return err
		}
		updated.Status = status
		payload, err := json.Marshal(updated)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, redis.KeepTTL)
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("redis update order %s: %w", orderID, err)
	}
	return updated, nil
}

// Delete удаляет заказ и его запись в индексе.
func (r *OrderRepository) Delete(ctx context.Context, userID, orderID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var del *redis.IntCmd
	_, err := r.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, r.orderKey(userID, orderID))
		pipe.ZRem(ctx, r.indexKey(userID), orderID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete order %s: %w", orderID, err)
	}
	if del.Val() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func decodeOrder(raw []byte) (domain.Order, error) {
	var order domain.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return domain.Order{}, fmt.Errorf("decode order: %w", err)
	}
	order.Status = order.Status.Normalize()
	return order, nil
}

var _ domain.OrderRepository = (*OrderRepository)(nil)
