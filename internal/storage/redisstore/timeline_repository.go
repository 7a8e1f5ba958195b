package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

// TimelineRepository хранит историю заказа списком <prefix>:timeline:<order>.
type TimelineRepository struct {
	store *Store
}

// NewTimelineRepository создаёт Redis-реализацию TimelineRepository.
func NewTimelineRepository(store *Store) *TimelineRepository {
	return &TimelineRepository{store: store}
}

// Append дописывает событие в конец списка.
func (r *TimelineRepository) Append(ctx context.Context, event domain.TimelineEvent) error {
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal timeline event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := r.store.client.RPush(ctx, r.store.key("timeline", event.OrderID), payload).Err(); err != nil {
		return fmt.Errorf("redis append timeline %s: %w", event.OrderID, err)
	}
	return nil
}

// List возвращает события в порядке добавления.
func (r *TimelineRepository) List(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	items, err := r.store.client.LRange(ctx, r.store.key("timeline", orderID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list timeline %s: %w", orderID, err)
	}
	events := make([]domain.TimelineEvent, 0, len(items))
	for _, item := range items {
		var e domain.TimelineEvent
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decode timeline event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}

var _ domain.TimelineRepository = (*TimelineRepository)(nil)
