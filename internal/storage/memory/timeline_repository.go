package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

// TimelineRepository держит историю заказов в памяти, отсортированной по времени события.
type TimelineRepository struct {
	mu      sync.RWMutex
	byOrder map[string][]domain.TimelineEvent
	now     func() time.Time
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return &TimelineRepository{byOrder: make(map[string][]domain.TimelineEvent), now: time.Now}
}

// Append вставляет событие на его место в хронологии. События с одинаковым
// временем остаются в порядке записи.
func (r *TimelineRepository) Append(_ context.Context, event domain.TimelineEvent) error {
	if event.OrderID == "" {
		return domain.ErrOrderNotFound
	}
	if event.Occurred.IsZero() {
		event.Occurred = r.now()
	}
	event.Occurred = event.Occurred.UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.byOrder[event.OrderID]
	pos := len(history)
	for pos > 0 && history[pos-1].Occurred.After(event.Occurred) {
		pos--
	}
	r.byOrder[event.OrderID] = slices.Insert(history, pos, event)
	return nil
}

// List возвращает копию истории заказа; для неизвестного заказа пустой срез.
func (r *TimelineRepository) List(_ context.Context, orderID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]domain.TimelineEvent{}, r.byOrder[orderID]...), nil
}

var _ domain.TimelineRepository = (*TimelineRepository)(nil)
