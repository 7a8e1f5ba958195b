package realtime

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/blackstore/internal/metrics"
)

const defaultBufferSize = 64

// Subscription — живая подписка. Close идемпотентен и закрывает канал Changes.
type Subscription struct {
	path    string
	changes chan Change
	once    sync.Once
	cancel  func()
}

// Path возвращает путь подписки.
func (s *Subscription) Path() string {
	return s.path
}

// Changes возвращает канал изменений; закрывается после Close.
func (s *Subscription) Changes() <-chan Change {
	return s.changes
}

// Close отменяет подписку.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

// Hub — in-process брокер. Доставка неблокирующая: если буфер подписчика
// заполнен, изменение отбрасывается и учитывается в метриках.
type Hub struct {
	mu         sync.RWMutex
	subs       map[*Subscription]struct{}
	bufferSize int
	logger     *log.Entry
	metrics    *metrics.StoreMetrics
}

// HubOption настраивает Hub.
type HubOption func(*Hub)

// WithBufferSize задаёт размер буфера каждого подписчика.
func WithBufferSize(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.bufferSize = size
		}
	}
}

// WithHubLogger задаёт logger.
func WithHubLogger(logger *log.Entry) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithHubMetrics задаёт метрики подписок.
func WithHubMetrics(m *metrics.StoreMetrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// NewHub создаёт in-process брокер.
func NewHub(options ...HubOption) *Hub {
	h := &Hub{
		subs:       make(map[*Subscription]struct{}),
		bufferSize: defaultBufferSize,
		logger:     log.WithField("component", "realtime-hub"),
	}
	for _, option := range options {
		option(h)
	}
	return h
}

// Publish раздаёт изменение всем подходящим подпискам.
func (h *Hub) Publish(_ context.Context, change Change) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if !Matches(sub.path, change.Path) {
			continue
		}
		select {
		case sub.changes <- change:
		default:
			h.metrics.RecordRealtimeDropped()
			h.logger.WithFields(log.Fields{
				"subscription": sub.path,
				"path":         change.Path,
			}).Warn("subscriber buffer full, change dropped")
		}
	}
	return nil
}

// Subscribe регистрирует подписку на путь. Подписка закрывается при отмене ctx
// или вызове Close.
func (h *Hub) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	sub := &Subscription{
		path:    path,
		changes: make(chan Change, h.bufferSize),
	}

	sub.cancel = func() {
		h.mu.Lock()
		delete(h.subs, sub)
		close(sub.changes)
		h.mu.Unlock()
		h.metrics.RealtimeUnsubscribed()
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	h.metrics.RealtimeSubscribed()

	context.AfterFunc(ctx, sub.Close)
	return sub, nil
}

// Subscribers возвращает число активных подписок.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

var _ Broker = (*Hub)(nil)
