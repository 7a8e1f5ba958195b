// Package orders реализует оформление, смену статуса и удаление заказов.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/blackstore/internal/analytics"
	"github.com/vladislavdragonenkov/blackstore/internal/domain"
	"github.com/vladislavdragonenkov/blackstore/internal/metrics"
	"github.com/vladislavdragonenkov/blackstore/internal/realtime"
)

// Service — сценарии работы с заказами пользователя.
type Service struct {
	orders   domain.OrderRepository
	users    domain.UserRepository
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository
	broker   realtime.Broker
	metrics  *metrics.StoreMetrics
	logger   *log.Entry
	now      func() time.Time
	newID    func() string
}

// Option настраивает Service.
type Option func(*Service)

// WithTimeline включает запись истории статусов.
func WithTimeline(repo domain.TimelineRepository) Option {
	return func(s *Service) { s.timeline = repo }
}

// WithOutbox включает постановку событий в outbox.
func WithOutbox(repo domain.OutboxRepository) Option {
	return func(s *Service) { s.outbox = repo }
}

// WithBroker включает публикацию изменений подписчикам.
func WithBroker(broker realtime.Broker) Option {
	return func(s *Service) { s.broker = broker }
}

// WithMetrics задаёт метрики.
func WithMetrics(m *metrics.StoreMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator подменяет генератор идентификаторов заказов.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService создаёт сервис заказов.
func NewService(orders domain.OrderRepository, users domain.UserRepository, options ...Option) *Service {
	s := &Service{
		orders: orders,
		users:  users,
		logger: log.WithField("component", "order-service"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// PlaceOrder оформляет заказ товара в количестве quantity и увеличивает счётчики
// пользователя на (1, Total).
//
// Запись заказа и обновление счётчиков не транзакционны. Если заказ записан, а
// счётчики обновить не удалось, заказ остаётся, а ошибка оборачивает
// domain.ErrCounterUpdate.
func (s *Service) PlaceOrder(ctx context.Context, userID string, product domain.Product, quantity int) (domain.Order, error) {
	order, err := domain.NewOrder(s.newID(), userID, product, quantity, s.now())
	if err != nil {
		return domain.Order{}, err
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}

	logger := s.logger.WithFields(log.Fields{
		"order_id":   order.ID,
		"user_id":    order.UserID,
		"product_id": order.ProductID,
	})
	logger.WithField("total", order.Total.String()).Info("order placed")

	total, _ := order.Total.Float64()
	s.metrics.RecordOrderPlaced(total)
	s.appendTimeline(ctx, domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     domain.TimelineOrderPlaced,
		Reason:   string(order.Status),
		Occurred: order.CreatedAt,
	})
	s.publish(ctx, realtime.OrderPath(order.UserID, order.ID), realtime.ChangePut, order)
	s.enqueue(ctx, domain.EventOrderPlaced, order)

	user, err := s.users.IncrementCounters(ctx, userID, 1, order.Total)
	if err != nil {
		s.metrics.RecordCounterUpdateFailure()
		logger.WithError(err).Warn("order stored but user counters were not updated")
		return order, fmt.Errorf("%w: %v", domain.ErrCounterUpdate, err)
	}
	s.publish(ctx, realtime.UserPath(user.ID), realtime.ChangePatch, user)

	return order, nil
}

// UpdateStatus перезаписывает статус заказа. Переходы не ограничены: любой
// статус перечисления может следовать за любым.
func (s *Service) UpdateStatus(ctx context.Context, userID, orderID string, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, domain.ErrInvalidStatus
	}

	order, err := s.orders.UpdateStatus(ctx, userID, orderID, status)
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"user_id":  userID,
		"status":   status,
	}).Info("order status updated")

	s.metrics.RecordStatusUpdate(string(status))
	s.appendTimeline(ctx, domain.TimelineEvent{
		OrderID:  orderID,
		Type:     domain.TimelineStatusChanged,
		Reason:   string(status),
		Occurred: s.now().UTC(),
	})
	s.publish(ctx, realtime.OrderPath(userID, orderID), realtime.ChangePatch, order)
	s.enqueue(ctx, domain.EventOrderStatusChanged, order)

	return order, nil
}

// DeleteOrder удаляет заказ безвозвратно. Счётчики пользователя не откатываются.
func (s *Service) DeleteOrder(ctx context.Context, userID, orderID string) error {
	order, err := s.orders.Get(ctx, userID, orderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	if err := s.orders.Delete(ctx, userID, orderID); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"user_id":  userID,
	}).Info("order deleted")

	s.metrics.RecordOrderDeleted()
	s.publish(ctx, realtime.OrderPath(userID, orderID), realtime.ChangeDelete, nil)
	s.enqueue(ctx, domain.EventOrderDeleted, order)

	return nil
}

// List возвращает заказы пользователя от новых к старым.
func (s *Service) List(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return analytics.SortOrdersRecent(orders), nil
}

// Timeline возвращает историю заказа, предварительно проверив, что он принадлежит пользователю.
func (s *Service) Timeline(ctx context.Context, userID, orderID string) ([]domain.TimelineEvent, error) {
	if _, err := s.orders.Get(ctx, userID, orderID); err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if s.timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	events, err := s.timeline.List(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	return events, nil
}

func (s *Service) appendTimeline(ctx context.Context, event domain.TimelineEvent) {
	if s.timeline == nil {
		return
	}
	if err := s.timeline.Append(ctx, event); err != nil {
		s.logger.WithError(err).WithField("order_id", event.OrderID).Warn("failed to append timeline event")
		return
	}
	s.metrics.RecordTimelineEvent()
}

func (s *Service) publish(ctx context.Context, path string, kind realtime.ChangeKind, doc any) {
	if s.broker == nil {
		return
	}
	change, err := realtime.NewChange(path, kind, doc)
	if err == nil {
		err = s.broker.Publish(ctx, change)
	}
	if err != nil {
		s.logger.WithError(err).WithField("path", path).Warn("failed to publish realtime change")
	}
}

func (s *Service) enqueue(ctx context.Context, eventType string, order domain.Order) {
	if s.outbox == nil {
		return
	}
	payload, err := json.Marshal(domain.NewOrderEvent(eventType, order, s.now()))
	if err != nil {
		s.logger.WithError(err).Warn("failed to marshal order event")
		return
	}
	if _, err := s.outbox.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: domain.AggregateOrder,
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to enqueue order event")
		return
	}
	s.metrics.RecordOutboxEvent()
}
