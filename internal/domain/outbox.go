package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Типы событий заказа, которые уходят во внешнюю шину.
const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderDeleted       = "order.deleted"

	AggregateOrder = "order"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// OrderEvent — полезная нагрузка событий заказа в outbox.
type OrderEvent struct {
	EventType string          `json:"event_type"`
	OrderID   string          `json:"order_id"`
	UserID    string          `json:"user_id"`
	ProductID int64           `json:"product_id,omitempty"`
	Status    OrderStatus     `json:"status,omitempty"`
	Quantity  int             `json:"quantity,omitempty"`
	Total     decimal.Decimal `json:"total"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewOrderEvent собирает событие по заказу.
func NewOrderEvent(eventType string, order Order, at time.Time) OrderEvent {
	return OrderEvent{
		EventType: eventType,
		OrderID:   order.ID,
		UserID:    order.UserID,
		ProductID: order.ProductID,
		Status:    order.Status,
		Quantity:  order.Quantity,
		Total:     order.Total,
		Timestamp: at.UTC(),
	}
}
