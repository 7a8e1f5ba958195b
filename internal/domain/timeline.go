package domain

import "time"

// Типы событий истории заказа.
const (
	TimelineOrderPlaced   = "order_placed"
	TimelineStatusChanged = "status_changed"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string    `json:"order_id"`
	Type     string    `json:"type"`
	Reason   string    `json:"reason"`
	Occurred time.Time `json:"occurred"`
}
