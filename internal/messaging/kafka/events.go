// Package kafka публикует события заказов магазина в Kafka.
package kafka

// Топики событий.
const (
	TopicOrderEvents     = "blackstore.order.events"
	TopicDeadLetterQueue = "blackstore.dlq"
)

// Заголовки сообщений.
const (
	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
	HeaderOutboxID      = "x-outbox-id"
)
