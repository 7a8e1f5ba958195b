package kafka

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

var errPublisherNotInitialized = errors.New("kafka outbox publisher is not initialized")

// Envelope — формат сообщения outbox в Kafka.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// OutboxPublisher отправляет сообщения outbox в один топик. Ключ сообщения —
// ID заказа, поэтому события одного заказа попадают в одну партицию.
type OutboxPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт publisher; пустой topic заменяется TopicOrderEvents.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxPublisher{producer: producer, topic: topic}
}

// Publish отправляет сообщение.
func (p *OutboxPublisher) Publish(msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errPublisherNotInitialized
	}

	key := msg.AggregateID
	if key == "" {
		key = msg.ID
	}

	envelope := Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       json.RawMessage(msg.Payload),
		PublishedAt:   p.producer.now().UTC(),
	}

	return p.producer.PublishEvent(p.topic, key, envelope,
		Header{Key: HeaderEventType, Value: msg.EventType},
		Header{Key: HeaderAggregateType, Value: msg.AggregateType},
		Header{Key: HeaderOutboxID, Value: msg.ID},
	)
}

var _ domain.OutboxPublisher = (*OutboxPublisher)(nil)
