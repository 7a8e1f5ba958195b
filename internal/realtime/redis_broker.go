package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// DefaultRedisChannel — канал Redis pub/sub для изменений документов.
const DefaultRedisChannel = "blackstore:changes"

// RedisBroker раздаёт изменения между экземплярами сервиса через Redis pub/sub.
// Publish отправляет изменение в канал, а Run пересылает всё полученное из
// канала в локальный Hub, откуда его получают подписчики этого экземпляра.
type RedisBroker struct {
	client  redis.UniversalClient
	channel string
	local   *Hub
	logger  *log.Entry
}

// NewRedisBroker создаёт брокер поверх Redis-клиента и локального Hub.
func NewRedisBroker(client redis.UniversalClient, local *Hub, channel string, logger *log.Entry) *RedisBroker {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if logger == nil {
		logger = log.WithField("component", "realtime-redis")
	}
	return &RedisBroker{client: client, channel: channel, local: local, logger: logger}
}

// Publish отправляет изменение в Redis.
func (b *RedisBroker) Publish(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", change.Path, err)
	}
	return nil
}

// Subscribe подписывается через локальный Hub.
func (b *RedisBroker) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	return b.local.Subscribe(ctx, path)
}

// Run слушает канал Redis до отмены ctx.
func (b *RedisBroker) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer func() {
		if err := pubsub.Close(); err != nil {
			b.logger.WithError(err).Warn("close redis pubsub")
		}
	}()

	// Receive дожидается подтверждения подписки, чтобы Run не пропустил первые сообщения.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}
	b.logger.WithField("channel", b.channel).Info("realtime redis fan-out started")

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var change Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				b.logger.WithError(err).Warn("skip malformed realtime change")
				continue
			}
			_ = b.local.Publish(ctx, change)
		}
	}
}

var _ Broker = (*RedisBroker)(nil)
