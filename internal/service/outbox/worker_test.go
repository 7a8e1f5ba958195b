package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
	"github.com/vladislavdragonenkov/blackstore/internal/storage/memory"
)

type stubPublisher struct {
	mu        sync.Mutex
	err       error
	sequence  []error
	published []domain.OutboxMessage
	attempts  int
}

func (s *stubPublisher) Publish(msg domain.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts++
	err := s.err
	if len(s.sequence) > 0 {
		err, s.sequence = s.sequence[0], s.sequence[1:]
	}
	if err == nil {
		s.published = append(s.published, msg)
	}
	return err
}

func (s *stubPublisher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

var _ domain.OutboxPublisher = (*stubPublisher)(nil)

func enqueueOrderEvent(t *testing.T, repo *memory.OutboxRepository, eventType, orderID string) domain.OutboxMessage {
	t.Helper()
	payload, err := json.Marshal(domain.OrderEvent{EventType: eventType, OrderID: orderID, UserID: "u-1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	msg, err := repo.Enqueue(context.Background(), domain.OutboxMessage{
		AggregateType: domain.AggregateOrder,
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       payload,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return msg
}

func TestWorker_ProcessOnce_PublishesPending(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	enqueueOrderEvent(t, repo, domain.EventOrderPlaced, "order-1")
	enqueueOrderEvent(t, repo, domain.EventOrderStatusChanged, "order-1")
	publisher := &stubPublisher{}

	result := NewWorker(repo, publisher, WithRetryBaseDelay(0)).ProcessOnce(context.Background())

	if result.Sent != 2 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(repo.AllPending()) != 0 {
		t.Fatal("backlog must be drained")
	}
	if publisher.published[0].EventType != domain.EventOrderPlaced {
		t.Fatalf("events published out of order: %+v", publisher.published)
	}
}

func TestWorker_ProcessOnce_DLQAfterRetries(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	msg := enqueueOrderEvent(t, repo, domain.EventOrderDeleted, "order-2")
	publisher := &stubPublisher{err: errors.New("broker down")}
	dlq := &stubPublisher{}

	result := NewWorker(repo, publisher,
		WithDLQPublisher(dlq),
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
	).ProcessOnce(context.Background())

	if result.Failed != 1 || result.Sent != 0 {
		t.Fatalf("result = %+v", result)
	}
	if got := publisher.calls(); got != 3 {
		t.Fatalf("publish attempts = %d, want 3", got)
	}
	if len(dlq.published) != 1 || dlq.published[0].ID != msg.ID {
		t.Fatalf("dlq = %+v", dlq.published)
	}

	var envelope map[string]any
	if err := json.Unmarshal(dlq.published[0].Payload, &envelope); err != nil {
		t.Fatalf("dlq payload: %v", err)
	}
	if envelope["publish_error"] == "" || envelope["outbox_id"] != msg.ID {
		t.Fatalf("dlq envelope = %v", envelope)
	}
	if len(repo.AllPending()) != 0 {
		t.Fatal("failed message must leave pending state")
	}
}

func TestWorker_ProcessOnce_SucceedsAfterRetry(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	enqueueOrderEvent(t, repo, domain.EventOrderPlaced, "order-3")
	publisher := &stubPublisher{sequence: []error{errors.New("attempt 1"), errors.New("attempt 2"), nil}}

	result := NewWorker(repo, publisher, WithRetryBaseDelay(0), WithMaxAttempts(3)).ProcessOnce(context.Background())

	if result.Sent != 1 || publisher.calls() != 3 {
		t.Fatalf("result = %+v attempts = %d", result, publisher.calls())
	}
}

func TestWorker_Backoff(t *testing.T) {
	w := NewWorker(nil, nil, WithRetryBaseDelay(10*time.Millisecond))

	cases := map[int]time.Duration{1: 10 * time.Millisecond, 2: 20 * time.Millisecond, 4: 80 * time.Millisecond}
	for attempt, want := range cases {
		if got := w.backoff(attempt); got != want {
			t.Fatalf("backoff(%d) = %v, want %v", attempt, got, want)
		}
	}
	if got := NewWorker(nil, nil, WithRetryBaseDelay(0)).backoff(5); got != 0 {
		t.Fatalf("zero base backoff = %v", got)
	}
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	worker := NewWorker(memory.NewOutboxRepository(), &stubPublisher{}, WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}
