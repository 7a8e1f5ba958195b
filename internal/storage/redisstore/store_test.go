package redisstore

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

type RedisStoreSuite struct {
	suite.Suite
	client *redis.Client
	store  *Store
	ctx    context.Context
}

func TestRedisStoreSuite(t *testing.T) {
	addr := os.Getenv("BLACKSTORE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set BLACKSTORE_TEST_REDIS_ADDR to run redis tests")
	}
	suite.Run(t, &RedisStoreSuite{client: redis.NewClient(&redis.Options{Addr: addr})})
}

func (s *RedisStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	require.NoError(s.T(), s.client.Ping(s.ctx).Err(), "redis is not reachable")
}

func (s *RedisStoreSuite) TearDownSuite() {
	_ = s.client.Close()
}

func (s *RedisStoreSuite) SetupTest() {
	s.store = NewStore(s.client, "blackstore-test-"+uuid.NewString())
}

func (s *RedisStoreSuite) TearDownTest() {
	iter := s.client.Scan(s.ctx, 0, s.store.prefix+":*", 100).Iterator()
	for iter.Next(s.ctx) {
		s.client.Del(s.ctx, iter.Val())
	}
}

func (s *RedisStoreSuite) TestUserCountersAreAtomic() {
	users := NewUserRepository(s.store)
	user := domain.NewUser(domain.Identity{ID: "u1", DisplayName: "Ann"}, time.Now())
	s.Require().NoError(users.Create(s.ctx, user))
	s.Require().ErrorIs(users.Create(s.ctx, user), domain.ErrUserExists)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := users.IncrementCounters(s.ctx, "u1", 1, decimal.RequireFromString("0.10"))
			s.NoError(err)
		}()
	}
	wg.Wait()

	got, err := users.Get(s.ctx, "u1")
	s.Require().NoError(err)
	s.EqualValues(20, got.TotalOrders)
	s.True(got.TotalSpent.Equal(decimal.NewFromInt(2)), "total spent %s", got.TotalSpent)

	name := "Anna"
	updated, err := users.UpdateProfile(s.ctx, "u1", domain.UserPatch{DisplayName: &name})
	s.Require().NoError(err)
	s.Equal("Anna", updated.DisplayName)
	s.EqualValues(20, updated.TotalOrders)

	_, err = users.IncrementCounters(s.ctx, "ghost", 1, decimal.Zero)
	s.ErrorIs(err, domain.ErrUserNotFound)
}

func (s *RedisStoreSuite) TestOrdersLifecycle() {
	orders := NewOrderRepository(s.store)
	product := domain.Product{ID: 3, Title: "SSD", Price: decimal.RequireFromString("64"), Category: "electronics"}
	base := time.Now().UTC()

	older, err := domain.NewOrder("o1", "u1", product, 1, base.Add(-time.Hour))
	s.Require().NoError(err)
	newer, err := domain.NewOrder("o2", "u1", product, 3, base)
	s.Require().NoError(err)
	s.Require().NoError(orders.Create(s.ctx, older))
	s.Require().NoError(orders.Create(s.ctx, newer))
	s.ErrorIs(orders.Create(s.ctx, older), domain.ErrOrderExists)

	listed, err := orders.ListByUser(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(listed, 2)
	s.Equal("o2", listed[0].ID)
	s.True(listed[0].Total.Equal(decimal.NewFromInt(192)))

	updated, err := orders.UpdateStatus(s.ctx, "u1", "o1", domain.OrderStatusCancelled)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCancelled, updated.Status)

	_, err = orders.UpdateStatus(s.ctx, "u1", "missing", domain.OrderStatusShipped)
	s.ErrorIs(err, domain.ErrOrderNotFound)

	s.Require().NoError(orders.Delete(s.ctx, "u1", "o1"))
	s.ErrorIs(orders.Delete(s.ctx, "u1", "o1"), domain.ErrOrderNotFound)

	empty, err := orders.ListByUser(s.ctx, "u2")
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *RedisStoreSuite) TestTimelineAndIdempotency() {
	timeline := NewTimelineRepository(s.store)
	s.Require().NoError(timeline.Append(s.ctx, domain.TimelineEvent{OrderID: "o1", Type: domain.TimelineOrderPlaced}))
	s.Require().NoError(timeline.Append(s.ctx, domain.TimelineEvent{OrderID: "o1", Type: domain.TimelineStatusChanged, Reason: "shipped"}))
	events, err := timeline.List(s.ctx, "o1")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(domain.TimelineStatusChanged, events[1].Type)

	keys := NewIdempotencyRepository(s.store)
	_, err = keys.CreateProcessing(s.ctx, "u1:k", "h1", time.Now().Add(time.Minute))
	s.Require().NoError(err)

	_, err = keys.CreateProcessing(s.ctx, "u1:k", "h1", time.Time{})
	s.ErrorIs(err, domain.ErrIdempotencyKeyAlreadyExists)

	s.Require().NoError(keys.MarkDone(s.ctx, "u1:k", []byte(`{"id":"o1"}`), 201))
	rec, err := keys.CreateProcessing(s.ctx, "u1:k", "h2", time.Time{})
	s.ErrorIs(err, domain.ErrIdempotencyHashMismatch)
	s.True(rec.Replayable())
	s.Equal(201, rec.HTTPStatus)
	s.JSONEq(`{"id":"o1"}`, string(rec.ResponseBody))

	ttl, err := s.client.PTTL(s.ctx, keys.recordKey("u1:k")).Result()
	s.Require().NoError(err)
	s.Greater(int64(ttl), int64(0))

	s.ErrorIs(keys.MarkFailed(s.ctx, "u1:missing", nil, 500), domain.ErrIdempotencyKeyNotFound)
}
