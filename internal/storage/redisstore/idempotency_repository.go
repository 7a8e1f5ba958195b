package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

var createKeyScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'request_hash', ARGV[1], 'status', 'processing', 'ttl_at', ARGV[2], 'created_at', ARGV[3], 'updated_at', ARGV[3])
redis.call('PEXPIREAT', KEYS[1], ARGV[4])
return 1
`)

var completeKeyScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'response_body', ARGV[2], 'http_status', ARGV[3], 'updated_at', ARGV[4])
return 1
`)

// IdempotencyRepository хранит ключи в хешах <prefix>:idem:<key>. Срок жизни
// выставляется через PEXPIREAT, поэтому Redis сам удаляет просроченные ключи.
type IdempotencyRepository struct {
	store *Store
	now   func() time.Time
}

// NewIdempotencyRepository создаёт Redis-реализацию IdempotencyRepository.
func NewIdempotencyRepository(store *Store) *IdempotencyRepository {
	return &IdempotencyRepository{store: store, now: time.Now}
}

func (r *IdempotencyRepository) recordKey(key string) string {
	return r.store.key("idem", key)
}

// CreateProcessing занимает ключ через SETNX-подобный скрипт.
func (r *IdempotencyRepository) CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key, requestHash = strings.TrimSpace(key), strings.TrimSpace(requestHash)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}
	now := r.now().UTC()
	if ttlAt.IsZero() {
		ttlAt = now.Add(24 * time.Hour)
	}
	ttlAt = ttlAt.UTC()

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	created, err := createKeyScript.Run(ctx, r.store.client, []string{r.recordKey(key)},
		requestHash, ttlAt.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano), ttlAt.UnixMilli(),
	).Int()
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("redis create idempotency key: %w", err)
	}
	if created == 1 {
		return domain.IdempotencyRecord{
			Key:         key,
			RequestHash: requestHash,
			Status:      domain.IdempotencyStatusProcessing,
			TTLAt:       ttlAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		}, nil
	}

	existing, err := r.Get(ctx, key)
	if err != nil {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyAlreadyExists
	}
	if existing.RequestHash != requestHash {
		return existing, domain.ErrIdempotencyHashMismatch
	}
	return existing, domain.ErrIdempotencyKeyAlreadyExists
}

// Get читает запись по ключу.
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	fields, err := r.store.client.HGetAll(ctx, r.recordKey(key)).Result()
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("redis get idempotency key: %w", err)
	}
	if len(fields) == 0 {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}

	rec := domain.IdempotencyRecord{
		Key:         key,
		RequestHash: fields["request_hash"],
		Status:      domain.IdempotencyStatus(fields["status"]),
	}
	if !rec.Status.Valid() {
		return domain.IdempotencyRecord{}, fmt.Errorf("idempotency key %s has unknown status %q", key, fields["status"])
	}
	if body, ok := fields["response_body"]; ok {
		rec.ResponseBody = []byte(body)
	}
	if code := fields["http_status"]; code != "" {
		if rec.HTTPStatus, err = strconv.Atoi(code); err != nil {
			return domain.IdempotencyRecord{}, fmt.Errorf("parse http_status: %w", err)
		}
	}
	rec.TTLAt, _ = time.Parse(time.RFC3339Nano, fields["ttl_at"])
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return rec, nil
}

// MarkDone сохраняет успешный ответ.
func (r *IdempotencyRepository) MarkDone(ctx context.Context, key string, body []byte, httpStatus int) error {
	return r.complete(ctx, key, domain.IdempotencyStatusDone, body, httpStatus)
}

// MarkFailed сохраняет ответ с ошибкой.
func (r *IdempotencyRepository) MarkFailed(ctx context.Context, key string, body []byte, httpStatus int) error {
	return r.complete(ctx, key, domain.IdempotencyStatusFailed, body, httpStatus)
}

// DeleteExpired ничего не делает: просроченные ключи удаляет сам Redis.
func (r *IdempotencyRepository) DeleteExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

func (r *IdempotencyRepository) complete(ctx context.Context, key string, status domain.IdempotencyStatus, body []byte, httpStatus int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	ok, err := completeKeyScript.Run(ctx, r.store.client, []string{r.recordKey(key)},
		string(status), body, httpStatus, r.now().UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return fmt.Errorf("redis mark idempotency key %s: %w", status, err)
	}
	if ok == 0 {
		return domain.ErrIdempotencyKeyNotFound
	}
	return nil
}

var _ domain.IdempotencyRepository = (*IdempotencyRepository)(nil)
