// Package redisstore хранит профили, заказы, историю статусов и ключи
// идемпотентности в Redis. Атомарность обновлений обеспечивают Lua-скрипты
// и оптимистичные транзакции WATCH/MULTI.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	opTimeout     = 3 * time.Second
	defaultPrefix = "blackstore"
	maxTxRetries  = 5
)

// Options — параметры подключения.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix — пространство имён ключей; по умолчанию blackstore.
	Prefix string
}

// Store — подключение к Redis и общий префикс ключей.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// Open подключается к Redis и проверяет соединение.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	store := NewStore(client, opts.Prefix)
	if err := store.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return store, nil
}

// NewStore оборачивает готовый клиент.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Client возвращает клиент Redis, например для RedisBroker.
func (s *Store) Client() redis.UniversalClient {
	return s.client
}

// Ping проверяет соединение.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close закрывает клиент.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// watchRetry повторяет оптимистичную транзакцию, пока ключ меняют конкуренты.
func (s *Store) watchRetry(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	var err error
	for range maxTxRetries {
		err = s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("redis transaction on %v: %w", keys, err)
}
