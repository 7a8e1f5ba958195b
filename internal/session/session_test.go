package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
	"github.com/vladislavdragonenkov/blackstore/internal/realtime"
)

func startFollow(t *testing.T, load func(context.Context) (domain.User, error)) *Session {
	t.Helper()

	hub := realtime.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := hub.Subscribe(ctx, realtime.UserPath("u-1"))
	if err != nil {
		cancel()
		t.Fatalf("Subscribe: %v", err)
	}
	s := &Session{
		id:       "s-1",
		identity: domain.Identity{ID: "u-1"},
		cancel:   cancel,
		done:     make(chan struct{}),
		ended:    make(chan struct{}),
	}
	t.Cleanup(s.finish)
	go s.follow(ctx, sub, load, log.WithField("component", "session-test"))
	return s
}

func TestFollow_RetriesFailedSnapshot(t *testing.T) {
	var calls atomic.Int32
	s := startFollow(t, func(context.Context) (domain.User, error) {
		if calls.Add(1) == 1 {
			return domain.User{}, errors.New("store hiccup")
		}
		return domain.User{ID: "u-1", DisplayName: "Una"}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	user, ok := s.WaitLoaded(ctx)
	if !ok || user.DisplayName != "Una" {
		t.Fatalf("WaitLoaded = %+v, %v", user, ok)
	}
	if calls.Load() != 2 {
		t.Fatalf("load calls = %d, want 2", calls.Load())
	}
}

func TestFollow_UnavailableSnapshotStillCompletesLoading(t *testing.T) {
	s := startFollow(t, func(context.Context) (domain.User, error) {
		return domain.User{}, errors.New("store down")
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, ok := s.WaitLoaded(ctx); !ok {
		t.Fatal("session must stop loading when the snapshot cannot be read")
	}
}

func TestSession_FinishIsIdempotent(t *testing.T) {
	s := startFollow(t, func(context.Context) (domain.User, error) {
		return domain.User{ID: "u-1"}, nil
	})

	s.finish()
	s.finish()
	select {
	case <-s.Done():
	default:
		t.Fatal("Done must be closed after finish")
	}
}
