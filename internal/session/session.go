// Package session ведёт живые сессии пользователей: вход через провайдера,
// подписку на профиль, копию каталога и выход.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/blackstore/internal/catalog"
	"github.com/vladislavdragonenkov/blackstore/internal/domain"
	"github.com/vladislavdragonenkov/blackstore/internal/realtime"
)

// Session — контекст вошедшего пользователя.
type Session struct {
	id        string
	identity  domain.Identity
	expiresAt time.Time
	catalog   *catalog.View

	mu      sync.RWMutex
	profile domain.User
	loaded  bool

	cancel  context.CancelFunc
	done    chan struct{}
	ended   chan struct{}
	endOnce sync.Once
}

// ID возвращает идентификатор сессии.
func (s *Session) ID() string { return s.id }

// Identity возвращает личность, под которой выполнен вход.
func (s *Session) Identity() domain.Identity { return s.identity }

// UserID возвращает идентификатор пользователя.
func (s *Session) UserID() string { return s.identity.ID }

// ExpiresAt возвращает момент истечения сессии.
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// Catalog возвращает копию каталога сессии.
func (s *Session) Catalog() *catalog.View { return s.catalog }

// Profile возвращает последний полученный профиль. loaded=false, пока не пришёл первый снимок.
func (s *Session) Profile() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile, s.loaded
}

// Done закрывается, когда сессия завершена выходом, заменой или истечением.
func (s *Session) Done() <-chan struct{} { return s.ended }

func (s *Session) finish() {
	s.endOnce.Do(func() {
		close(s.ended)
		s.cancel()
	})
}

// WaitLoaded ждёт первый снимок профиля или отмену ctx.
func (s *Session) WaitLoaded(ctx context.Context) (domain.User, bool) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if profile, ok := s.Profile(); ok {
			return profile, true
		}
		select {
		case <-ctx.Done():
			return domain.User{}, false
		case <-s.done:
			return s.Profile()
		case <-ticker.C:
		}
	}
}

func (s *Session) setProfile(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = user
	s.loaded = true
}

func (s *Session) clearProfile() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = domain.User{}
	s.loaded = true
}

// follow получает начальный снимок профиля и применяет последующие изменения до закрытия подписки.
func (s *Session) follow(ctx context.Context, sub *realtime.Subscription, load func(context.Context) (domain.User, error), logger *log.Entry) {
	defer close(s.done)
	defer sub.Close()

	user, err := load(ctx)
	if err != nil && ctx.Err() == nil {
		logger.WithError(err).Warn("failed to load profile snapshot, retrying")
		user, err = load(ctx)
	}
	switch {
	case err == nil:
		s.setProfile(user)
	case ctx.Err() != nil:
		return
	default:
		// Профиль так и не прочитан: сессия считается загруженной с пустым
		// профилем, дальнейшие изменения придут через подписку.
		logger.WithError(err).Error("profile snapshot unavailable")
		s.clearProfile()
	}

	for change := range sub.Changes() {
		switch change.Kind {
		case realtime.ChangeDelete:
			s.clearProfile()
		default:
			var updated domain.User
			if err := json.Unmarshal(change.Data, &updated); err != nil {
				logger.WithError(err).Warn("skip malformed profile change")
				continue
			}
			s.setProfile(updated)
		}
	}
}
