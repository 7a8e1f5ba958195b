// Package profile управляет профилем пользователя: создание при первом входе,
// обновление аватара и отображаемого имени.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
	"github.com/vladislavdragonenkov/blackstore/internal/realtime"
)

// Service — операции над профилем.
type Service struct {
	users  domain.UserRepository
	broker realtime.Broker
	logger *log.Entry
	now    func() time.Time
}

// NewService создаёт сервис профилей. broker может быть nil.
func NewService(users domain.UserRepository, broker realtime.Broker, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "profile-service")
	}
	return &Service{
		users:  users,
		broker: broker,
		logger: logger,
		now:    time.Now,
	}
}

// EnsureUser создаёт профиль при первом входе с нулевыми счётчиками. Для
// существующего профиля обновляет только ссылку на аватар (версия 400px).
func (s *Service) EnsureUser(ctx context.Context, identity domain.Identity) (domain.User, error) {
	if identity.ID == "" {
		return domain.User{}, domain.ErrUserIDRequired
	}

	_, err := s.users.Get(ctx, identity.ID)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		user := domain.NewUser(identity, s.now())
		createErr := s.users.Create(ctx, user)
		if createErr == nil {
			s.logger.WithField("user_id", user.ID).Info("user profile created")
			s.publish(ctx, realtime.ChangePut, user)
			return user, nil
		}
		if !errors.Is(createErr, domain.ErrUserExists) {
			return domain.User{}, fmt.Errorf("create user: %w", createErr)
		}
		// Профиль успели создать параллельным входом: дальше как для существующего.
	case err != nil:
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}

	photo := domain.HighResPhotoURL(identity.PhotoURL)
	user, err := s.users.UpdateProfile(ctx, identity.ID, domain.UserPatch{PhotoURL: &photo})
	if err != nil {
		return domain.User{}, fmt.Errorf("refresh user photo: %w", err)
	}
	s.publish(ctx, realtime.ChangePatch, user)
	return user, nil
}

// Get возвращает профиль.
func (s *Service) Get(ctx context.Context, id string) (domain.User, error) {
	return s.users.Get(ctx, id)
}

// UpdateDisplayName меняет отображаемое имя; пустое после обрезки пробелов имя отклоняется.
func (s *Service) UpdateDisplayName(ctx context.Context, id, name string) (domain.User, error) {
	name, err := domain.NormalizeDisplayName(name)
	if err != nil {
		return domain.User{}, err
	}

	user, err := s.users.UpdateProfile(ctx, id, domain.UserPatch{DisplayName: &name})
	if err != nil {
		return domain.User{}, fmt.Errorf("update display name: %w", err)
	}
	s.publish(ctx, realtime.ChangePatch, user)
	return user, nil
}

func (s *Service) publish(ctx context.Context, kind realtime.ChangeKind, user domain.User) {
	if s.broker == nil {
		return
	}
	change, err := realtime.NewChange(realtime.UserPath(user.ID), kind, user)
	if err == nil {
		err = s.broker.Publish(ctx, change)
	}
	if err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("failed to publish profile change")
	}
}
