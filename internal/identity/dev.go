package identity

import (
	"context"
	"strings"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

// DevProvider принимает любой непустой идентификатор как учётные данные.
// Используется для локальной разработки и нагрузочных тестов.
type DevProvider struct{}

// NewDevProvider создаёт провайдер для разработки.
func NewDevProvider() DevProvider {
	return DevProvider{}
}

// Authenticate строит Identity из credential.
func (DevProvider) Authenticate(_ context.Context, credential string) (domain.Identity, error) {
	id := strings.TrimSpace(credential)
	if id == "" {
		return domain.Identity{}, domain.ErrSignInCancelled
	}
	return domain.Identity{
		ID:          id,
		DisplayName: id,
		Email:       id + "@blackstore.local",
	}, nil
}

// SignOut ничего не делает.
func (DevProvider) SignOut(context.Context, domain.Identity) error {
	return nil
}

var _ domain.IdentityProvider = DevProvider{}
