package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// User — профиль пользователя с накопительными счётчиками заказов.
type User struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"display_name"`
	Email       string          `json:"email"`
	PhotoURL    string          `json:"photo_url"`
	CreatedAt   time.Time       `json:"created_at"`
	TotalOrders int64           `json:"total_orders"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
}

// UserPatch — частичное обновление профиля; nil-поля не трогаются.
type UserPatch struct {
	DisplayName *string
	PhotoURL    *string
}

// Empty сообщает, что патч ничего не меняет.
func (p UserPatch) Empty() bool {
	return p.DisplayName == nil && p.PhotoURL == nil
}

// Apply применяет патч к копии пользователя.
func (p UserPatch) Apply(u User) User {
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
	}
	if p.PhotoURL != nil {
		u.PhotoURL = *p.PhotoURL
	}
	return u
}

// Identity — аутентифицированная личность, выданная провайдером.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photo_url"`
}

// NewUser создаёт профиль с нулевыми счётчиками для первого входа.
func NewUser(identity Identity, now time.Time) User {
	return User{
		ID:          identity.ID,
		DisplayName: identity.DisplayName,
		Email:       identity.Email,
		PhotoURL:    HighResPhotoURL(identity.PhotoURL),
		CreatedAt:   now.UTC(),
		TotalSpent:  decimal.Zero,
	}
}

// NormalizeDisplayName обрезает пробелы и проверяет, что имя не пустое.
func NormalizeDisplayName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrDisplayNameRequired
	}
	return trimmed, nil
}

// HighResPhotoURL подменяет маркер размера 96px на 400px в ссылке на аватар.
func HighResPhotoURL(raw string) string {
	if raw == "" {
		return ""
	}
	upgraded := strings.Replace(raw, "=s96-c", "=s400-c", 1)
	return strings.Replace(upgraded, "s96", "s400", 1)
}
