package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

const userColumns = `id, display_name, email, photo_url, total_orders, total_spent, created_at`

// UserRepository хранит профили в таблице users.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository создаёт PostgreSQL-реализацию UserRepository.
func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{db: store.DB()}
}

// Get возвращает профиль по id.
func (r *UserRepository) Get(ctx context.Context, id string) (domain.User, error) {
	if strings.TrimSpace(id) == "" {
		return domain.User{}, domain.ErrUserIDRequired
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// Create вставляет новый профиль.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	if strings.TrimSpace(user.ID) == "" {
		return domain.ErrUserIDRequired
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		user.ID, user.DisplayName, user.Email, user.PhotoURL,
		user.TotalOrders, user.TotalSpent.String(), user.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UpdateProfile меняет только поля, переданные в патче.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, patch domain.UserPatch) (domain.User, error) {
	if patch.Empty() {
		return r.Get(ctx, id)
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET display_name = COALESCE($2, display_name),
		    photo_url = COALESCE($3, photo_url)
		WHERE id = $1
		RETURNING `+userColumns,
		id, nullString(patch.DisplayName), nullString(patch.PhotoURL),
	)
	return scanUser(row)
}

// IncrementCounters прибавляет значения к счётчикам одним UPDATE.
func (r *UserRepository) IncrementCounters(ctx context.Context, id string, orders int64, spent decimal.Decimal) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET total_orders = total_orders + $2,
		    total_spent = total_spent + $3::numeric
		WHERE id = $1
		RETURNING `+userColumns,
		id, orders, spent.String(),
	)
	return scanUser(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		user  domain.User
		spent string
	)
	err := row.Scan(&user.ID, &user.DisplayName, &user.Email, &user.PhotoURL, &user.TotalOrders, &spent, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("scan user: %w", err)
	}
	if user.TotalSpent, err = decimal.NewFromString(spent); err != nil {
		return domain.User{}, fmt.Errorf("parse total_spent %q: %w", spent, err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

var _ domain.UserRepository = (*UserRepository)(nil)
