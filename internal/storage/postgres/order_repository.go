package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

const orderColumns = `id, user_id, product_id, title, image, price, quantity, total, category, status, created_at`

// OrderRepository хранит заказы в таблице orders с ключом (user_id, id).
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) *OrderRepository {
	return &OrderRepository{db: store.DB()}
}

// Create вставляет заказ.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) error {
	if order.UserID == "" {
		return domain.ErrUserIDRequired
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		order.ID, order.UserID, order.ProductID, order.Title, order.Image,
		order.Price.String(), order.Quantity, order.Total.String(), order.Category,
		string(order.Status.Normalize()), order.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderExists
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// Get возвращает заказ пользователя.
func (r *OrderRepository) Get(ctx context.Context, userID, orderID string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 AND id = $2`, userID, orderID)
	return scanOrder(row)
}

// ListByUser возвращает заказы пользователя от новых к старым.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus меняет только статус.
func (r *OrderRepository) UpdateStatus(ctx context.Context, userID, orderID string, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, domain.ErrInvalidStatus
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		UPDATE orders SET status = $3
		WHERE user_id = $1 AND id = $2
		RETURNING `+orderColumns,
		userID, orderID, string(status),
	)
	return scanOrder(row)
}

// Delete удаляет заказ.
func (r *OrderRepository) Delete(ctx context.Context, userID, orderID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE user_id = $1 AND id = $2`, userID, orderID)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order        domain.Order
		price, total string
		status       string
	)
	err := row.Scan(
		&order.ID, &order.UserID, &order.ProductID, &order.Title, &order.Image,
		&price, &order.Quantity, &total, &order.Category, &status, &order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("scan order: %w", err)
	}
	if order.Price, err = decimal.NewFromString(price); err != nil {
		return domain.Order{}, fmt.Errorf("parse price %q: %w", price, err)
	}
	if order.Total, err = decimal.NewFromString(total); err != nil {
		return domain.Order{}, fmt.Errorf("parse total %q: %w", total, err)
	}
	order.Status = domain.OrderStatus(status).Normalize()
	order.CreatedAt = order.CreatedAt.UTC()
	return order, nil
}

var _ domain.OrderRepository = (*OrderRepository)(nil)
