package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает стадию исполнения заказа.
type OrderStatus string

const (
	// OrderStatusOrdered — начальный статус, присваивается при оформлении.
	OrderStatusOrdered OrderStatus = "ordered"
	// OrderStatusProcessing — заказ в обработке.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses перечисляет статусы в порядке отображения.
var OrderStatuses = []OrderStatus{
	OrderStatusOrdered,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid проверяет, что статус относится к перечислению.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusOrdered, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Normalize возвращает ordered для пустого статуса (записи без статуса считаются оформленными).
func (s OrderStatus) Normalize() OrderStatus {
	if s == "" {
		return OrderStatusOrdered
	}
	return s
}

// ParseOrderStatus разбирает статус из внешнего ввода.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// Order — оформленная покупка одного товара. Поля товара копируются на момент оформления.
type Order struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	ProductID int64           `json:"product_id"`
	Title     string          `json:"title"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
	Category  string          `json:"category"`
	Status    OrderStatus     `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewOrder собирает заказ из товара каталога. Total считается один раз и больше не пересчитывается.
func NewOrder(id, userID string, product Product, quantity int, now time.Time) (Order, error) {
	if userID == "" {
		return Order{}, ErrUserIDRequired
	}
	if quantity <= 0 {
		return Order{}, ErrQuantityInvalid
	}
	return Order{
		ID:        id,
		UserID:    userID,
		ProductID: product.ID,
		Title:     product.Title,
		Image:     product.Image,
		Price:     product.Price,
		Quantity:  quantity,
		Total:     OrderTotal(product.Price, quantity),
		Category:  product.Category,
		Status:    OrderStatusOrdered,
		CreatedAt: now.UTC(),
	}, nil
}

// OrderTotal возвращает price × quantity, округлённое до копеек.
func OrderTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// CategoryOrOther возвращает категорию заказа или Other, если она пустая.
func (o Order) CategoryOrOther() string {
	if strings.TrimSpace(o.Category) == "" {
		return CategoryOther
	}
	return o.Category
}

// CategoryOther — категория по умолчанию для заказов без категории.
const CategoryOther = "Other"
