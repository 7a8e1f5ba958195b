package domain

import "github.com/shopspring/decimal"

// Rating — оценка товара из внешнего каталога.
type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// Product — товар удалённого каталога. Только для чтения.
type Product struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Rating      Rating          `json:"rating"`
}
