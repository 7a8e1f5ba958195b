package analytics

import (
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

// CategoryCount — количество заказов в категории.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// CategoryAmount — сумма заказов в категории.
type CategoryAmount struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// CategoryCounts группирует заказы по категории (пустая — Other) в порядке первого появления.
func CategoryCounts(orders []domain.Order) []CategoryCount {
	index := make(map[string]int)
	result := make([]CategoryCount, 0)
	for _, order := range orders {
		category := order.CategoryOrOther()
		if i, ok := index[category]; ok {
			result[i].Count++
			continue
		}
		index[category] = len(result)
		result = append(result, CategoryCount{Category: category, Count: 1})
	}
	return result
}

// CategorySpending суммирует Total заказов по категориям; суммы округлены до копеек.
func CategorySpending(orders []domain.Order) []CategoryAmount {
	index := make(map[string]int)
	result := make([]CategoryAmount, 0)
	for _, order := range orders {
		category := order.CategoryOrOther()
		if i, ok := index[category]; ok {
			result[i].Amount = result[i].Amount.Add(order.Total)
			continue
		}
		index[category] = len(result)
		result = append(result, CategoryAmount{Category: category, Amount: order.Total})
	}
	for i := range result {
		result[i].Amount = result[i].Amount.Round(2)
	}
	return result
}

// TopCategories обрезает список до первых limit категорий.
func TopCategories(counts []CategoryCount, limit int) []CategoryCount {
	if limit < 0 || len(counts) <= limit {
		return counts
	}
	return counts[:limit]
}
