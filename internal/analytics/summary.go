package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

// StatusCount — число заказов в статусе и его доля в процентах.
type StatusCount struct {
	Status  domain.OrderStatus `json:"status"`
	Count   int                `json:"count"`
	Percent int                `json:"percent"`
}

// Summary — сводные показатели по списку заказов.
type Summary struct {
	Count        int             `json:"count"`
	TotalSpent   decimal.Decimal `json:"total_spent"`
	AverageOrder decimal.Decimal `json:"average_order"`
	Statuses     []StatusCount   `json:"statuses"`
}

// StatusTotal возвращает число заказов в статусе или 0.
func (s Summary) StatusTotal(status domain.OrderStatus) int {
	for _, sc := range s.Statuses {
		if sc.Status == status {
			return sc.Count
		}
	}
	return 0
}

// Summarize считает количество, сумму, средний чек и разбивку по статусам.
// Средний чек равен нулю для пустого списка. Пустой статус считается ordered.
// Статусы перечислены в порядке первого появления.
func Summarize(orders []domain.Order) Summary {
	total := decimal.Zero
	index := make(map[domain.OrderStatus]int)
	statuses := make([]StatusCount, 0)

	for _, order := range orders {
		total = total.Add(order.Total)

		status := order.Status.Normalize()
		if i, ok := index[status]; ok {
			statuses[i].Count++
			continue
		}
		index[status] = len(statuses)
		statuses = append(statuses, StatusCount{Status: status, Count: 1})
	}

	summary := Summary{
		Count:        len(orders),
		TotalSpent:   total.Round(2),
		AverageOrder: decimal.Zero,
		Statuses:     statuses,
	}
	if len(orders) == 0 {
		return summary
	}

	n := decimal.NewFromInt(int64(len(orders)))
	summary.AverageOrder = total.DivRound(n, 2)
	for i := range summary.Statuses {
		summary.Statuses[i].Percent = percent(summary.Statuses[i].Count, len(orders))
	}
	return summary
}

// percent округляет долю до целого, половина округляется вверх.
func percent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return (part*200 + whole) / (whole * 2)
}

// SortOrdersRecent сортирует копию заказов по CreatedAt от новых к старым.
func SortOrdersRecent(orders []domain.Order) []domain.Order {
	sorted := make([]domain.Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return sorted
}

// Recent возвращает n самых свежих заказов.
func Recent(orders []domain.Order, n int) []domain.Order {
	sorted := SortOrdersRecent(orders)
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
