// Package analytics считает производные показатели по списку заказов: помесячные
// и категорийные срезы, сводки, фильтры и сортировки. Все функции чистые и
// пересчитываются на каждый запрос.
package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

const (
	// DashboardWindow — число месяцев на графиках дашборда.
	DashboardWindow = 7
	// ProfileWindow — число месяцев на графике профиля.
	ProfileWindow = 6
)

// MonthOffset возвращает (now.Month - t.Month + 12) mod 12.
//
// Год не учитывается: заказы старше 12 месяцев попадают в тот же бакет, что и
// заказы с тем же месяцем текущего года. Это известное ограничение, данные
// считаются свежими.
func MonthOffset(now, t time.Time) int {
	nowMonth := int(now.Month()) - 1
	orderMonth := int(t.In(now.Location()).Month()) - 1
	return (nowMonth - orderMonth + 12) % 12
}

// bucketIndex отображает смещение в индекс бакета: бакет i хранит смещение window-1-i.
func bucketIndex(offset, window int) (int, bool) {
	if offset >= window {
		return 0, false
	}
	return window - 1 - offset, true
}

// MonthlyCounts раскладывает количество заказов по скользящему окну из window месяцев.
// Последний элемент соответствует текущему месяцу.
func MonthlyCounts(orders []domain.Order, now time.Time, window int) []int {
	if window <= 0 {
		return []int{}
	}
	counts := make([]int, window)
	for _, order := range orders {
		if idx, ok := bucketIndex(MonthOffset(now, order.CreatedAt), window); ok {
			counts[idx]++
		}
	}
	return counts
}

// MonthlySpending суммирует Total заказов по тем же бакетам, что и MonthlyCounts.
func MonthlySpending(orders []domain.Order, now time.Time, window int) []decimal.Decimal {
	if window <= 0 {
		return []decimal.Decimal{}
	}
	sums := make([]decimal.Decimal, window)
	for i := range sums {
		sums[i] = decimal.Zero
	}
	for _, order := range orders {
		if idx, ok := bucketIndex(MonthOffset(now, order.CreatedAt), window); ok {
			sums[idx] = sums[idx].Add(order.Total)
		}
	}
	return sums
}

// MonthLabels возвращает короткие названия месяцев для оси графика, от старого к текущему.
func MonthLabels(now time.Time, window int) []string {
	if window <= 0 {
		return []string{}
	}
	labels := make([]string, window)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for i := 0; i < window; i++ {
		labels[i] = first.AddDate(0, -(window - 1 - i), 0).Format("Jan")
	}
	return labels
}
