package analytics

import (
	"sort"
	"strings"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

// FilterAll отключает фильтр по категории или статусу.
const FilterAll = "all"

// OrderFilter — условия отбора заказов; пустые поля и "all" не ограничивают выборку.
type OrderFilter struct {
	Status string
	Query  string
}

// ProductFilter — условия отбора товаров каталога.
type ProductFilter struct {
	Category string
	Query    string
}

// SortMode задаёт порядок товаров в каталоге.
type SortMode string

const (
	SortDefault   SortMode = "default"
	SortPriceAsc  SortMode = "price-asc"
	SortPriceDesc SortMode = "price-desc"
	SortRating    SortMode = "rating"
)

// ParseSortMode разбирает режим сортировки; неизвестные значения дают SortDefault.
func ParseSortMode(raw string) SortMode {
	switch mode := SortMode(strings.TrimSpace(raw)); mode {
	case SortPriceAsc, SortPriceDesc, SortRating:
		return mode
	default:
		return SortDefault
	}
}

func enabled(criterion string) bool {
	return criterion != "" && criterion != FilterAll
}

func titleMatches(title, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(title), strings.ToLower(query))
}

// FilterOrders отбирает заказы по точному статусу и подстроке в названии (без учёта регистра).
func FilterOrders(orders []domain.Order, filter OrderFilter) []domain.Order {
	result := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		if enabled(filter.Status) && string(order.Status.Normalize()) != filter.Status {
			continue
		}
		if !titleMatches(order.Title, filter.Query) {
			continue
		}
		result = append(result, order)
	}
	return result
}

// FilterProducts отбирает товары по точной категории и подстроке в названии.
func FilterProducts(products []domain.Product, filter ProductFilter) []domain.Product {
	result := make([]domain.Product, 0, len(products))
	for _, product := range products {
		if enabled(filter.Category) && product.Category != filter.Category {
			continue
		}
		if !titleMatches(product.Title, filter.Query) {
			continue
		}
		result = append(result, product)
	}
	return result
}

// SortProducts возвращает отсортированную копию. Сортировка стабильная,
// SortDefault сохраняет порядок каталога.
func SortProducts(products []domain.Product, mode SortMode) []domain.Product {
	sorted := make([]domain.Product, len(products))
	copy(sorted, products)

	switch mode {
	case SortPriceAsc:
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price.LessThan(sorted[j].Price) })
	case SortPriceDesc:
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price.GreaterThan(sorted[j].Price) })
	case SortRating:
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rating.Rate > sorted[j].Rating.Rate })
	}
	return sorted
}

// Categories возвращает различные категории товаров в порядке первого появления.
func Categories(products []domain.Product) []string {
	seen := make(map[string]struct{})
	result := make([]string, 0)
	for _, product := range products {
		if _, ok := seen[product.Category]; ok {
			continue
		}
		seen[product.Category] = struct{}{}
		result = append(result, product.Category)
	}
	return result
}
