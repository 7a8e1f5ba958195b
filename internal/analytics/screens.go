package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

const (
	recentLimit        = 5
	dashboardTopLabels = 5
)

// MonthlySeries хранит значения графика с подписями месяцев.
type MonthlySeries struct {
	Labels   []string          `json:"labels"`
	Counts   []int             `json:"counts"`
	Spending []decimal.Decimal `json:"spending,omitempty"`
}

// DashboardData — всё, что рисует дашборд.
type DashboardData struct {
	TotalOrders     int             `json:"total_orders"`
	TotalSpent      decimal.Decimal `json:"total_spent"`
	AverageOrder    decimal.Decimal `json:"average_order"`
	// CategoriesCount — число категорий на диаграмме, не больше пяти.
	CategoriesCount int             `json:"categories_count"`
	Monthly         MonthlySeries   `json:"monthly"`
	TopCategories   []CategoryCount `json:"top_categories"`
	RecentOrders    []domain.Order  `json:"-"`
}

// OrdersOverviewData содержит сводку экрана заказов.
type OrdersOverviewData struct {
	Summary Summary `json:"summary"`
}

// ProfileData содержит сводку экрана профиля.
type ProfileData struct {
	User             domain.User      `json:"-"`
	TotalOrders      int              `json:"total_orders"`
	TotalSpent       decimal.Decimal  `json:"total_spent"`
	AverageOrder     decimal.Decimal  `json:"average_order"`
	Monthly          MonthlySeries    `json:"monthly"`
	CategorySpending []CategoryAmount `json:"category_spending"`
	MemberSince      time.Time        `json:"member_since"`
	RecentOrders     []domain.Order   `json:"-"`
}

// Dashboard собирает показатели дашборда за последние DashboardWindow месяцев.
func Dashboard(orders []domain.Order, now time.Time) DashboardData {
	summary := Summarize(orders)
	top := TopCategories(CategoryCounts(orders), dashboardTopLabels)

	return DashboardData{
		TotalOrders:     summary.Count,
		TotalSpent:      summary.TotalSpent,
		AverageOrder:    summary.AverageOrder,
		CategoriesCount: len(top),
		Monthly: MonthlySeries{
			Labels:   MonthLabels(now, DashboardWindow),
			Counts:   MonthlyCounts(orders, now, DashboardWindow),
			Spending: MonthlySpending(orders, now, DashboardWindow),
		},
		TopCategories: top,
		RecentOrders:  Recent(orders, recentLimit),
	}
}

// OrdersOverview собирает статусную сводку для экрана заказов.
func OrdersOverview(orders []domain.Order) OrdersOverviewData {
	return OrdersOverviewData{Summary: Summarize(orders)}
}

// ProfileOverview собирает показатели профиля за последние ProfileWindow месяцев.
// Суммы считаются по заказам, а не по счётчикам пользователя.
func ProfileOverview(user domain.User, orders []domain.Order, now time.Time) ProfileData {
	summary := Summarize(orders)

	return ProfileData{
		User:         user,
		TotalOrders:  summary.Count,
		TotalSpent:   summary.TotalSpent,
		AverageOrder: summary.AverageOrder,
		Monthly: MonthlySeries{
			Labels: MonthLabels(now, ProfileWindow),
			Counts: MonthlyCounts(orders, now, ProfileWindow),
		},
		CategorySpending: CategorySpending(orders),
		MemberSince:      user.CreatedAt,
		RecentOrders:     Recent(orders, recentLimit),
	}
}
