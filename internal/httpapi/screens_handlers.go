package httpapi

import (
	"net/http"

	"github.com/vladislavdragonenkov/blackstore/internal/analytics"
	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

type dashboardResponse struct {
	analytics.DashboardData
	RecentOrders []domain.Order `json:"recent_orders"`
}

type profileResponse struct {
	User domain.User `json:"user"`
	analytics.ProfileData
	RecentOrders []domain.Order `json:"recent_orders"`
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders.List(r.Context(), sessionFrom(r.Context()).UserID())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data := analytics.Dashboard(orders, s.now())
	writeJSON(w, http.StatusOK, dashboardResponse{DashboardData: data, RecentOrders: data.RecentOrders})
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	userID := sessionFrom(r.Context()).UserID()
	user, err := s.profiles.Get(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	orders, err := s.orders.List(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data := analytics.ProfileOverview(user, orders, s.now())
	writeJSON(w, http.StatusOK, profileResponse{User: user, ProfileData: data, RecentOrders: data.RecentOrders})
}
