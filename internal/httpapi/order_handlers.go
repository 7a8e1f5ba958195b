package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/blackstore/internal/analytics"
	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

type placeOrderRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  *int  `json:"quantity" validate:"omitnil,gt=0"`
}

type placeOrderResponse struct {
	Order   domain.Order `json:"order"`
	Warning string       `json:"warning,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type ordersResponse struct {
	Orders  []domain.Order    `json:"orders"`
	Summary analytics.Summary `json:"summary"`
}

// placeOrder оформляет заказ товара из копии каталога сессии. Если заказ
// записан, а счётчики пользователя нет, отвечает 201 с warning.
func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	sess := sessionFrom(r.Context())
	product, err := sess.Catalog().Find(r.Context(), req.ProductID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	order, err := s.orders.PlaceOrder(r.Context(), sess.UserID(), product, quantity)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, placeOrderResponse{Order: order})
	case errors.Is(err, domain.ErrCounterUpdate):
		writeJSON(w, http.StatusCreated, placeOrderResponse{Order: order, Warning: domain.ErrCounterUpdate.Error()})
	default:
		s.writeError(w, r, err)
	}
}

// listOrders отдаёт экран заказов: отфильтрованный список и сводку по всем заказам.
func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders.List(r.Context(), sessionFrom(r.Context()).UserID())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	filtered := analytics.FilterOrders(orders, analytics.OrderFilter{
		Status: query.Get("status"),
		Query:  query.Get("q"),
	})
	writeJSON(w, http.StatusOK, ordersResponse{
		Orders:  filtered,
		Summary: analytics.OrdersOverview(orders).Summary,
	})
}

func (s *Server) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	order, err := s.orders.UpdateStatus(r.Context(), sessionFrom(r.Context()).UserID(), chi.URLParam(r, "id"), status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// deleteOrder требует явного подтверждения ?confirm=true.
func (s *Server) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if !strings.EqualFold(r.URL.Query().Get("confirm"), "true") {
		s.writeError(w, r, fmt.Errorf("%w: deletion must be confirmed with confirm=true", errBadRequest))
		return
	}
	if err := s.orders.DeleteOrder(r.Context(), sessionFrom(r.Context()).UserID(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) orderTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := s.orders.Timeline(r.Context(), sessionFrom(r.Context()).UserID(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
