package httpapi

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/blackstore/internal/analytics"
	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

// productView — товар каталога с отметкой, что пользователь его уже заказывал.
type productView struct {
	domain.Product
	Ordered bool `json:"ordered"`
}

type productsResponse struct {
	Products   []productView `json:"products"`
	Categories []string      `json:"categories"`
	OrderedIDs []int64       `json:"ordered_ids"`
	Warning    string        `json:"warning,omitempty"`
}

type editProductRequest struct {
	Title string          `json:"title" validate:"required"`
	Price decimal.Decimal `json:"price"`
}

// listProducts отдаёт копию каталога сессии с фильтром и сортировкой. Если
// каталог недоступен, список пуст, а причина передаётся в warning.
func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	snapshot := sess.Catalog().Load(r.Context())

	query := r.URL.Query()
	products := analytics.FilterProducts(snapshot.Products, analytics.ProductFilter{
		Category: query.Get("category"),
		Query:    query.Get("q"),
	})
	products = analytics.SortProducts(products, analytics.ParseSortMode(query.Get("sort")))

	ordered, orderedIDs := s.orderedProducts(r, sess.UserID())
	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, productView{Product: p, Ordered: ordered[p.ID]})
	}

	resp := productsResponse{Products: views, Categories: snapshot.Categories, OrderedIDs: orderedIDs}
	if snapshot.LoadErr != nil {
		s.logger.WithError(snapshot.LoadErr).Warn("catalog unavailable")
		resp.Warning = domain.ErrCatalogUnavailable.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// orderedProducts возвращает товары, которые пользователь уже заказывал.
// Ошибка чтения заказов не мешает показать каталог: отметки просто не ставятся.
func (s *Server) orderedProducts(r *http.Request, userID string) (map[int64]bool, []int64) {
	orders, err := s.orders.List(r.Context(), userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("failed to load orders for product badges")
		return nil, []int64{}
	}

	seen := make(map[int64]bool, len(orders))
	ids := make([]int64, 0, len(orders))
	for _, order := range orders {
		if !seen[order.ProductID] {
			seen[order.ProductID] = true
			ids = append(ids, order.ProductID)
		}
	}
	slices.Sort(ids)
	return seen, ids
}

func (s *Server) editProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req editProductRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	product, err := sessionFrom(r.Context()).Catalog().Edit(r.Context(), id, req.Title, req.Price)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := sessionFrom(r.Context()).Catalog().Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func productID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: product id must be a positive integer", errBadRequest)
	}
	return id, nil
}
