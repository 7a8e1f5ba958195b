// Package httpapi публикует экраны и операции магазина по HTTP/JSON.
package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
	"github.com/vladislavdragonenkov/blackstore/internal/metrics"
	"github.com/vladislavdragonenkov/blackstore/internal/realtime"
	"github.com/vladislavdragonenkov/blackstore/internal/session"
)

const defaultIdempotencyTTL = 24 * time.Hour

// Sessions выполняет вход и проверку сессии.
type Sessions interface {
	SignIn(ctx context.Context, credential, previousToken string) (string, *session.Session, error)
	SignOut(ctx context.Context, token string)
	Lookup(token string) (*session.Session, error)
}

// Orders описывает сценарии работы с заказами.
type Orders interface {
	PlaceOrder(ctx context.Context, userID string, product domain.Product, quantity int) (domain.Order, error)
	UpdateStatus(ctx context.Context, userID, orderID string, status domain.OrderStatus) (domain.Order, error)
	DeleteOrder(ctx context.Context, userID, orderID string) error
	List(ctx context.Context, userID string) ([]domain.Order, error)
	Timeline(ctx context.Context, userID, orderID string) ([]domain.TimelineEvent, error)
}

// Profiles читает и правит профиль.
type Profiles interface {
	Get(ctx context.Context, id string) (domain.User, error)
	UpdateDisplayName(ctx context.Context, id, name string) (domain.User, error)
}

// Deps собирает зависимости HTTP-сервера. Idempotency, Metrics и Logger необязательны.
type Deps struct {
	Sessions    Sessions
	Orders      Orders
	Profiles    Profiles
	Broker      realtime.Broker
	Idempotency domain.IdempotencyRepository
	Metrics     *metrics.StoreMetrics
	Logger      *log.Entry
}

// Server обслуживает HTTP API магазина.
type Server struct {
	sessions    Sessions
	orders      Orders
	profiles    Profiles
	broker      realtime.Broker
	idempotency domain.IdempotencyRepository
	metrics     *metrics.StoreMetrics
	logger      *log.Entry
	now         func() time.Time

	idempotencyTTL time.Duration
	heartbeat      time.Duration

	closing   chan struct{}
	closeOnce sync.Once
}

// NewServer создаёт сервер.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Server{
		sessions:       deps.Sessions,
		orders:         deps.Orders,
		profiles:       deps.Profiles,
		broker:         deps.Broker,
		idempotency:    deps.Idempotency,
		metrics:        deps.Metrics,
		logger:         logger,
		now:            time.Now,
		idempotencyTTL: defaultIdempotencyTTL,
		heartbeat:      25 * time.Second,
		closing:        make(chan struct{}),
	}
}

// CloseStreams завершает открытые потоки событий. Вызывается перед
// http.Server.Shutdown, иначе тот ждёт SSE-соединения до таймаута.
func (s *Server) CloseStreams() {
	s.closeOnce.Do(func() { close(s.closing) })
}

// Handler собирает маршруты.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.requestMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/sign-in", s.signIn)
			r.Post("/sign-out", s.signOut)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/me", s.me)
			r.Patch("/me", s.updateMe)
			r.Get("/events", s.events)

			r.Get("/products", s.listProducts)
			r.Patch("/products/{id}", s.editProduct)
			r.Delete("/products/{id}", s.deleteProduct)

			r.With(s.idempotent).Post("/orders", s.placeOrder)
			r.Get("/orders", s.listOrders)
			r.Patch("/orders/{id}", s.updateOrderStatus)
			r.Delete("/orders/{id}", s.deleteOrder)
			r.Get("/orders/{id}/timeline", s.orderTimeline)

			r.Get("/dashboard", s.dashboard)
			r.Get("/profile", s.profile)
		})
	})

	return r
}
