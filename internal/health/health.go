// Package health отдаёт состояние компонентов сервиса для probe-эндпоинтов.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vladislavdragonenkov/blackstore/internal/version"
)

const defaultCheckTimeout = 2 * time.Second

// Status описывает состояние компонента.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// Check хранит результат одной проверки.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Critical   bool   `json:"critical"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response отдаётся на /healthz.
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Build         version.Build    `json:"build"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

type probe struct {
	fn       func(context.Context) error
	critical bool
}

// Handler собирает проверки компонентов.
type Handler struct {
	mu        sync.RWMutex
	probes    map[string]probe
	timeout   time.Duration
	startTime time.Time
	draining  atomic.Bool
}

// NewHandler создаёт обработчик без проверок.
func NewHandler() *Handler {
	return &Handler{
		probes:    make(map[string]probe),
		timeout:   defaultCheckTimeout,
		startTime: time.Now(),
	}
}

// Register добавляет проверку. Падение критичной проверки делает сервис
// unhealthy и неготовым, некритичной — только degraded.
func (h *Handler) Register(name string, critical bool, fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[name] = probe{fn: fn, critical: critical}
}

// Drain переводит readiness в «не готов» на время остановки.
func (h *Handler) Drain() {
	h.draining.Store(true)
}

// Run выполняет все проверки параллельно.
func (h *Handler) Run(ctx context.Context) (Status, map[string]Check) {
	h.mu.RLock()
	probes := make(map[string]probe, len(h.probes))
	for name, p := range h.probes {
		probes[name] = p
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]Check, len(probes))
	)
	for name, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			check := runProbe(ctx, name, p)
			mu.Lock()
			checks[name] = check
			mu.Unlock()
		}()
	}
	wg.Wait()

	overall := StatusHealthy
	for _, c := range checks {
		switch {
		case c.Status == StatusUnhealthy:
			overall = StatusUnhealthy
		case c.Status == StatusDegraded && overall == StatusHealthy:
			overall = StatusDegraded
		}
	}
	return overall, checks
}

func runProbe(ctx context.Context, name string, p probe) Check {
	start := time.Now()
	err := p.fn(ctx)
	check := Check{
		Name:       name,
		Status:     StatusHealthy,
		Critical:   p.critical,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		check.Message = err.Error()
		check.Status = StatusDegraded
		if p.critical {
			check.Status = StatusUnhealthy
		}
	}
	return check
}

// ServeHTTP отдаёт подробный отчёт; 503 при unhealthy.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status, checks := h.Run(r.Context())
	code := http.StatusOK
	if status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Response{
		Status:        status,
		Timestamp:     time.Now().UTC(),
		Checks:        checks,
		Build:         version.Info(),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}

// Readiness отвечает 503, пока идёт остановка или упала критичная проверка.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		http.Error(w, "draining", http.StatusServiceUnavailable)
		return
	}
	if status, _ := h.Run(r.Context()); status == StatusUnhealthy {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("ready"))
}

// Liveness всегда отвечает 200.
func Liveness(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}
