package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/blackstore/internal/health"
)

// opsHandler — служебные эндпоинты: метрики и probe'ы.
func opsHandler(h *health.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /healthz", h)
	mux.HandleFunc("GET /readyz", h.Readiness)
	mux.HandleFunc("GET /livez", health.Liveness)
	return mux
}

// startOpsServer поднимает сервер метрик; ошибка bind возвращается сразу.
func startOpsServer(addr string, h *health.Handler, logger *log.Entry) (*http.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics %s: %w", addr, err)
	}
	srv := &http.Server{Handler: opsHandler(h), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.WithField("addr", lis.Addr().String()).Info("metrics and probes listening: /metrics /healthz /readyz /livez")
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()
	return srv, nil
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
