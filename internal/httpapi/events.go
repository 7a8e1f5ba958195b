package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vladislavdragonenkov/blackstore/internal/realtime"
)

const (
	scopeProfile = "profile"
	scopeOrders  = "orders"
)

// events транслирует изменения профиля или заказов пользователя как
// Server-Sent Events до отключения клиента или завершения сессии.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var path string
	switch scope := r.URL.Query().Get("scope"); scope {
	case "", scopeProfile:
		path = realtime.UserPath(sess.UserID())
	case scopeOrders:
		path = realtime.OrdersPath(sess.UserID())
	default:
		s.writeError(w, r, fmt.Errorf("%w: unknown scope %q", errBadRequest, scope))
		return
	}

	sub, err := s.broker.Subscribe(r.Context(), path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer sub.Close()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.WithError(err).Warn("streaming is not supported by response writer")
		return
	}

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sess.Done():
			return
		case <-s.closing:
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case change, ok := <-sub.Changes():
			if !ok || ended(sess.Done()) {
				return
			}
			payload, err := json.Marshal(change)
			if err != nil {
				s.logger.WithError(err).Warn("failed to encode change")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", change.Kind, payload); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func ended(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}
