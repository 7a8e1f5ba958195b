package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

// errBadRequest — некорректный запрос, не прошедший разбор.
var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error     string       `json:"error"`
	RequestID string       `json:"request_id,omitempty"`
	Details   []fieldError `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError переводит ошибку в HTTP-ответ. Детали внутренних ошибок клиенту не отдаются.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)

	resp := errorResponse{
		Error:     message,
		RequestID: middleware.GetReqID(r.Context()),
	}
	var verr *validationError
	if errors.As(err, &verr) {
		resp.Details = verr.fields
	}

	entry := s.logger.WithError(err).WithFields(log.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	writeJSON(w, status, resp)
}

func statusFor(err error) (int, string) {
	var verr *validationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "request validation failed"
	case errors.Is(err, errBadRequest), domain.IsInvalidInput(err):
		return http.StatusBadRequest, err.Error()
	case domain.IsUnauthenticated(err):
		return http.StatusUnauthorized, err.Error()
	case domain.IsNotFound(err):
		return http.StatusNotFound, rootMessage(err)
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusUnprocessableEntity, domain.ErrIdempotencyHashMismatch.Error()
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		return http.StatusConflict, "request with the same idempotency key is already processing"
	case errors.Is(err, domain.ErrOrderExists), errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict, rootMessage(err)
	case errors.Is(err, domain.ErrCatalogUnavailable):
		return http.StatusBadGateway, domain.ErrCatalogUnavailable.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func rootMessage(err error) string {
	for _, target := range []error{domain.ErrUserNotFound, domain.ErrOrderNotFound, domain.ErrProductNotFound, domain.ErrOrderExists, domain.ErrUserExists} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}
