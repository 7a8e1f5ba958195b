package httpapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
)

// idempotent сохраняет ответ на запрос с Idempotency-Key и воспроизводит его
// при повторе. Ключ действует в пределах пользователя; повтор с другим телом
// отклоняется с 422, повтор во время обработки — с 409. Без заголовка запрос
// выполняется как обычно.
func (s *Server) idempotent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
		if s.idempotency == nil || rawKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			s.writeError(w, r, errBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		sess := sessionFrom(r.Context())
		key := sess.UserID() + ":" + rawKey
		logger := s.logger.WithField("idempotency_key", rawKey)

		record, err := s.idempotency.CreateProcessing(r.Context(), key, requestHash(r, sess.UserID(), body), s.now().UTC().Add(s.idempotencyTTL))
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) && record.Replayable():
				replay(w, record)
			case domain.IsIdempotencyConflict(err):
				s.writeError(w, r, err)
			default:
				logger.WithError(err).Warn("failed to create idempotency record")
				s.writeError(w, r, err)
			}
			return
		}

		rec := &capturingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if rec.status < http.StatusBadRequest {
			err = s.idempotency.MarkDone(r.Context(), key, rec.body.Bytes(), rec.status)
		} else {
			err = s.idempotency.MarkFailed(r.Context(), key, rec.body.Bytes(), rec.status)
		}
		if err != nil {
			logger.WithError(err).Warn("failed to store idempotent response")
		}
	})
}

func replay(w http.ResponseWriter, record domain.IdempotencyRecord) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(replayedHeader, "true")
	status := record.HTTPStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(record.ResponseBody)
}

func requestHash(r *http.Request, userID string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{0})
	h.Write([]byte(r.URL.Path))
	h.Write([]byte{0})
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// capturingWriter пропускает ответ клиенту и запоминает его копию.
type capturingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (c *capturingWriter) WriteHeader(status int) {
	if !c.wroteHeader {
		c.status = status
		c.wroteHeader = true
	}
	c.ResponseWriter.WriteHeader(status)
}

func (c *capturingWriter) Write(p []byte) (int, error) {
	c.wroteHeader = true
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}
