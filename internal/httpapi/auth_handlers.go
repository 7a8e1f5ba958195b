package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
	"github.com/vladislavdragonenkov/blackstore/internal/session"
)

const profileWait = 2 * time.Second

type signInRequest struct {
	Credential string `json:"credential" validate:"required"`
}

type sessionResponse struct {
	Token     string          `json:"token,omitempty"`
	ExpiresAt time.Time       `json:"expires_at"`
	Identity  domain.Identity `json:"identity"`
	Profile   *domain.User    `json:"profile"`
	Loading   bool            `json:"loading"`
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=100"`
}

func newSessionResponse(sess *session.Session) sessionResponse {
	resp := sessionResponse{
		ExpiresAt: sess.ExpiresAt().UTC(),
		Identity:  sess.Identity(),
		Loading:   true,
	}
	if profile, loaded := sess.Profile(); loaded {
		resp.Profile = &profile
		resp.Loading = false
	}
	return resp
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	token, sess, err := s.sessions.SignIn(r.Context(), req.Credential, bearerToken(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Первый снимок профиля обычно приходит сразу; если нет, клиент увидит loading=true.
	waitCtx, cancel := context.WithTimeout(r.Context(), profileWait)
	sess.WaitLoaded(waitCtx)
	cancel()

	resp := newSessionResponse(sess)
	resp.Token = token
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		s.sessions.SignOut(r.Context(), token)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSessionResponse(sessionFrom(r.Context())))
}

func (s *Server) updateMe(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.profiles.UpdateDisplayName(r.Context(), sessionFrom(r.Context()).UserID(), req.DisplayName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
