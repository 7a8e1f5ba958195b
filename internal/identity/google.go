// Package identity реализует вход через внешних провайдеров.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
	"github.com/vladislavdragonenkov/blackstore/internal/version"
)

// DefaultTokenInfoURL — endpoint проверки Google ID token.
const DefaultTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// GoogleProvider проверяет Google ID token через tokeninfo и достаёт из него профиль.
type GoogleProvider struct {
	clientID     string
	tokenInfoURL string
	httpClient   *http.Client
	logger       *log.Entry
}

// NewGoogleProvider создаёт провайдер. tokenInfoURL можно оставить пустым.
func NewGoogleProvider(clientID, tokenInfoURL string, httpClient *http.Client, logger *log.Entry) *GoogleProvider {
	if tokenInfoURL == "" {
		tokenInfoURL = DefaultTokenInfoURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = log.WithField("component", "google-identity")
	}
	return &GoogleProvider{
		clientID:     clientID,
		tokenInfoURL: tokenInfoURL,
		httpClient:   httpClient,
		logger:       logger,
	}
}

type tokenInfo struct {
	Aud     string `json:"aud"`
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Authenticate проверяет ID token. Пустой токен означает, что пользователь закрыл окно входа.
func (p *GoogleProvider) Authenticate(ctx context.Context, credential string) (domain.Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return domain.Identity{}, domain.ErrSignInCancelled
	}

	endpoint := p.tokenInfoURL + "?id_token=" + url.QueryEscape(credential)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("create tokeninfo request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: send tokeninfo request: %w", domain.ErrSignInFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Identity{}, fmt.Errorf("%w: tokeninfo status %d", domain.ErrSignInFailed, resp.StatusCode)
	}

	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: decode tokeninfo: %w", domain.ErrSignInFailed, err)
	}
	if info.Aud != p.clientID {
		return domain.Identity{}, fmt.Errorf("%w: token was not issued for this application", domain.ErrSignInFailed)
	}
	if info.Sub == "" {
		return domain.Identity{}, errors.Join(domain.ErrSignInFailed, errors.New("token has no subject"))
	}

	return domain.Identity{
		ID:          info.Sub,
		DisplayName: info.Name,
		Email:       info.Email,
		PhotoURL:    info.Picture,
	}, nil
}

// SignOut у Google нечего отзывать: ID token живёт до истечения срока.
func (p *GoogleProvider) SignOut(_ context.Context, identity domain.Identity) error {
	p.logger.WithField("user_id", identity.ID).Debug("google sign-out")
	return nil
}

var _ domain.IdentityProvider = (*GoogleProvider)(nil)
