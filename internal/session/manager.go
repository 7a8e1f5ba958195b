package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/blackstore/internal/catalog"
	"github.com/vladislavdragonenkov/blackstore/internal/domain"
	"github.com/vladislavdragonenkov/blackstore/internal/metrics"
	"github.com/vladislavdragonenkov/blackstore/internal/realtime"
)

const (
	defaultTTL           = 24 * time.Hour
	defaultSweepInterval = time.Minute
	issuer               = "blackstore"
)

// ErrSecretRequired возвращается, если не задан секрет подписи токенов.
var ErrSecretRequired = errors.New("session secret is required")

// ProfileStore — операции с профилем, нужные сессии.
type ProfileStore interface {
	EnsureUser(ctx context.Context, identity domain.Identity) (domain.User, error)
	Get(ctx context.Context, id string) (domain.User, error)
}

// Config задаёт параметры менеджера сессий.
type Config struct {
	Secret        string
	TTL           time.Duration
	SweepInterval time.Duration
}

// Manager выдаёт и проверяет сессии.
type Manager struct {
	provider domain.IdentityProvider
	profiles ProfileStore
	catalog  domain.CatalogSource
	broker   realtime.Broker
	metrics  *metrics.StoreMetrics
	logger   *log.Entry
	now      func() time.Time

	secret        []byte
	ttl           time.Duration
	sweepInterval time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Claims — содержимое токена сессии: ID сессии в jti, пользователь в sub.
type Claims struct {
	jwt.RegisteredClaims
}

// NewManager создаёт менеджер сессий.
func NewManager(cfg Config, provider domain.IdentityProvider, profiles ProfileStore, source domain.CatalogSource, broker realtime.Broker, m *metrics.StoreMetrics, logger *log.Entry) (*Manager, error) {
	if cfg.Secret == "" {
		return nil, ErrSecretRequired
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if logger == nil {
		logger = log.WithField("component", "session-manager")
	}
	return &Manager{
		provider:      provider,
		profiles:      profiles,
		catalog:       source,
		broker:        broker,
		metrics:       m,
		logger:        logger,
		now:           time.Now,
		secret:        []byte(cfg.Secret),
		ttl:           cfg.TTL,
		sweepInterval: cfg.SweepInterval,
		sessions:      make(map[string]*Session),
	}, nil
}

// SignIn проводит вход через провайдера. При успехе создаёт профиль (или
// обновляет аватар), открывает подписку на профиль и возвращает токен сессии.
// Если previousToken указывает на живую сессию, она завершается: новая
// сессия заменяет прежнюю, в том числе при смене пользователя.
func (m *Manager) SignIn(ctx context.Context, credential, previousToken string) (string, *Session, error) {
	identity, err := m.provider.Authenticate(ctx, credential)
	if err != nil {
		if errors.Is(err, domain.ErrSignInCancelled) {
			m.metrics.RecordSignIn(metrics.ResultCancelled)
		} else {
			m.metrics.RecordSignIn(metrics.ResultFailure)
		}
		m.logger.WithError(err).Warn("sign-in failed")
		return "", nil, err
	}

	if _, err := m.profiles.EnsureUser(ctx, identity); err != nil {
		m.metrics.RecordSignIn(metrics.ResultFailure)
		return "", nil, fmt.Errorf("ensure user profile: %w", err)
	}

	if previousToken != "" {
		if previous, err := m.Lookup(previousToken); err == nil {
			m.logger.WithFields(log.Fields{
				"session_id":    previous.ID(),
				"previous_user": previous.UserID(),
				"user_id":       identity.ID,
			}).Info("replacing previous session")
			m.end(previous)
		}
	}

	session, err := m.open(identity)
	if err != nil {
		m.metrics.RecordSignIn(metrics.ResultFailure)
		return "", nil, err
	}

	token, err := m.sign(session)
	if err != nil {
		m.end(session)
		m.metrics.RecordSignIn(metrics.ResultFailure)
		return "", nil, err
	}

	m.metrics.RecordSignIn(metrics.ResultSuccess)
	m.logger.WithFields(log.Fields{
		"session_id": session.ID(),
		"user_id":    identity.ID,
	}).Info("signed in")
	return token, session, nil
}

func (m *Manager) open(identity domain.Identity) (*Session, error) {
	ctx, cancel := context.WithCancel(context.Background())
	session := &Session{
		id:        uuid.NewString(),
		identity:  identity,
		expiresAt: m.now().Add(m.ttl),
		catalog:   catalog.NewView(m.catalog),
		cancel:    cancel,
		done:      make(chan struct{}),
		ended:     make(chan struct{}),
	}

	sub, err := m.broker.Subscribe(ctx, realtime.UserPath(identity.ID))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe to profile: %w", err)
	}

	load := func(ctx context.Context) (domain.User, error) {
		return m.profiles.Get(ctx, identity.ID)
	}
	go session.follow(ctx, sub, load, m.logger.WithField("session_id", session.id))

	m.mu.Lock()
	m.sessions[session.id] = session
	active := len(m.sessions)
	m.mu.Unlock()
	m.metrics.SetActiveSessions(active)

	return session, nil
}

func (m *Manager) sign(session *Session) (string, error) {
	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.id,
			Issuer:    issuer,
			Subject:   session.identity.ID,
			ExpiresAt: jwt.NewNumericDate(session.expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// Lookup проверяет токен и возвращает живую сессию.
func (m *Manager) Lookup(token string) (*Session, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil || !parsed.Valid {
		return nil, domain.ErrSessionNotFound
	}

	m.mu.RLock()
	session, ok := m.sessions[claims.ID]
	m.mu.RUnlock()
	if !ok || session.identity.ID != claims.Subject || !m.now().Before(session.expiresAt) {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// SignOut завершает сессию. Ошибки провайдера только логируются; неизвестный
// токен не считается ошибкой.
func (m *Manager) SignOut(ctx context.Context, token string) {
	session, err := m.Lookup(token)
	if err != nil {
		return
	}
	if err := m.provider.SignOut(ctx, session.Identity()); err != nil {
		m.logger.WithError(err).WithField("user_id", session.UserID()).Warn("provider sign-out failed")
	}
	m.end(session)
	m.logger.WithFields(log.Fields{
		"session_id": session.ID(),
		"user_id":    session.UserID(),
	}).Info("signed out")
}

// Active возвращает число живых сессий.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Run периодически закрывает истёкшие сессии до отмены ctx, после чего закрывает все.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.WithField("expired", n).Info("expired sessions closed")
			}
		}
	}
}

// Sweep закрывает истёкшие сессии и возвращает их число.
func (m *Manager) Sweep() int {
	now := m.now()

	m.mu.RLock()
	expired := make([]*Session, 0)
	for _, session := range m.sessions {
		if !now.Before(session.expiresAt) {
			expired = append(expired, session)
		}
	}
	m.mu.RUnlock()

	for _, session := range expired {
		m.end(session)
	}
	return len(expired)
}

func (m *Manager) closeAll() {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		all = append(all, session)
	}
	m.mu.RUnlock()

	for _, session := range all {
		m.end(session)
	}
}

func (m *Manager) end(session *Session) {
	m.mu.Lock()
	delete(m.sessions, session.id)
	active := len(m.sessions)
	m.mu.Unlock()

	session.finish()
	m.metrics.SetActiveSessions(active)
}
