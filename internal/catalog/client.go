// Package catalog загружает товары из удалённого каталога и хранит их
// локальную копию для сессии.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
	"github.com/vladislavdragonenkov/blackstore/internal/metrics"
	"github.com/vladislavdragonenkov/blackstore/internal/version"
)

const (
	// DefaultURL — публичный каталог по умолчанию.
	DefaultURL     = "https://fakestoreapi.com/products"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

// Client читает каталог одним GET-запросом: без пагинации и серверных фильтров.
type Client struct {
	url        string
	httpClient *http.Client
	timeout    time.Duration
	logger     *log.Entry
	metrics    *metrics.StoreMetrics
}

// ClientOption настраивает Client.
type ClientOption func(*Client)

// WithHTTPClient подменяет HTTP-клиент.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithTimeout задаёт таймаут одного запроса.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(cl *Client) {
		if timeout > 0 {
			cl.timeout = timeout
		}
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) ClientOption {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// WithMetrics задаёт метрики загрузок.
func WithMetrics(m *metrics.StoreMetrics) ClientOption {
	return func(cl *Client) {
		cl.metrics = m
	}
}

// NewClient создаёт клиента каталога. Пустой url заменяется на DefaultURL.
func NewClient(url string, options ...ClientOption) *Client {
	if url == "" {
		url = DefaultURL
	}
	c := &Client{
		url:        url,
		httpClient: http.DefaultClient,
		timeout:    defaultTimeout,
		logger:     log.WithField("component", "catalog-client"),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Products загружает полный список товаров.
func (c *Client) Products(ctx context.Context) ([]domain.Product, error) {
	started := time.Now()
	products, err := c.fetch(ctx)
	if err != nil {
		c.metrics.RecordCatalogFetch(metrics.ResultFailure, time.Since(started))
		c.logger.WithError(err).WithField("url", c.url).Warn("catalog fetch failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	c.metrics.RecordCatalogFetch(metrics.ResultSuccess, time.Since(started))
	c.logger.WithField("products", len(products)).Debug("catalog loaded")
	return products, nil
}

func (c *Client) fetch(ctx context.Context) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var products []domain.Product
	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

var _ domain.CatalogSource = (*Client)(nil)
