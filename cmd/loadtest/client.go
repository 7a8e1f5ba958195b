package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vladislavdragonenkov/blackstore/internal/version"
)

const idempotencyHeader = "Idempotency-Key"

// apiClient — тонкий клиент REST API BlackStore для нагрузочного теста.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, httpClient *http.Client) *apiClient {
	return &apiClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// statusError — ответ с неожиданным HTTP-статусом.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

func (c *apiClient) signIn(ctx context.Context, credential string) (string, int, error) {
	var resp struct {
		Token string `json:"token"`
	}
	code, err := c.do(ctx, http.MethodPost, "/api/v1/auth/sign-in", "", nil,
		map[string]string{"credential": credential}, http.StatusOK, &resp)
	if err == nil && resp.Token == "" {
		err = fmt.Errorf("sign-in returned empty token")
	}
	return resp.Token, code, err
}

func (c *apiClient) placeOrder(ctx context.Context, token string, productID int64, quantity int, key string) (string, int, error) {
	var resp struct {
		Order struct {
			ID string `json:"id"`
		} `json:"order"`
	}
	headers := map[string]string{idempotencyHeader: key}
	code, err := c.do(ctx, http.MethodPost, "/api/v1/orders", token, headers,
		map[string]any{"product_id": productID, "quantity": quantity}, http.StatusCreated, &resp)
	if err == nil && resp.Order.ID == "" {
		err = fmt.Errorf("place order returned empty order id")
	}
	return resp.Order.ID, code, err
}

func (c *apiClient) updateStatus(ctx context.Context, token, orderID, status string) (int, error) {
	return c.do(ctx, http.MethodPatch, "/api/v1/orders/"+orderID, token, nil,
		map[string]string{"status": status}, http.StatusOK, nil)
}

func (c *apiClient) deleteOrder(ctx context.Context, token, orderID string) (int, error) {
	return c.do(ctx, http.MethodDelete, "/api/v1/orders/"+orderID+"?confirm=true", token, nil, nil, http.StatusNoContent, nil)
}

func (c *apiClient) do(ctx context.Context, method, path, token string, headers map[string]string, body any, want int, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}
