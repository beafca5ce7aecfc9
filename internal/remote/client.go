package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxRetries  = 3
	initialRetryDelay  = 500 * time.Millisecond
	maxRetryDelay      = 10 * time.Second
	retryBackoffFactor = 2

	idempotencyHeader = "Idempotency-Key"
)

// ClientConfig configures the HTTP gateway.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// Client is the HTTP implementation of Gateway.
//
// Endpoints, relative to BaseURL:
//
//	GET    /api/users/{userID}/favorites
//	POST   /api/users/{userID}/favorites           {"itemId": "..."}
//	DELETE /api/users/{userID}/favorites/{itemID}
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
	retryDelay time.Duration
	log        zerolog.Logger
}

// NewClient creates a favorites backend client
func NewClient(cfg ClientConfig, log zerolog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("remote base URL is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid remote base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    base,
		maxRetries: retries,
		retryDelay: initialRetryDelay,
		log:        log,
	}, nil
}

type addRequest struct {
	ItemID string `json:"itemId"`
}

type listResponse struct {
	Favorites []Favorite `json:"favorites"`
}

// FetchAll returns the user's complete favorites list in backend order.
func (c *Client) FetchAll(ctx context.Context) ([]Favorite, error) {
	endpoint, err := c.favoritesURL(ctx)
	if err != nil {
		return nil, err
	}

	var out listResponse
	err = c.withRetry(ctx, "fetch", func() error {
		return c.do(ctx, http.MethodGet, endpoint, nil, "", &out)
	})
	if err != nil {
		return nil, err
	}
	if out.Favorites == nil {
		out.Favorites = []Favorite{}
	}
	return out.Favorites, nil
}

// Add marks itemID as favorite for the user in the context.
func (c *Client) Add(ctx context.Context, itemID string) error {
	endpoint, err := c.favoritesURL(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(addRequest{ItemID: itemID})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	// One key for all attempts so a retried add is applied once.
	key := uuid.NewString()
	return c.withRetry(ctx, "add", func() error {
		return c.do(ctx, http.MethodPost, endpoint, body, key, nil)
	})
}

// Remove unmarks itemID for the user in the context. Removing an item the
// backend does not know is not an error.
func (c *Client) Remove(ctx context.Context, itemID string) error {
	endpoint, err := c.favoritesURL(ctx)
	if err != nil {
		return err
	}
	endpoint += "/" + url.PathEscape(itemID)

	key := uuid.NewString()
	return c.withRetry(ctx, "remove", func() error {
		err := c.do(ctx, http.MethodDelete, endpoint, nil, key, nil)
		if errors.Is(err, errNotFound) {
			return nil
		}
		return err
	})
}

func (c *Client) favoritesURL(ctx context.Context) (string, error) {
	userID, ok := UserFrom(ctx)
	if !ok {
		return "", ErrNoUser
	}
	return c.baseURL + "/api/users/" + url.PathEscape(userID) + "/favorites", nil
}

func (c *Client) withRetry(ctx context.Context, op string, call func() error) error {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.calculateRetryDelay(attempt)
			c.log.Debug().Str("op", op).Int("attempt", attempt+1).Dur("delay", delay).Err(lastErr).Msg("retrying remote call")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = call()
		if lastErr == nil {
			return nil
		}

		// Only retry on rate limits or server errors
		if !isRetryableError(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

var errNotFound = errors.New("not found")

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, idempotencyKey string, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set(idempotencyHeader, idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode == http.StatusNotFound && method == http.MethodDelete:
		return errNotFound
	case resp.StatusCode >= 500:
		return &ServerError{StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) calculateRetryDelay(attempt int) time.Duration {
	delay := c.retryDelay
	for i := 1; i < attempt; i++ {
		delay *= time.Duration(retryBackoffFactor)
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

func isRetryableError(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var serverErr *ServerError
	return errors.As(err, &serverErr)
}
