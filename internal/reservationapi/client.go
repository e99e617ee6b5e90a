// Package reservationapi talks to the reservation list and status endpoints.
package reservationapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tablebook/internal/models"
)

const (
	codeOK = 200

	cacheVersionKey = "reservations:version"
)

// APIError is a non-success envelope code.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("request failed with code %d", e.Code)
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d", e.StatusCode)
}

// RetryConfig holds retry settings for page fetches.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		RetryDelays: []time.Duration{
			200 * time.Millisecond,
			1 * time.Second,
		},
	}
}

// Client implements the paged query and status update collaborators over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	location   *time.Location
	logger     *zerolog.Logger

	limiter *rate.Limiter
	retry   RetryConfig

	redis    *redis.Client
	cacheTTL time.Duration
}

// envelope is the common response shape of both endpoints.
type envelope struct {
	Code  int             `json:"code"`
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
	Msg   string          `json:"msg,omitempty"`
}

type statusRequest struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
}

// NewClient constructs a client. Zone-less timestamps are read in loc (time.Local when nil).
func NewClient(baseURL, apiKey string, timeout time.Duration, loc *time.Location, logger *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		location:   loc,
		logger:     logger,
		retry:      DefaultRetryConfig(),
	}
}

// UseRedisCache configures optional Redis caching for page queries.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// UseRateLimit limits outgoing requests to perSecond with the given burst.
func (c *Client) UseRateLimit(perSecond float64, burst int) {
	if perSecond <= 0 {
		c.limiter = nil
		return
	}
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// SetRetry replaces the retry settings for page fetches.
func (c *Client) SetRetry(cfg RetryConfig) {
	c.retry = cfg
}

// FetchPage runs one paged query.
func (c *Client) FetchPage(ctx context.Context, q models.PageQuery) (*models.Page, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("pageSize", strconv.Itoa(q.PageSize))
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Date != nil {
		params.Set("date", models.DateKeyOf(*q.Date, c.location))
	}
	endpoint := fmt.Sprintf("%s/api/reservations?%s", c.baseURL, params.Encode())

	var env envelope
	cacheKey := ""
	if c.cacheEnabled() {
		cacheKey = fmt.Sprintf("reservations:v%d:%s", c.cacheVersion(ctx), params.Encode())
	}
	if cacheKey == "" || q.Fresh || !c.readCache(ctx, cacheKey, &env) {
		if err := c.getWithRetry(ctx, endpoint, &env); err != nil {
			return nil, err
		}
		if env.Code != codeOK {
			return nil, &APIError{Code: env.Code, Msg: env.Msg}
		}
		if cacheKey != "" {
			c.writeCache(ctx, cacheKey, env)
		}
	}

	var wire []wireReservation
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &wire); err != nil {
			return nil, fmt.Errorf("decode reservations: %w", err)
		}
	}

	page := &models.Page{Total: env.Total, Records: make([]models.Reservation, 0, len(wire))}
	for i := range wire {
		page.Records = append(page.Records, wire[i].toModel(c.location))
	}
	return page, nil
}

// UpdateStatus sets the status of one reservation and returns the updated record.
func (c *Client) UpdateStatus(ctx context.Context, id string, status models.ReservationStatus) (*models.Reservation, error) {
	endpoint := fmt.Sprintf("%s/api/reservations/%s/status", c.baseURL, url.PathEscape(id))

	var env envelope
	if err := c.doJSON(ctx, http.MethodPut, endpoint, statusRequest{ID: id, Status: int(status)}, &env); err != nil {
		return nil, err
	}
	if env.Code != codeOK {
		return nil, &APIError{Code: env.Code, Msg: env.Msg}
	}
	c.bumpCacheVersion(ctx)

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}
	var w wireReservation
	if err := json.Unmarshal(env.Data, &w); err != nil {
		return nil, fmt.Errorf("decode reservation: %w", err)
	}
	r := w.toModel(c.location)
	return &r, nil
}

func (c *Client) getWithRetry(ctx context.Context, endpoint string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		err := c.doJSON(ctx, http.MethodGet, endpoint, nil, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) || attempt == c.retry.MaxRetries || ctx.Err() != nil {
			break
		}

		delay := time.Second
		if attempt < len(c.retry.RetryDelays) {
			delay = c.retry.RetryDelays[attempt]
		}
		c.logger.Warn().Err(err).Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying reservations request")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// retryable reports whether err is a transport failure or a 5xx.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	var de *decodeError
	if errors.As(err, &de) {
		return false
	}
	var le *limitError
	return !errors.As(err, &le)
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decode response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// limitError means the limiter could not admit the request before the deadline.
type limitError struct{ err error }

func (e *limitError) Error() string { return "rate limit: " + e.err.Error() }
func (e *limitError) Unwrap() error { return e.err }

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &limitError{err: err}
		}
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.addHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("url", endpoint).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("reservations api call")

	if resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &decodeError{err: err}
	}
	return nil
}

func (c *Client) addHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *Client) cacheEnabled() bool {
	return c.redis != nil && c.cacheTTL > 0
}

// cacheVersion is part of every page cache key; bumping it orphans all cached pages.
func (c *Client) cacheVersion(ctx context.Context) int64 {
	v, err := c.redis.Get(ctx, cacheVersionKey).Int64()
	if err != nil {
		return 0
	}
	return v
}

func (c *Client) bumpCacheVersion(ctx context.Context) {
	if !c.cacheEnabled() {
		return
	}
	if err := c.redis.Incr(ctx, cacheVersionKey).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to invalidate reservations cache")
	}
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

// HealthCheck checks if the reservations API is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/healthz", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}
