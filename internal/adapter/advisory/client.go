// Package advisory calls the external advisory text generator over HTTP.
package advisory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	core "github.com/couchcryptid/heat-insight-engine/internal/advisory"
	"github.com/couchcryptid/heat-insight-engine/internal/domain"
)

const generatePath = "/advisories"

var _ core.Generator = (*Client)(nil)

// Option configures a Client.
type Option func(*resty.Client)

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *resty.Client) {
		if token != "" {
			c.SetAuthToken(token)
		}
	}
}

// WithRetries retries transport failures up to n times.
func WithRetries(n int) Option {
	return func(c *resty.Client) {
		c.SetRetryCount(n).
			SetRetryWaitTime(250 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second)
	}
}

// Client implements advisory.Generator against a JSON endpoint that accepts
// {"locality": name} and answers with a list of recommendations.
type Client struct {
	httpClient *resty.Client
	logger     *slog.Logger
}

type generateRequest struct {
	Locality string `json:"locality"`
}

// NewClient creates a generator client for baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	for _, opt := range opts {
		opt(client)
	}
	return &Client{httpClient: client, logger: logger}
}

// Generate requests advisories for locality. A response that fails
// validation yields an error matching advisory.ErrParseFailed.
func (c *Client) Generate(ctx context.Context, locality string) ([]domain.Advisory, error) {
	start := time.Now()
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(generateRequest{Locality: locality}).
		Post(generatePath)
	if err != nil {
		return nil, fmt.Errorf("advisory request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("advisory API error: status %d", resp.StatusCode())
	}

	items, err := core.Decode(resp.Body())
	if err != nil {
		c.logger.Warn("advisory response rejected",
			"locality", locality,
			"status", resp.StatusCode(),
			"error", err,
		)
		return nil, err
	}
	c.logger.Debug("advisories generated",
		"locality", locality,
		"count", len(items),
		"duration", time.Since(start),
	)
	return items, nil
}
