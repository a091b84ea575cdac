// Package webhook posts notifications to an HTTP callback as a form.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/proton-flux-alerts/internal/notify"
)

// maxLoggedBody bounds how much of a response body ends up in the logs.
const maxLoggedBody = 4 << 10

// Client implements notify.Notifier against a form-accepting endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a callback client. Each request is bounded by timeout and
// paced at ratePerSecond (zero disables pacing).
func NewClient(url string, timeout time.Duration, ratePerSecond float64, logger *slog.Logger) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: notify.NewLimiter(ratePerSecond),
		logger:  logger,
	}
}

func (c *Client) Name() string { return "webhook" }

// Notify posts alert_text, level and link. Any non-2xx status is an error.
func (c *Client) Notify(ctx context.Context, n notify.Notification) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	form := notify.CallbackForm(n)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("callback request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Info("callback response",
		"status", resp.StatusCode,
		"reason", http.StatusText(resp.StatusCode),
		"body", decodeBody(body),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback error: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

// decodeBody returns the parsed JSON document, or the raw text when the
// endpoint does not answer with JSON.
func decodeBody(body []byte) any {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return string(body)
	}
	return doc
}

var _ notify.Notifier = (*Client)(nil)
