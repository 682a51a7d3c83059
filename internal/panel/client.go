package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"viewbot/internal/domain"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single order call
const DefaultTimeout = 10 * time.Second

// Config holds the SMM panel API settings
type Config struct {
	URL       string
	APIKey    string
	ServiceID string
	Timeout   time.Duration
}

// Client places view orders on the SMM panel
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a panel client
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type orderResponse struct {
	Order json.RawMessage `json:"order"`
	Error json.RawMessage `json:"error"`
}

// PlaceOrder makes exactly one call to the panel. It never retries:
// the call has external effects, so retrying is the caller's decision.
// Transport failures and timeouts come back as a rejection.
func (c *Client) PlaceOrder(ctx context.Context, link string, quantity int) domain.OrderResult {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	form := url.Values{}
	form.Set("key", c.cfg.APIKey)
	form.Set("action", "add")
	form.Set("service", c.cfg.ServiceID)
	form.Set("link", link)
	form.Set("quantity", strconv.Itoa(quantity))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.OrderRejected(fmt.Sprintf("network error: %v", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Panel request failed", zap.Error(err))
		return domain.OrderRejected(fmt.Sprintf("network error: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.OrderRejected(fmt.Sprintf("network error: %v", err))
	}

	return parseOrderResponse(resp.StatusCode, body)
}

// parseOrderResponse treats anything other than an "order" without an
// "error" as a rejection
func parseOrderResponse(status int, body []byte) domain.OrderResult {
	var parsed orderResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.OrderRejected(fmt.Sprintf("unexpected panel response (HTTP %d): %s", status, truncate(string(body), 200)))
	}

	if len(parsed.Error) > 0 && string(parsed.Error) != "null" {
		return domain.OrderRejected(rawText(parsed.Error))
	}

	orderID := rawText(parsed.Order)
	if orderID == "" || orderID == "null" {
		return domain.OrderRejected(fmt.Sprintf("panel returned no order id (HTTP %d): %s", status, truncate(string(body), 200)))
	}

	return domain.OrderAccepted(orderID)
}

// rawText unquotes JSON strings and returns other values verbatim
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
