package woocommerce

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
	"strings"
	"time"

	"SellerHub/pkg/logger"

	"github.com/rs/zerolog"
)

type Config struct {
	BaseURL     string // https://shop.example.com
	ConsumerKey string
	ConsumerSec string
	HTTPClient  *http.Client
	RetryDelay  time.Duration
}

// Client is a WooCommerce REST v3 client.
type Client struct {
	log        zerolog.Logger
	cfg        Config
	http       *http.Client
	apiBase    string
	useQueryKs bool
}

func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{
		log:     logger.Component("woocommerce"),
		cfg:     cfg,
		http:    cfg.HTTPClient,
		apiBase: base + "/wp-json/wc/v3",
		// WooCommerce only accepts basic auth over HTTPS.
		useQueryKs: !strings.HasPrefix(strings.ToLower(base), "https://"),
	}
}

// APIError is a non-2xx answer from WooCommerce.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("woocommerce: status %d: %s", e.Status, e.Message)
}

func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status, Message: strings.TrimSpace(string(body))}
	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Message != "" {
		e.Code = parsed.Code
		e.Message = parsed.Message
	}
	return e
}

func isRetriable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// do runs one request; 429 and 5xx are retried once after RetryDelay.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) (http.Header, error) {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}
	if query == nil {
		query = url.Values{}
	}
	if c.useQueryKs {
		query.Set("consumer_key", c.cfg.ConsumerKey)
		query.Set("consumer_secret", c.cfg.ConsumerSec)
	}
	u := c.apiBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	for attempt := 0; ; attempt++ {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if !c.useQueryKs {
			req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSec)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http error: %w", err)
		}
		respBytes, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := newAPIError(resp.StatusCode, respBytes)
			if attempt == 0 && isRetriable(resp.StatusCode) && ctx.Err() == nil {
				c.log.Warn().Str("path", path).Int("status", resp.StatusCode).Msg("retrying after upstream error")
				sleepWithContext(ctx, c.cfg.RetryDelay)
				continue
			}
			return resp.Header, apiErr
		}
		if out != nil && len(bytes.TrimSpace(respBytes)) > 0 {
			if err := json.Unmarshal(respBytes, out); err != nil {
				return resp.Header, fmt.Errorf("decode %s: %w", path, err)
			}
		}
		return resp.Header, nil
	}
}

func headerInt(h http.Header, key string) int {
	if h == nil {
		return 0
	}
	n, _ := strconv.Atoi(h.Get(key))
	return n
}

// Ping checks credentials with a cheap request.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/system_status", nil, nil, nil)
	return err
}
