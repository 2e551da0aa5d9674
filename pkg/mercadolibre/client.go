package mercadolibre

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// TokenSource hands out bearer tokens. *TokenManager implements it.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context, stale string) (string, error)
}

type Config struct {
	BaseURL     string
	SellerID    string
	MinInterval time.Duration // minimum gap between two upstream calls
	HTTPClient  *http.Client
	Tokens      TokenSource
}

// Client talks to the MercadoLibre REST API on behalf of one seller.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	limiter *rate.Limiter

	mu       sync.RWMutex
	sellerID string
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.mercadolibre.com"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 20 * time.Second}
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	return &Client{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		http:     cfg.HTTPClient,
		tokens:   cfg.Tokens,
		limiter:  rate.NewLimiter(limit, 1),
		sellerID: cfg.SellerID,
	}
}

func (c *Client) SellerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sellerID
}

// ResolveSellerID fills the seller id from /users/me when it was not configured.
func (c *Client) ResolveSellerID(ctx context.Context) (string, error) {
	if id := c.SellerID(); id != "" {
		return id, nil
	}
	me, err := c.GetMe(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve seller id: %w", err)
	}
	id := fmt.Sprint(me.ID)
	c.mu.Lock()
	c.sellerID = id
	c.mu.Unlock()
	return id, nil
}

// do performs one API call. A 401 triggers a token refresh and exactly one retry.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if c.tokens == nil {
		return ErrNoToken
	}

	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, body)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("http error: %w", err)
		}
		respBytes, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read error: %w", err)
		}

		log.Debug().
			Str("component", "mercadolibre").
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Dur("latency", time.Since(start)).
			Msg("api call")

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			log.Warn().Str("component", "mercadolibre").Str("path", path).Msg("401 from api, refreshing token and retrying once")
			token, err = c.tokens.ForceRefresh(ctx, token)
			if err != nil {
				return fmt.Errorf("refresh after 401: %w", err)
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return newAPIError(resp.StatusCode, respBytes)
		}
		if out == nil || len(bytes.TrimSpace(respBytes)) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBytes, out); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		return nil
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, query url.Values, in, out any) error {
	return c.do(ctx, http.MethodPost, path, query, in, out)
}
