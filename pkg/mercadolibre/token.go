package mercadolibre

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNoToken        = errors.New("mercadolibre: no access token configured")
	ErrNoRefreshToken = errors.New("mercadolibre: no refresh token available")
)

// Token is an OAuth2 access/refresh pair as returned by /oauth/token.
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	Scope        string    `json:"scope"`
	UserID       int64     `json:"user_id"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"-"`
	// RefreshedAt is when the pair was last persisted, zero when unknown.
	RefreshedAt  time.Time `json:"-"`
}

// Remaining is the lifetime left at now. An unknown expiry counts as zero.
func (t Token) Remaining(now time.Time) time.Duration {
	if t.ExpiresAt.IsZero() {
		return 0
	}
	return t.ExpiresAt.Sub(now)
}

// TokenStore persists tokens between restarts. MercadoLibre rotates refresh
// tokens on every use, so the latest pair must be stored.
type TokenStore interface {
	LoadToken(ctx context.Context) (*Token, error)
	SaveToken(ctx context.Context, t Token) error
}

type TokenManagerConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string

	RefreshInterval time.Duration // periodic refresh, default 4h
	RefreshBefore   time.Duration // refresh when less than this remains, default 30m
	CheckInterval   time.Duration // Run loop tick, default 5m

	HTTPClient *http.Client
	Store      TokenStore
	Now        func() time.Time
}

// TokenStatus is a snapshot for the dashboard.
type TokenStatus struct {
	HasToken        bool          `json:"has_token"`
	HasRefreshToken bool          `json:"has_refresh_token"`
	ExpiresAt       *time.Time    `json:"expires_at"`
	Remaining       time.Duration `json:"remaining_ns"`
	RemainingText   string        `json:"remaining"`
	LastRefresh     *time.Time    `json:"last_refresh"`
	NeedsRefresh    bool          `json:"needs_refresh"`
	UserID          int64         `json:"user_id,omitempty"`
}

// TokenManager owns the seller's bearer token. It is safe for concurrent use;
// concurrent refreshes are coalesced into one upstream call.
type TokenManager struct {
	cfg TokenManagerConfig

	mu          sync.RWMutex
	token       Token
	lastRefresh time.Time

	group singleflight.Group
}

func NewTokenManager(cfg TokenManagerConfig, initial Token) *TokenManager {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 4 * time.Hour
	}
	if cfg.RefreshBefore <= 0 {
		cfg.RefreshBefore = 30 * time.Minute
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 5 * time.Minute
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = "https://api.mercadolibre.com/oauth/token"
	}
	return &TokenManager{cfg: cfg, token: initial}
}

// Load adopts the persisted token, if any. A stored pair always wins over the
// bootstrap values from the environment because the env refresh token has
// most likely been rotated already.
func (m *TokenManager) Load(ctx context.Context) error {
	if m.cfg.Store == nil {
		return nil
	}
	t, err := m.cfg.Store.LoadToken(ctx)
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	if t == nil || (t.AccessToken == "" && t.RefreshToken == "") {
		return nil
	}
	m.mu.Lock()
	m.token = *t
	m.lastRefresh = t.RefreshedAt
	m.mu.Unlock()
	log.Debug().Str("component", "mercadolibre").Time("expires_at", t.ExpiresAt).Time("refreshed_at", t.RefreshedAt).Msg("adopted stored token")
	return nil
}

func (m *TokenManager) snapshot() (Token, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.lastRefresh
}

func (m *TokenManager) canRefresh(t Token) bool {
	return t.RefreshToken != "" && m.cfg.ClientID != "" && m.cfg.ClientSecret != ""
}

// needsRefresh: less than RefreshBefore left, unknown expiry, or RefreshInterval
// elapsed since the last refresh.
func (m *TokenManager) needsRefresh(t Token, lastRefresh, now time.Time) bool {
	if t.AccessToken == "" || t.ExpiresAt.IsZero() {
		return true
	}
	if t.Remaining(now) < m.cfg.RefreshBefore {
		return true
	}
	return !lastRefresh.IsZero() && now.Sub(lastRefresh) >= m.cfg.RefreshInterval
}

// AccessToken returns a usable bearer token, refreshing proactively when due.
func (m *TokenManager) AccessToken(ctx context.Context) (string, error) {
	t, last := m.snapshot()
	now := m.cfg.Now()
	if !m.needsRefresh(t, last, now) || !m.canRefresh(t) {
		if t.AccessToken == "" {
			return "", ErrNoToken
		}
		return t.AccessToken, nil
	}

	nt, err := m.Refresh(ctx)
	if err != nil {
		if t.AccessToken != "" && (t.ExpiresAt.IsZero() || t.Remaining(now) > 0) {
			log.Warn().Str("component", "mercadolibre").Err(err).Msg("proactive refresh failed, using current token")
			return t.AccessToken, nil
		}
		return "", err
	}
	return nt.AccessToken, nil
}

// ForceRefresh is used after a 401. When another caller already replaced the
// stale token, the new one is returned without a second refresh.
func (m *TokenManager) ForceRefresh(ctx context.Context, stale string) (string, error) {
	t, _ := m.snapshot()
	if t.AccessToken != "" && t.AccessToken != stale {
		return t.AccessToken, nil
	}
	nt, err := m.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return nt.AccessToken, nil
}

// Refresh exchanges the refresh token for a new pair.
func (m *TokenManager) Refresh(ctx context.Context) (Token, error) {
	v, err, shared := m.group.Do("refresh", func() (any, error) {
		return m.refresh(ctx)
	})
	if err != nil {
		return Token{}, err
	}
	if shared {
		log.Debug().Str("component", "mercadolibre").Msg("joined in-flight token refresh")
	}
	return v.(Token), nil
}

func (m *TokenManager) refresh(ctx context.Context) (Token, error) {
	cur, _ := m.snapshot()
	if cur.RefreshToken == "" {
		return Token{}, ErrNoRefreshToken
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", m.cfg.ClientID)
	form.Set("client_secret", m.cfg.ClientSecret)
	form.Set("refresh_token", cur.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.cfg.HTTPClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("token refresh http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, fmt.Errorf("token refresh read error: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Token{}, newAPIError(resp.StatusCode, body)
	}

	var nt Token
	if err := json.Unmarshal(body, &nt); err != nil {
		return Token{}, fmt.Errorf("token refresh decode: %w", err)
	}
	if nt.AccessToken == "" {
		return Token{}, fmt.Errorf("token refresh: empty access_token in response")
	}
	if nt.RefreshToken == "" {
		nt.RefreshToken = cur.RefreshToken
	}
	now := m.cfg.Now()
	if nt.ExpiresIn > 0 {
		nt.ExpiresAt = now.Add(time.Duration(nt.ExpiresIn) * time.Second)
	}

	m.mu.Lock()
	m.token = nt
	m.lastRefresh = now
	m.mu.Unlock()

	log.Info().Str("component", "mercadolibre").Time("expires_at", nt.ExpiresAt).Msg("token refreshed")

	if m.cfg.Store != nil {
		if err := m.cfg.Store.SaveToken(ctx, nt); err != nil {
			log.Error().Str("component", "mercadolibre").Err(err).Msg("failed to persist refreshed token")
		}
	}
	return nt, nil
}

// Run keeps the token fresh until ctx is cancelled.
func (m *TokenManager) Run(ctx context.Context) {
	m.checkAndRefresh(ctx)

	t := time.NewTicker(m.cfg.CheckInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.checkAndRefresh(ctx)
		}
	}
}

func (m *TokenManager) checkAndRefresh(ctx context.Context) {
	t, last := m.snapshot()
	if !m.canRefresh(t) || !m.needsRefresh(t, last, m.cfg.Now()) {
		return
	}
	if _, err := m.Refresh(ctx); err != nil && ctx.Err() == nil {
		log.Error().Str("component", "mercadolibre").Err(err).Msg("scheduled token refresh failed")
	}
}

func (m *TokenManager) Status() TokenStatus {
	t, last := m.snapshot()
	now := m.cfg.Now()
	st := TokenStatus{
		HasToken:        t.AccessToken != "",
		HasRefreshToken: t.RefreshToken != "",
		NeedsRefresh:    m.needsRefresh(t, last, now),
		UserID:          t.UserID,
	}
	if !t.ExpiresAt.IsZero() {
		exp := t.ExpiresAt
		st.ExpiresAt = &exp
		st.Remaining = t.Remaining(now)
		st.RemainingText = st.Remaining.Truncate(time.Second).String()
	}
	if !last.IsZero() {
		l := last
		st.LastRefresh = &l
	}
	return st
}
