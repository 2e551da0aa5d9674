// Package app assembles the storage, upstream clients and services that the
// HTTP server and the CLI share.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SellerHub/pkg/cache"
	"SellerHub/pkg/config"
	"SellerHub/pkg/database"
	"SellerHub/pkg/mailer"
	"SellerHub/pkg/mercadolibre"
	"SellerHub/pkg/notify"
	"SellerHub/pkg/services"
	"SellerHub/pkg/store"
	tokenstore "SellerHub/pkg/token"
	"SellerHub/pkg/woocommerce"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type App struct {
	DB    *gorm.DB
	Store *store.Store
	Cache cache.Store
	Hub   *notify.Hub

	// nil when the platform is not configured
	Tokens *mercadolibre.TokenManager
	ML     *mercadolibre.Client
	Woo    *woocommerce.Client

	Sync          *services.SyncService
	Conversations *services.ConversationService
	Questions     *services.QuestionService
	Dashboard     *services.DashboardService
	Email         *services.EmailService

	WooWebhookSecret string
}

// Parts are the already-built dependencies New wires together. Nil API
// fields mean the platform is disabled.
type Parts struct {
	DB     *gorm.DB
	Cache  cache.Store
	Tokens *mercadolibre.TokenManager
	ML     *mercadolibre.Client
	Woo    *woocommerce.Client
	Sender mailer.Sender

	MercadoLibre services.MercadoLibreAPI
	WooCommerce  services.WooCommerceAPI

	WooWebhookSecret string
	StoreName        string
	StaleAfter       time.Duration
	OrdersCacheTTL   time.Duration
	LookbackDays     int
}

// New builds the service graph from parts.
func New(p Parts) (*App, error) {
	if p.DB == nil {
		return nil, errors.New("app: database is required")
	}
	if p.Cache == nil {
		p.Cache = cache.NewMemory(500)
	}
	templates, err := mailer.NewTemplates()
	if err != nil {
		return nil, err
	}

	st := store.New(p.DB)
	hub := notify.NewHub(64)
	syncSvc := services.NewSyncService(p.MercadoLibre, st, p.Cache, hub, services.SyncConfig{
		LookbackDays:      p.LookbackDays,
		ConversationDelay: 200 * time.Millisecond,
	})
	questions := services.NewQuestionService(p.MercadoLibre, p.Cache, hub)

	return &App{
		DB:            p.DB,
		Store:         st,
		Cache:         p.Cache,
		Hub:           hub,
		Tokens:        p.Tokens,
		ML:            p.ML,
		Woo:           p.Woo,
		Sync:          syncSvc,
		Conversations: services.NewConversationService(st, syncSvc, p.MercadoLibre, hub, p.StaleAfter),
		Questions:     questions,
		Dashboard: services.NewDashboardService(p.MercadoLibre, p.WooCommerce, p.Cache, st, questions, hub, services.DashboardConfig{
			LookbackDays: p.LookbackDays,
			CacheTTL:     p.OrdersCacheTTL,
		}),
		Email:            services.NewEmailService(p.Sender, templates, st, p.WooCommerce, p.StoreName),
		WooWebhookSecret: p.WooWebhookSecret,
	}, nil
}

// Build opens everything described by the loaded config package.
func Build(ctx context.Context) (*App, error) {
	db, err := database.Open(config.DBDriver, config.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}

	p := Parts{
		DB:               db,
		WooWebhookSecret: config.WooWebhookSecret,
		StoreName:        config.SMTPFromName,
		StaleAfter:       config.Seconds(config.ConversationStaleSeconds),
		OrdersCacheTTL:   config.Seconds(config.OrdersCacheTTLSeconds),
		LookbackDays:     config.SyncLookbackDays,
	}

	if config.RedisURL != "" {
		r, err := cache.NewRedis(ctx, config.RedisURL, "sellerhub:")
		if err != nil {
			return nil, err
		}
		p.Cache = r
		log.Info().Str("component", "app").Msg("response cache: redis")
	} else {
		p.Cache = cache.NewMemory(config.CacheMaxItems)
	}

	if config.MercadoLibreEnabled() {
		st := store.New(db)
		p.Tokens = mercadolibre.NewTokenManager(mercadolibre.TokenManagerConfig{
			ClientID:        config.MLClientID,
			ClientSecret:    config.MLClientSecret,
			TokenURL:        config.MLTokenURL,
			RefreshInterval: time.Duration(config.MLTokenRefreshHours) * time.Hour,
			RefreshBefore:   time.Duration(config.MLTokenRefreshBeforeMinutes) * time.Minute,
			Store:           st.MercadoLibreTokens(),
		}, mercadolibre.Token{AccessToken: config.MLAccessToken, RefreshToken: config.MLRefreshToken})
		if err := p.Tokens.Load(ctx); err != nil {
			log.Warn().Str("component", "app").Err(err).Msg("stored mercadolibre token unavailable, using env")
		}
		p.ML = mercadolibre.NewClient(mercadolibre.Config{
			BaseURL:     config.MLAPIBaseURL,
			SellerID:    config.MLSellerID,
			MinInterval: time.Duration(config.MLMinRequestIntervalMs) * time.Millisecond,
			Tokens:      p.Tokens,
		})
		p.MercadoLibre = p.ML
	}

	if config.WooCommerceEnabled() {
		p.Woo = woocommerce.NewClient(woocommerce.Config{
			BaseURL:     config.WooBaseURL,
			ConsumerKey: config.WooConsumerKey,
			ConsumerSec: config.WooConsumerSecret,
		})
		p.WooCommerce = p.Woo
	}

	if config.SMTPEnabled() {
		p.Sender = mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     config.SMTPHost,
			Port:     config.SMTPPort,
			Username: config.SMTPUser,
			Password: config.SMTPPassword,
			From:     config.SMTPFrom,
			FromName: config.SMTPFromName,
		})
	}

	return New(p)
}

// Start launches the background loops and returns when ctx is done and
// they have stopped.
func (a *App) Start(ctx context.Context, syncEvery time.Duration) {
	done := make(chan struct{}, 3)
	n := 1
	go func() {
		pruneRevoked(ctx, time.Hour)
		done <- struct{}{}
	}()
	if a.Tokens != nil {
		n++
		go func() {
			a.Tokens.Run(ctx)
			done <- struct{}{}
		}()
	}
	if a.Sync.Enabled() && syncEvery > 0 {
		n++
		go func() {
			a.Sync.Run(ctx, syncEvery)
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}
}

func pruneRevoked(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := tokenstore.Prune(now); n > 0 {
				log.Debug().Str("component", "app").Int("pruned", n).Msg("revoked sessions expired")
			}
		}
	}
}

func (a *App) Close() error {
	var errs []error
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("app: close: %w", err)
	}
	return nil
}
