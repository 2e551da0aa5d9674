package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SellerHub/middleware"
	"SellerHub/pkg/app"
	"SellerHub/pkg/config"
	"SellerHub/pkg/logger"
	"SellerHub/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logger.Setup(config.AppEnv, config.LogLevel)
	if config.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetRateLimitConfig(config.Seconds(config.RateLimitWindowSeconds), config.RateLimitCapacity, config.UserConcurrencyLimit)
	middleware.SetDuplicateTTL(config.Seconds(config.DuplicateWindowSeconds))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build app")
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     config.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, a)

	bgDone := make(chan struct{})
	go func() {
		a.Start(ctx, time.Duration(config.SyncIntervalMinutes)*time.Minute)
		close(bgDone)
	}()

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	<-bgDone
}
