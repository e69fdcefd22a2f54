package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gridclash/api/internal/auth"
	"github.com/gridclash/api/internal/config"
	"github.com/gridclash/api/internal/handler"
	"github.com/gridclash/api/internal/logger"
	"github.com/gridclash/api/internal/middleware"
	"github.com/gridclash/api/internal/registry"
	redisrepo "github.com/gridclash/api/internal/repository/redis"
	"github.com/gridclash/api/internal/service"
	"github.com/gridclash/api/pkg/tactics"
)

func main() {
	logger.Init()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Config load failed")
	}

	// Redis mirror is optional: without REDIS_URL the registry runs
	// purely in memory.
	var mirror registry.Mirror
	if cfg.RedisURL != "" {
		redisClient, err := redisrepo.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Redis connection failed")
		}
		defer redisClient.Close()
		mirror = redisClient
		log.Info().Msg("Redis state mirror enabled")
	}

	reg := registry.New(mirror)

	timers := service.NewTimerService(nil, nil, service.TimerDurations{
		ActionMs:      cfg.ActionTimeoutMs,
		DeathChoiceMs: cfg.DeathChoiceTimeoutMs,
		DraftMs:       cfg.DraftTimeoutMs,
		GraceMs:       cfg.GracePeriodMs,
	})
	matchSvc := service.NewMatchService(reg, timers)

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)

	wsHub := handler.NewHub()
	dispatcher := handler.NewDispatcher(wsHub, reg, matchSvc, tactics.NewDefaultState)
	wsHandler := handler.NewWSHandler(wsHub, dispatcher, jwtMgr)
	matchHandler := handler.NewMatchHandler(reg, wsHub)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handler.Healthz)
	mux.HandleFunc("GET /api/v1/matches", matchHandler.ListMatches)
	mux.HandleFunc("GET /api/v1/ws", wsHandler.ServeWS)

	root := middleware.Chain(mux, middleware.Logger, middleware.CORS("*"))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}
