package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"naftapp/internal/config"
	"naftapp/internal/db"
	"naftapp/internal/logging"
	"naftapp/internal/metrics"
	"naftapp/internal/middleware"
	"naftapp/internal/router"
	"naftapp/internal/services"
	"naftapp/internal/utils"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load .env file
	cfg, envFound := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if !envFound {
		log.Info("No .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	gdb, err := db.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	if err := db.Migrate(gdb); err != nil {
		log.WithError(err).Fatal("Failed to migrate database")
	}
	if err := db.EnsureAdmin(gdb, cfg.AdminEmail, cfg.AdminPassword, log); err != nil {
		log.WithError(err).Fatal("Failed to bootstrap admin account")
	}

	cache, err := utils.NewTagCache(cfg.CacheSize, cfg.CacheTTL)
	if err != nil {
		log.WithError(err).Fatal("Failed to create cache")
	}

	// 通知: inbox + mail, delivered off the request path
	notifier := services.MultiNotifier{
		services.NewInboxNotifier(gdb),
		services.NewMailService(cfg, log),
	}
	dispatcher := services.NewDispatcher(gdb, notifier, log, cfg.NotifyQueueSize)

	deps := services.Deps{DB: gdb, Log: log, Notify: dispatcher, Cache: cache}
	confirmations := services.NewConfirmationService(deps)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(log), metrics.Middleware())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// Setup Sessions
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("naftapp_session", store))

	router.RegisterRoutes(r, router.Deps{
		DB:            gdb,
		Log:           log,
		Accounts:      services.NewAccountService(deps),
		Captcha:       services.NewCaptchaService(),
		Prices:        services.NewPriceService(deps, confirmations, cache),
		Confirmations: confirmations,
		Comments:      services.NewCommentService(deps),
		Stations:      services.NewStationService(deps),
		Limiter:       middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("naftapp server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown")
	}
	dispatcher.Close(shutdownCtx)

	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
