package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/asesson/job-Application-Tracker/internal/auth"
	"github.com/asesson/job-Application-Tracker/internal/config"
	"github.com/asesson/job-Application-Tracker/internal/db"
	"github.com/asesson/job-Application-Tracker/internal/google"
	"github.com/asesson/job-Application-Tracker/internal/health"
	"github.com/asesson/job-Application-Tracker/internal/sync"
	"github.com/asesson/job-Application-Tracker/internal/web"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 30 * time.Second
	idleTimeout     = 120 * time.Second
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 30 * time.Second
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	log.Printf("Job Application Tracker %s starting", version)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), startupTimeout)
	defer cancelStartup()

	if err := cfg.Validate(startupCtx); err != nil {
		return fmt.Errorf("validate configuration: %w", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	oidcProvider, err := auth.NewOIDCProvider(
		startupCtx,
		cfg.OIDC.Issuer,
		cfg.OIDC.ClientID,
		cfg.OIDC.ClientSecret,
		cfg.OIDC.RedirectURL,
	)
	if err != nil {
		return fmt.Errorf("initialize OIDC provider: %w", err)
	}

	sessionManager := auth.NewSessionManager(cfg.Security.SessionSecret, cfg.IsProduction())

	// Google Calendar stack: token store, gateway, sync engine.
	tokenStore := google.NewTokenStore(
		database,
		cfg.Google.ClientID,
		cfg.Google.ClientSecret,
		cfg.Google.RedirectURL,
	)
	gateway := google.NewGateway(tokenStore, cfg.Google.TimeZone)
	engine := sync.NewEngine(database, gateway)

	handlers := web.NewHandlers(
		cfg,
		database,
		oidcProvider,
		sessionManager,
		tokenStore,
		gateway,
		engine,
		health.NewChecker(database, version),
	)

	router := gin.New()
	router.Use(gin.Recovery(), web.RequestLogger(), web.SecurityHeaders())
	web.SetupRoutes(router, handlers, sessionManager)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		log.Printf("Received %s, shutting down", sig)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}
