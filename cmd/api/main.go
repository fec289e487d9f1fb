package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wordweave/wordweave/internal/auth"
	"github.com/wordweave/wordweave/internal/background"
	"github.com/wordweave/wordweave/internal/config"
	"github.com/wordweave/wordweave/internal/database"
	"github.com/wordweave/wordweave/internal/handlers"
	middlewareCustom "github.com/wordweave/wordweave/internal/middleware"
	"github.com/wordweave/wordweave/internal/providers"
	"github.com/wordweave/wordweave/internal/repositories"
	"github.com/wordweave/wordweave/internal/routes"
	"github.com/wordweave/wordweave/internal/services"
	pkglogger "github.com/wordweave/wordweave/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.Connect(context.Background(), &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	principalRepo := repositories.NewPrincipalRepository(db)
	verificationTokenRepo := repositories.NewVerificationTokenRepository(db)
	refreshTokenRepo := repositories.NewRefreshTokenRepository(db)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(verificationTokenRepo, refreshTokenRepo, logger, cfg.Auth.CleanupInterval)

	// Token codec and recent-login guard
	codec := auth.NewCodec(cfg.Auth.SigningSecret, logger)
	guard := auth.NewGuard()

	auditLogger := pkglogger.NewAuditLogger(logger)

	// AWS SES email service
	emailService, err := services.NewAWSSESEmailService(
		cfg.Email.AWSRegion,
		cfg.Email.FromAddress,
		cfg.Email.BaseURL,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	verificationTokenService := services.NewVerificationTokenService(
		verificationTokenRepo,
		principalRepo,
		emailService,
		logger,
		cfg.Auth.VerificationTokenLength,
		cfg.Auth.VerificationTokenTTL,
	)
	principalService := services.NewPrincipalService(principalRepo, verificationTokenRepo, logger)
	sessionService := services.NewSessionService(codec, refreshTokenRepo, logger, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	userService := services.NewUserService(userRepo, principalRepo, logger)
	accountService := services.NewAccountService(
		userRepo,
		principalRepo,
		verificationTokenRepo,
		principalService,
		verificationTokenService,
		sessionService,
		logger,
		auditLogger,
		cfg.Auth.RequireVerifiedEmail,
	)

	// Google OIDC verifier. Optional: endpoints 404 without it.
	var googleVerifier providers.IdentityVerifier
	if cfg.OAuth.GoogleClientID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		googleVerifier, err = providers.NewGoogleVerifier(ctx, cfg.OAuth.GoogleClientID, cfg.OAuth.GoogleClientSecret, cfg.OAuth.GoogleRedirectURL)
		cancel()
		if err != nil {
			logger.Error("failed to initialize google verifier", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		logger.Info("GOOGLE_CLIENT_ID not set, google sign-in disabled")
	}

	cookieConfig := auth.CookieConfig{
		Secure:      cfg.Server.Env == "production",
		SameSite:    "lax",
		RefreshPath: cfg.Auth.RefreshTokenPath,
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(
		accountService,
		sessionService,
		userService,
		googleVerifier,
		cookieConfig,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	accountHandler := handlers.NewAccountHandler(accountService, userService, guard, cookieConfig)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, accountHandler, codec,
		middlewareCustom.DefaultAuthRateLimit(), middlewareCustom.DefaultEmailRateLimit())

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
