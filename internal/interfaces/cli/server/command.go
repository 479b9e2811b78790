package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/acme/autocert"

	paymentApp "volt/internal/application/payment"
	userApp "volt/internal/application/user"
	"volt/internal/domain/catalog"
	"volt/internal/infrastructure/auth"
	"volt/internal/infrastructure/config"
	"volt/internal/infrastructure/database"
	"volt/internal/infrastructure/email"
	"volt/internal/infrastructure/paddle"
	"volt/internal/infrastructure/ratelimit"
	"volt/internal/infrastructure/repository"
	"volt/internal/infrastructure/token"
	httpRouter "volt/internal/interfaces/http"
	"volt/internal/interfaces/http/handlers"
	"volt/internal/interfaces/http/middleware"
	sharedConfig "volt/internal/shared/config"
	"volt/internal/shared/logger"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

var (
	env      string
	skipSync bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server",
		Long:  `Start the Volt HTTP server: catalog sync, webhook registration, then serve.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().BoolVar(&skipSync, "skip-sync", false, "Skip catalog synchronization on startup")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Server.Mode = mapEnvToGinMode(env)

	if err := logger.Init(&cfg.Logger, cfg.Server.Mode); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	log.Infow("starting server", "environment", env, "version", Version)

	// The request middleware emits the only per-request line; gin's own
	// writer would duplicate it.
	gin.DefaultWriter = io.Discard
	gin.DebugPrintRouteFunc = func(string, string, string, int) {}

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()
	db := database.Get()

	hasher := auth.NewHasher(cfg.Auth.Secret)
	mailer := email.NewService(cfg.Email)

	userSvc := userApp.NewService(
		repository.NewUserRepository(db),
		repository.NewSessionTokenRepository(db),
		repository.NewTwoFAChallengeRepository(db),
		repository.NewUserDataRepository(db),
		hasher,
		token.NewGenerator(hasher),
		mailer,
		cfg.Auth,
		log,
	)

	cat, err := catalog.Load(cfg.Paddle.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	processor := paddle.NewClient(cfg.Paddle.APIKey, cfg.Paddle.Sandbox, log)
	verifier := paddle.NewWebhookVerifier(cfg.Paddle.WebhookSecret, cfg.Paddle.Sandbox)

	subRepo := repository.NewSubscriptionRepository(db)
	hooks := paymentApp.NewMailHooks(mailer, cat, subRepo,
		func(ctx context.Context, uid string) (string, error) {
			u, err := userSvc.GetByUID(ctx, uid)
			if err != nil {
				return "", err
			}
			return u.Email, nil
		},
		log,
	)

	paymentSvc := paymentApp.NewService(
		repository.NewPaymentRepository(db),
		subRepo,
		repository.NewActiveIndexRepository(db),
		repository.NewCatalogStateRepository(db),
		cat,
		processor,
		hooks,
		log,
	)

	if !skipSync {
		policy, err := paymentApp.ParseSyncPolicy(cfg.Paddle.SyncPolicy)
		if err != nil {
			return err
		}
		syncCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err = paymentSvc.Sync(syncCtx, paymentApp.SyncOptions{
			Policy:             policy,
			WebhookDestination: webhookDestination(cfg.Server.BaseURL),
			Confirm:            confirmOnStdin,
		})
		cancel()
		if err != nil {
			return fmt.Errorf("catalog sync failed: %w", err)
		}
	}

	limiter := buildLimiter(cfg, log)
	gate := middleware.NewAuthGate(userSvc, cfg.Server.SigninPath, log)

	router := httpRouter.NewRouter(cfg.Server, cfg.RateLimit, gate, limiter, log)
	if err := httpRouter.RegisterRoutes(router, Version,
		handlers.NewAuthHandler(userSvc, cfg.Auth, log),
		handlers.NewUserHandler(userSvc, paymentSvc, cfg.Auth, log),
		handlers.NewPaymentHandler(paymentSvc, log),
		handlers.NewWebhookHandler(paymentSvc, verifier, log),
	); err != nil {
		return fmt.Errorf("failed to register routes: %w", err)
	}
	if cfg.Server.StaticDir != "" {
		if err := router.ServeStatic("/static", cfg.Server.StaticDir); err != nil {
			return fmt.Errorf("failed to mount static files: %w", err)
		}
	}

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      router.Engine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "address", cfg.Server.GetAddr(), "mode", cfg.Server.Mode)
		if err := serve(srv, cfg.Server.TLS); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
		return err
	}

	log.Infow("server exited gracefully")
	return nil
}

// serve starts the listener in the mode the TLS config selects: static
// certificate files, ACME autocert, or plain HTTP.
func serve(srv *http.Server, tlsCfg sharedConfig.TLSConfig) error {
	switch {
	case tlsCfg.CertFile != "" && tlsCfg.KeyFile != "":
		return srv.ListenAndServeTLS(tlsCfg.CertFile, tlsCfg.KeyFile)
	case len(tlsCfg.AutocertDomains) > 0:
		manager := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(tlsCfg.AutocertDomains...),
		}
		if tlsCfg.AutocertCacheDir != "" {
			manager.Cache = autocert.DirCache(tlsCfg.AutocertCacheDir)
		}
		srv.TLSConfig = &tls.Config{GetCertificate: manager.GetCertificate}
		return srv.ListenAndServeTLS("", "")
	default:
		return srv.ListenAndServe()
	}
}

func buildLimiter(cfg *config.Config, log logger.Interface) ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	if cfg.Redis.Configured() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		log.Infow("rate limiting backed by redis", "addr", cfg.Redis.GetAddr())
		return ratelimit.NewRedisLimiter(client, cfg.RateLimit.Groups)
	}
	log.Infow("rate limiting backed by in-process store")
	return ratelimit.NewMemoryLimiter(cfg.RateLimit.Groups)
}

func webhookDestination(baseURL string) string {
	if baseURL == "" {
		return ""
	}
	return strings.TrimSuffix(baseURL, "/") + "/payments/webhook"
}

// confirmOnStdin asks the operator to approve one planned catalog
// change. Used by the prompt sync policy.
func confirmOnStdin(summary string) bool {
	fmt.Printf("%s\napply? [y/N]: ", summary)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func mapEnvToGinMode(environment string) string {
	switch environment {
	case "production", "prod", "release":
		return "release"
	case "test", "testing":
		return "test"
	default:
		return "debug"
	}
}
