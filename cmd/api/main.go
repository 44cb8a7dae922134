package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/shoestore/api/internal/di"
	"github.com/shoestore/api/internal/platform/config"
	"github.com/shoestore/api/internal/platform/observability"
	"github.com/shoestore/api/internal/platform/secrets"
	"github.com/shoestore/api/internal/repositories"
	"github.com/shoestore/api/internal/services"
)

const (
	shutdownTimeout     = 10 * time.Second
	closeTimeout        = 5 * time.Second
	secretHealthRefName = "secret://system-healthz"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger(os.Getenv("LOG_LEVEL"), envOr("APP_ENV", "local"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("api")

	fetcher, err := newSecretFetcher(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(fetcher),
		config.WithRequiredSecrets(requiredSecretNames()...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Int("count", len(missing.Names())), zap.Error(err))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	backends, err := di.OpenBackends(ctx, cfg, logger.Named("store"), secretManagerCheck(fetcher))
	if err != nil {
		logger.Fatal("failed to open backends", zap.Error(err))
	}

	infra := di.Infrastructure{
		Logger:      logger,
		Idempotency: backends.Idempotency,
		Build: services.BuildInfo{
			Environment: cfg.Security.Environment,
			StoreDriver: cfg.Database.Driver,
			StartedAt:   startedAt,
		},
	}
	// Typed nils must not leak into the service interfaces.
	if backends.Events != nil {
		infra.Events = backends.Events
	}
	if backends.Uploader != nil {
		infra.Uploader = backends.Uploader
	}

	container, err := di.NewContainer(ctx, cfg, backends.Registry, infra)
	if err != nil {
		logger.Fatal("failed to build container", zap.Error(err))
	}
	container.AddCloser(backends.Close)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	projectID := traceProjectID(cfg)
	httpLogger := logger.Named("http")
	router := container.Router(
		middleware.RequestID,
		middleware.RealIP,
		observability.ClientIPMiddleware,
		observability.TraceMiddleware(projectID),
		observability.InjectLoggerMiddleware(httpLogger),
		observability.RequestLoggerMiddleware(),
		observability.RecoveryMiddleware(httpLogger),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := httpLogger.With(zap.String("addr", server.Addr), zap.String("store", cfg.Database.Driver))
	go func() {
		serverLogger.Info("shoe store api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger) (*secrets.Fetcher, error) {
	project := envOr("SECRET_PROJECT_ID", os.Getenv("FIREBASE_PROJECT_ID"))
	opts := []secrets.Option{
		secrets.WithProject(project),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(envOr("SECRET_FALLBACK_FILE", ".secrets.local")),
	}
	if credentials := strings.TrimSpace(os.Getenv("FIREBASE_CREDENTIALS_FILE")); credentials != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentials)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames marks the secret half of every provider whose public identifier is set.
func requiredSecretNames() []string {
	var required []string
	if strings.EqualFold(envOr("AUTH_MODE", config.AuthModeJWT), config.AuthModeJWT) {
		required = append(required, "Security.JWTSecret")
	}
	if strings.EqualFold(os.Getenv("STORE_DRIVER"), config.StoreDriverMySQL) {
		required = append(required, "Database.MySQLDSN")
	}
	if os.Getenv("VNPAY_TMN_CODE") != "" {
		required = append(required, "VNPay.HashSecret")
	}
	if os.Getenv("MOMO_PARTNER_CODE") != "" {
		required = append(required, "Momo.AccessKey", "Momo.SecretKey")
	}
	if os.Getenv("RAZORPAY_KEY_ID") != "" {
		required = append(required, "Razorpay.Secret")
	}
	return required
}

func secretManagerCheck(fetcher *secrets.Fetcher) repositories.DependencyCheck {
	return repositories.DependencyCheck{
		Name:    "secretManager",
		Timeout: time.Second,
		Check: func(ctx context.Context) error {
			_, err := fetcher.ResolveSecret(ctx, secretHealthRefName)
			if err == nil || errors.Is(err, secrets.ErrNotFound) {
				return nil
			}
			if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
				return nil
			}
			return err
		},
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}
