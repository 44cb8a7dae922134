package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/shoestore/api/internal/handlers"
	"github.com/shoestore/api/internal/platform/auth"
	"github.com/shoestore/api/internal/platform/config"
	"github.com/shoestore/api/internal/platform/idempotency"
	"github.com/shoestore/api/internal/platform/observability"
	"github.com/shoestore/api/internal/repositories"
	"github.com/shoestore/api/internal/services"
)

const meterName = "github.com/shoestore/api/internal/services"

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Orders      services.OrderService
	Payments    services.PaymentService
	AdminOrders services.AdminOrderService
	Returns     services.ReturnService
	Revenue     services.RevenueService
	Cart        services.CartService
	System      services.SystemService
}

// Infrastructure carries the collaborators that live outside the repository registry. Zero values
// fall back to what the configuration describes; tests inject fakes here.
type Infrastructure struct {
	Logger      *zap.Logger
	Gateway     services.PaymentGateway
	Events      services.OrderEventPublisher
	Uploader    services.ReportUploader
	Verifier    auth.TokenVerifier
	Idempotency idempotency.Store
	Meter       metric.Meter
	Clock       func() time.Time
	Build       services.BuildInfo
}

// Container wires repositories, services and HTTP handlers for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services

	logger         *zap.Logger
	authenticator  *auth.Authenticator
	idempotency    idempotency.Store
	internalGuards []func(http.Handler) http.Handler
	clock          func() time.Time
	build          services.BuildInfo
	closers        []func(context.Context) error
}

// NewContainer constructs the runtime dependencies on top of reg.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, infra Infrastructure) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	logger := infra.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := infra.Clock
	if clock == nil {
		clock = time.Now
	}
	if infra.Meter == nil {
		infra.Meter = otel.GetMeterProvider().Meter(meterName)
	}
	if infra.Build.StartedAt.IsZero() {
		infra.Build.StartedAt = clock().UTC()
	}
	if infra.Build.Environment == "" {
		infra.Build.Environment = cfg.Security.Environment
	}
	if infra.Build.StoreDriver == "" {
		infra.Build.StoreDriver = cfg.Database.Driver
	}

	c := &Container{
		Config:       cfg,
		Repositories: reg,
		logger:       logger,
		clock:        clock,
		build:        infra.Build,
	}

	if infra.Gateway == nil {
		gateway, err := BuildPaymentGateway(cfg, logger)
		if err != nil {
			return nil, err
		}
		infra.Gateway = gateway
	}

	svc, err := buildServices(reg, cfg, infra)
	if err != nil {
		return nil, err
	}
	c.Services = svc

	verifier := infra.Verifier
	if verifier == nil {
		verifier, err = buildVerifier(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}
	c.authenticator = auth.NewAuthenticator(verifier,
		auth.WithSource(cfg.Security.AuthMode),
		auth.WithAccountLoader(accountLoader(reg.Users())),
	)

	c.idempotency = infra.Idempotency
	if c.idempotency == nil {
		c.idempotency = idempotency.NewMemoryStore()
	}

	if guard := buildOIDCMiddleware(logger.Named("auth"), cfg); guard != nil {
		c.internalGuards = append(c.internalGuards, guard)
	}

	return c, nil
}

// AddCloser registers a hook run by Close in reverse registration order.
func (c *Container) AddCloser(fn func(context.Context) error) {
	if fn != nil {
		c.closers = append(c.closers, fn)
	}
}

// Close releases repository clients and anything registered through AddCloser.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Repositories != nil {
		if err := c.Repositories.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Router assembles the HTTP surface. Middlewares run ahead of every route.
func (c *Container) Router(middlewares ...func(http.Handler) http.Handler) http.Handler {
	cfg := c.Config
	loc, err := time.LoadLocation(cfg.Orders.ReportTimezone)
	if err != nil {
		loc = time.UTC
	}
	expose := !cfg.Security.Production()

	idempotencyMW := idempotency.Middleware(c.idempotency,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithClock(c.clock),
	)

	orders := handlers.NewOrderHandlers(handlers.OrderHandlersDeps{
		Authenticator:      c.authenticator,
		Orders:             c.Services.Orders,
		Payments:           c.Services.Payments,
		Admin:              c.Services.AdminOrders,
		Returns:            c.Services.Returns,
		Revenue:            c.Services.Revenue,
		RateLimiter:        handlers.NewPaymentRateLimiter(cfg.Payments.RateLimitPerHour, time.Hour, c.clock),
		Idempotency:        idempotencyMW,
		FrontendURL:        cfg.Frontend.URL,
		MomoNotifyURL:      cfg.Momo.NotifyURL,
		ReportLocation:     loc,
		ExposeErrorDetails: expose,
	})
	cart := handlers.NewCartHandlers(c.authenticator, c.Services.Cart, expose)
	internal := handlers.NewInternalHandlers(handlers.InternalHandlersDeps{
		Revenue:            c.Services.Revenue,
		Idempotency:        c.idempotency,
		CleanupBatchSize:   cfg.Idempotency.CleanupBatchSize,
		Clock:              c.clock,
		ExposeErrorDetails: expose,
	})

	healthOpts := []handlers.HealthOption{handlers.WithHealthBuildInfo(c.build)}
	if c.Services.System != nil {
		healthOpts = append(healthOpts, handlers.WithHealthSystemService(c.Services.System))
	}

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthOpts...)),
		handlers.WithOrderRoutes(orders.Routes),
		handlers.WithCartRoutes(cart.Routes),
		handlers.WithInternalRoutes(internal.Routes),
	}
	if len(c.internalGuards) > 0 {
		opts = append(opts, handlers.WithInternalMiddlewares(c.internalGuards...))
	}
	return handlers.NewRouter(opts...)
}

func buildServices(reg repositories.Registry, cfg config.Config, infra Infrastructure) (Services, error) {
	var svc Services
	logger := infra.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:               reg.Orders(),
		Users:                reg.Users(),
		Clock:                infra.Clock,
		Events:               infra.Events,
		Meter:                infra.Meter,
		Logger:               observability.ServiceLogger(logger, "orders"),
		DeferProviderPayment: cfg.Orders.DeferProviderPayment,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	paymentSvc, err := services.NewPaymentService(services.PaymentServiceDeps{
		Placement: orderSvc,
		Orders:    reg.Orders(),
		Gateway:   infra.Gateway,
		Clock:     infra.Clock,
		Events:    infra.Events,
		Meter:     infra.Meter,
		Logger:    observability.ServiceLogger(logger, "payments"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment service: %w", err)
	}
	svc.Payments = paymentSvc

	adminSvc, err := services.NewAdminOrderService(services.AdminOrderServiceDeps{
		Orders:          reg.Orders(),
		Users:           reg.Users(),
		Clock:           infra.Clock,
		Events:          infra.Events,
		Logger:          observability.ServiceLogger(logger, "admin_orders"),
		AllowBulkDelete: cfg.Orders.AllowBulkDelete,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build admin order service: %w", err)
	}
	svc.AdminOrders = adminSvc

	returnSvc, err := services.NewReturnService(services.ReturnServiceDeps{
		Orders:            reg.Orders(),
		Users:             reg.Users(),
		Clock:             infra.Clock,
		Events:            infra.Events,
		Logger:            observability.ServiceLogger(logger, "returns"),
		RestockOnApproval: cfg.Orders.RestockOnReturnApproval,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build return service: %w", err)
	}
	svc.Returns = returnSvc

	loc, err := time.LoadLocation(cfg.Orders.ReportTimezone)
	if err != nil {
		return Services{}, fmt.Errorf("load report timezone %q: %w", cfg.Orders.ReportTimezone, err)
	}
	revenueSvc, err := services.NewRevenueService(services.RevenueServiceDeps{
		Orders:       reg.Orders(),
		Uploader:     infra.Uploader,
		Location:     loc,
		ReportPrefix: cfg.Storage.ReportsPrefix,
		Clock:        infra.Clock,
		Logger:       observability.ServiceLogger(logger, "revenue"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build revenue service: %w", err)
	}
	svc.Revenue = revenueSvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:    reg.Carts(),
		Products: reg.Products(),
		Logger:   observability.ServiceLogger(logger, "cart"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Payments:         infra.Gateway,
			Clock:            infra.Clock,
			Build:            infra.Build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

func buildVerifier(ctx context.Context, cfg config.Config) (auth.TokenVerifier, error) {
	switch cfg.Security.AuthMode {
	case config.AuthModeFirebase:
		verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("build firebase verifier: %w", err)
		}
		return verifier, nil
	default:
		verifier, err := auth.NewJWTVerifier(cfg.Security.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("build jwt verifier: %w", err)
		}
		return verifier, nil
	}
}

// accountLoader makes the stored account authoritative for role and email.
func accountLoader(users repositories.UserRepository) auth.AccountLoader {
	return func(ctx context.Context, userID string) (auth.Account, error) {
		user, err := users.FindByID(ctx, userID)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				return auth.Account{}, auth.ErrAccountNotFound
			}
			return auth.Account{}, err
		}
		return auth.Account{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Role:  string(user.Role),
		}, nil
	}
}

func buildOIDCMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.Security.OIDC.JWKSURL) == "" {
		return nil
	}
	audience := strings.TrimSpace(cfg.Security.OIDC.Audience)
	if audience == "" {
		logger.Warn("auth: OIDC audience not configured; internal routes will reject requests")
	}
	cache := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL)
	validator := auth.NewOIDCValidator(cache, auth.OIDCConfig{
		Audience:        audience,
		Issuers:         cfg.Security.OIDC.Issuers,
		ServiceAccounts: cfg.Security.OIDC.ServiceAccounts,
	}, logger)
	return validator.RequireOIDC()
}
