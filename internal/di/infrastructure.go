package di

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/shoestore/api/internal/payments"
	"github.com/shoestore/api/internal/platform/config"
	pfirestore "github.com/shoestore/api/internal/platform/firestore"
	"github.com/shoestore/api/internal/platform/idempotency"
	"github.com/shoestore/api/internal/platform/jobs"
	"github.com/shoestore/api/internal/platform/observability"
	"github.com/shoestore/api/internal/platform/storage"
	"github.com/shoestore/api/internal/repositories"
	firestoreRepo "github.com/shoestore/api/internal/repositories/firestore"
	"github.com/shoestore/api/internal/repositories/memory"
	"github.com/shoestore/api/internal/repositories/mysql"
)

// Backends are the external clients opened from configuration. Close releases them.
type Backends struct {
	Registry    repositories.Registry
	Idempotency idempotency.Store
	Events      *jobs.PubSubOrderEventPublisher
	Uploader    *storage.Reports

	closers []func(context.Context) error
}

// Close stops the publisher and closes the Pub/Sub and Storage clients. The registry is
// closed by the container that owns it.
func (b *Backends) Close(ctx context.Context) error {
	if b == nil {
		return nil
	}
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenBackends dials the configured store, publisher and report bucket. Extra checks join
// the readiness report alongside the store and client checks.
func OpenBackends(ctx context.Context, cfg config.Config, logger *zap.Logger, extraChecks ...repositories.DependencyCheck) (*Backends, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Backends{}
	checks := append([]repositories.DependencyCheck(nil), extraChecks...)

	if project := strings.TrimSpace(cfg.PubSub.ProjectID); project != "" && cfg.Database.Driver != config.StoreDriverMemory {
		client, err := pubsub.NewClient(ctx, project)
		if err != nil {
			return nil, fmt.Errorf("pubsub client: %w", err)
		}
		topic := client.Topic(cfg.PubSub.OrderEventsTopic)
		publisher, err := jobs.NewPubSubOrderEventPublisher(topic)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		b.Events = publisher
		b.closers = append(b.closers, func(context.Context) error { return client.Close() })
		b.closers = append(b.closers, func(context.Context) error {
			publisher.Stop()
			return nil
		})
		checks = append(checks, repositories.DependencyCheck{
			Name: "pubsub",
			Check: func(ctx context.Context) error {
				ok, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("topic %s not found", topic.ID())
				}
				return nil
			},
		})
	} else {
		logger.Info("order event publishing disabled")
	}

	if bucket := strings.TrimSpace(cfg.Storage.ReportsBucket); bucket != "" {
		client, err := gcs.NewClient(ctx)
		if err != nil {
			_ = b.Close(ctx)
			return nil, fmt.Errorf("storage client: %w", err)
		}
		b.closers = append(b.closers, func(context.Context) error { return client.Close() })
		opts := []storage.ReportsOption{
			storage.WithSignerEmail(cfg.Storage.SignerEmail),
			storage.WithURLTTL(cfg.Storage.SignedURLTTL),
		}
		if keyFile := strings.TrimSpace(cfg.Storage.SignerKeyFile); keyFile != "" {
			signer, err := storage.NewKeySignerFromFile(keyFile)
			if err != nil {
				_ = b.Close(ctx)
				return nil, fmt.Errorf("storage signer: %w", err)
			}
			opts = append(opts, storage.WithSigner(signer))
		}
		reports, err := storage.NewReports(client, bucket, opts...)
		if err != nil {
			_ = b.Close(ctx)
			return nil, err
		}
		b.Uploader = reports
		checks = append(checks, repositories.DependencyCheck{
			Name: "storage",
			Check: func(ctx context.Context) error {
				_, err := client.Bucket(bucket).Attrs(ctx)
				return err
			},
		})
	}

	switch cfg.Database.Driver {
	case config.StoreDriverFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore)
		reg, err := firestoreRepo.NewRegistry(provider, checks...)
		if err != nil {
			_ = b.Close(ctx)
			return nil, fmt.Errorf("firestore registry: %w", err)
		}
		client, err := provider.Client(ctx)
		if err != nil {
			_ = reg.Close(ctx)
			_ = b.Close(ctx)
			return nil, fmt.Errorf("firestore client: %w", err)
		}
		b.Registry = reg
		b.Idempotency = idempotency.NewFirestoreStore(client, "")
	case config.StoreDriverMySQL:
		store, err := mysql.Open(ctx, cfg.Database, logger, checks...)
		if err != nil {
			_ = b.Close(ctx)
			return nil, err
		}
		b.Registry = store
		b.Idempotency = idempotency.NewMemoryStore()
	case config.StoreDriverMemory:
		b.Registry = memory.NewStore()
		b.Idempotency = idempotency.NewMemoryStore()
	default:
		_ = b.Close(ctx)
		return nil, fmt.Errorf("unknown store driver %q", cfg.Database.Driver)
	}
	return b, nil
}

// BuildPaymentGateway registers cash on delivery plus every provider whose credentials are set.
func BuildPaymentGateway(cfg config.Config, logger *zap.Logger) (*payments.Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Payments.HTTPTimeout
	providers := []payments.Provider{payments.CODProvider{}}

	if cfg.VNPay.Enabled() {
		p, err := payments.NewVNPayProvider(payments.VNPayProviderConfig{
			TMNCode:    cfg.VNPay.TMNCode,
			HashSecret: cfg.VNPay.HashSecret,
			PaymentURL: cfg.VNPay.URL,
			Logger:     observability.ServiceLogger(logger, "vnpay"),
		})
		if err != nil {
			return nil, fmt.Errorf("vnpay provider: %w", err)
		}
		providers = append(providers, p)
	}
	if cfg.Momo.Enabled() {
		p, err := payments.NewMomoProvider(payments.MomoProviderConfig{
			PartnerCode: cfg.Momo.PartnerCode,
			AccessKey:   cfg.Momo.AccessKey,
			SecretKey:   cfg.Momo.SecretKey,
			Endpoint:    cfg.Momo.Endpoint,
			Timeout:     timeout,
			Logger:      observability.ServiceLogger(logger, "momo"),
		})
		if err != nil {
			return nil, fmt.Errorf("momo provider: %w", err)
		}
		providers = append(providers, p)
	}
	if cfg.Stripe.Enabled() {
		p, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey:     cfg.Stripe.SecretKey,
			SuccessURL: cfg.Stripe.SuccessURL,
			CancelURL:  cfg.Stripe.CancelURL,
			Logger:     observability.ServiceLogger(logger, "stripe"),
		})
		if err != nil {
			return nil, fmt.Errorf("stripe provider: %w", err)
		}
		providers = append(providers, p)
	}
	if cfg.Razorpay.Enabled() {
		p, err := payments.NewRazorpayProvider(payments.RazorpayProviderConfig{
			KeyID:    cfg.Razorpay.KeyID,
			Secret:   cfg.Razorpay.Secret,
			Currency: cfg.Razorpay.Currency,
			BaseURL:  cfg.Razorpay.BaseURL,
			Timeout:  timeout,
			Logger:   observability.ServiceLogger(logger, "razorpay"),
		})
		if err != nil {
			return nil, fmt.Errorf("razorpay provider: %w", err)
		}
		providers = append(providers, p)
	}
	if cfg.Solana.Enabled() {
		p, err := payments.NewSolanaProvider(payments.SolanaProviderConfig{
			RPCURL:    cfg.Solana.RPCURL,
			Recipient: cfg.Solana.Recipient,
			VNDPerSOL: cfg.Solana.VNDPerSOL,
			Label:     cfg.Solana.Label,
			Timeout:   timeout,
			Logger:    observability.ServiceLogger(logger, "solana"),
		})
		if err != nil {
			return nil, fmt.Errorf("solana provider: %w", err)
		}
		providers = append(providers, p)
	}

	methods := make([]string, 0, len(providers))
	for _, p := range providers {
		methods = append(methods, string(p.Method()))
	}
	logger.Info("payment providers registered", zap.Strings("methods", methods))
	return payments.NewManager(providers...)
}
