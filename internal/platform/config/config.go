package config

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultEnvironment         = "local"
	defaultAuthMode            = AuthModeJWT
	defaultStoreDriver         = StoreDriverFirestore
	defaultOIDCJWKSURL         = "https://www.googleapis.com/oauth2/v3/certs"
	defaultOIDCIssuer          = "https://accounts.google.com"
	defaultVNPayURL            = "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"
	defaultMomoEndpoint        = "https://test-payment.momo.vn/v2/gateway/api/create"
	defaultRazorpayBaseURL     = "https://api.razorpay.com"
	defaultRazorpayCurrency    = "INR"
	defaultSolanaRPCURL        = "https://api.devnet.solana.com"
	defaultSolanaLabel         = "Shoe Store"
	defaultPaymentHTTPTimeout  = 15 * time.Second
	defaultPaymentRatePerHour  = 20
	defaultIdempotencyHeader   = "Idempotency-Key"
	defaultIdempotencyTTL      = 24 * time.Hour
	defaultIdempotencyBatch    = 200
	defaultReportTimezone      = "UTC"
	defaultSignedURLTTL        = 15 * time.Minute
	defaultMySQLMaxOpenConns   = 20
	defaultMySQLMaxIdleConns   = 5
	defaultMySQLConnMaxLife    = 30 * time.Minute
	defaultOrderEventsTopic    = "order-events"
	defaultReportsObjectPrefix = "reports/revenue"
)

// Auth modes select how end-user bearer tokens are verified.
const (
	AuthModeJWT      = "jwt"
	AuthModeFirebase = "firebase"
)

// Store drivers select the persistence backend.
const (
	StoreDriverFirestore = "firestore"
	StoreDriverMySQL     = "mysql"
	StoreDriverMemory    = "memory"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Security    SecurityConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Database    DatabaseConfig
	PubSub      PubSubConfig
	Storage     StorageConfig
	Frontend    FrontendConfig
	VNPay       VNPayConfig
	Momo        MomoConfig
	Stripe      StripeConfig
	Razorpay    RazorpayConfig
	Solana      SolanaConfig
	Payments    PaymentsConfig
	Orders      OrdersConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	LogLevel     string
}

// SecurityConfig groups end-user and service-to-service authentication settings.
type SecurityConfig struct {
	Environment string
	AuthMode    string
	JWTSecret   string
	OIDC        OIDCConfig
}

// Production reports whether the process runs in the production environment.
func (s SecurityConfig) Production() bool {
	return s.Environment == "production" || s.Environment == "prod"
}

// OIDCConfig controls Google-signed token verification for internal routes.
type OIDCConfig struct {
	JWKSURL         string
	Audience        string
	Issuers         []string
	ServiceAccounts []string
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// DatabaseConfig selects the persistence backend and SQL pool settings.
type DatabaseConfig struct {
	Driver          string
	MySQLDSN        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PubSubConfig configures order event publishing. An empty ProjectID disables publishing.
type PubSubConfig struct {
	ProjectID        string
	OrderEventsTopic string
}

// StorageConfig configures revenue report exports.
type StorageConfig struct {
	ReportsBucket string
	ReportsPrefix string
	SignerEmail   string
	SignerKeyFile string
	SignedURLTTL  time.Duration
}

// FrontendConfig holds the storefront base URL used for payment redirects.
type FrontendConfig struct {
	URL string
}

// VNPayConfig holds VNPay merchant credentials.
type VNPayConfig struct {
	TMNCode    string
	HashSecret string
	URL        string
}

// Enabled reports whether the VNPay credentials are present.
func (c VNPayConfig) Enabled() bool {
	return c.TMNCode != "" && c.HashSecret != "" && c.URL != ""
}

// MomoConfig holds Momo partner credentials.
type MomoConfig struct {
	PartnerCode string
	AccessKey   string
	SecretKey   string
	NotifyURL   string
	Endpoint    string
}

// Enabled reports whether the Momo credentials are present.
func (c MomoConfig) Enabled() bool {
	return c.PartnerCode != "" && c.AccessKey != "" && c.SecretKey != ""
}

// StripeConfig holds Stripe checkout settings.
type StripeConfig struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
}

// Enabled reports whether the Stripe secret key is present.
func (c StripeConfig) Enabled() bool {
	return c.SecretKey != ""
}

// RazorpayConfig holds Razorpay API credentials.
type RazorpayConfig struct {
	KeyID    string
	Secret   string
	Currency string
	BaseURL  string
}

// Enabled reports whether the Razorpay credentials are present.
func (c RazorpayConfig) Enabled() bool {
	return c.KeyID != "" && c.Secret != ""
}

// SolanaConfig holds Solana Pay settings.
type SolanaConfig struct {
	RPCURL    string
	Recipient string
	VNDPerSOL string
	Label     string
}

// Enabled reports whether a recipient wallet and conversion rate are configured.
func (c SolanaConfig) Enabled() bool {
	return c.Recipient != "" && c.VNDPerSOL != ""
}

// PaymentsConfig groups cross-provider settings.
type PaymentsConfig struct {
	HTTPTimeout      time.Duration
	RateLimitPerHour int
}

// OrdersConfig toggles order lifecycle behaviour.
type OrdersConfig struct {
	DeferProviderPayment    bool
	AllowBulkDelete         bool
	RestockOnReturnApproval bool
	ReportTimezone          string
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupBatchSize int
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets resolved to empty values.
type MissingSecretsError struct {
	names []string
}

// Error implements the error interface. Names are redacted.
func (e *MissingSecretsError) Error() string {
	if e == nil || len(e.names) == 0 {
		return "missing required secrets"
	}
	redacted := make([]string, 0, len(e.names))
	for _, name := range e.names {
		redacted = append(redacted, redactSecretName(name))
	}
	sort.Strings(redacted)
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(redacted, ", "))
}

// Names returns the underlying secret identifiers.
func (e *MissingSecretsError) Names() []string {
	if e == nil {
		return nil
	}
	out := append([]string(nil), e.names...)
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks the provided secret identifiers as mandatory
// (e.g. "VNPay.HashSecret" or "Security.JWTSecret").
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", stringWithDefault(lookup, "PORT", defaultPort)),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			LogLevel:     stringWithDefault(lookup, "LOG_LEVEL", "info"),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(stringWithDefault(lookup, "APP_ENV", defaultEnvironment)),
			AuthMode:    strings.ToLower(stringWithDefault(lookup, "AUTH_MODE", defaultAuthMode)),
			JWTSecret:   stringWithDefault(lookup, "JWT_SECRET", ""),
			OIDC: OIDCConfig{
				JWKSURL:         stringWithDefault(lookup, "OIDC_JWKS_URL", defaultOIDCJWKSURL),
				Audience:        stringWithDefault(lookup, "OIDC_AUDIENCE", ""),
				Issuers:         csvWithDefault(lookup, "OIDC_ISSUERS"),
				ServiceAccounts: csvWithDefault(lookup, "OIDC_SERVICE_ACCOUNTS"),
			},
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "FIRESTORE_EMULATOR_HOST", ""),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(stringWithDefault(lookup, "STORE_DRIVER", defaultStoreDriver)),
			MySQLDSN:        stringWithDefault(lookup, "MYSQL_DSN", ""),
			MaxOpenConns:    intWithDefault(lookup, "MYSQL_MAX_OPEN_CONNS", defaultMySQLMaxOpenConns),
			MaxIdleConns:    intWithDefault(lookup, "MYSQL_MAX_IDLE_CONNS", defaultMySQLMaxIdleConns),
			ConnMaxLifetime: durationWithDefault(lookup, "MYSQL_CONN_MAX_LIFETIME", defaultMySQLConnMaxLife),
		},
		PubSub: PubSubConfig{
			ProjectID:        stringWithDefault(lookup, "PUBSUB_PROJECT_ID", ""),
			OrderEventsTopic: stringWithDefault(lookup, "PUBSUB_ORDER_EVENTS_TOPIC", defaultOrderEventsTopic),
		},
		Storage: StorageConfig{
			ReportsBucket: stringWithDefault(lookup, "REPORTS_BUCKET", ""),
			ReportsPrefix: stringWithDefault(lookup, "REPORTS_PREFIX", defaultReportsObjectPrefix),
			SignerEmail:   stringWithDefault(lookup, "STORAGE_SIGNER_EMAIL", ""),
			SignerKeyFile: stringWithDefault(lookup, "STORAGE_SIGNER_KEY_FILE", ""),
			SignedURLTTL:  durationWithDefault(lookup, "STORAGE_SIGNED_URL_TTL", defaultSignedURLTTL),
		},
		Frontend: FrontendConfig{
			URL: strings.TrimRight(stringWithDefault(lookup, "FRONTEND_URL", ""), "/"),
		},
		VNPay: VNPayConfig{
			TMNCode:    stringWithDefault(lookup, "VNPAY_TMN_CODE", ""),
			HashSecret: stringWithDefault(lookup, "VNPAY_HASH_SECRET", ""),
			URL:        stringWithDefault(lookup, "VNPAY_URL", defaultVNPayURL),
		},
		Momo: MomoConfig{
			PartnerCode: stringWithDefault(lookup, "MOMO_PARTNER_CODE", ""),
			AccessKey:   stringWithDefault(lookup, "MOMO_ACCESS_KEY", ""),
			SecretKey:   stringWithDefault(lookup, "MOMO_SECRET_KEY", ""),
			NotifyURL:   stringWithDefault(lookup, "MOMO_NOTIFY_URL", ""),
			Endpoint:    stringWithDefault(lookup, "MOMO_ENDPOINT", defaultMomoEndpoint),
		},
		Stripe: StripeConfig{
			SecretKey:  stringWithDefault(lookup, "STRIPE_SECRET_KEY", ""),
			SuccessURL: stringWithDefault(lookup, "STRIPE_SUCCESS_URL", ""),
			CancelURL:  stringWithDefault(lookup, "STRIPE_CANCEL_URL", ""),
		},
		Razorpay: RazorpayConfig{
			KeyID:    stringWithDefault(lookup, "RAZORPAY_KEY_ID", ""),
			Secret:   stringWithDefault(lookup, "RAZORPAY_SECRET", ""),
			Currency: strings.ToUpper(stringWithDefault(lookup, "RAZORPAY_CURRENCY", defaultRazorpayCurrency)),
			BaseURL:  stringWithDefault(lookup, "RAZORPAY_BASE_URL", defaultRazorpayBaseURL),
		},
		Solana: SolanaConfig{
			RPCURL:    stringWithDefault(lookup, "SOLANA_RPC_URL", defaultSolanaRPCURL),
			Recipient: stringWithDefault(lookup, "SOLANA_RECIPIENT", ""),
			VNDPerSOL: stringWithDefault(lookup, "SOLANA_VND_PER_SOL", ""),
			Label:     stringWithDefault(lookup, "SOLANA_LABEL", defaultSolanaLabel),
		},
		Payments: PaymentsConfig{
			HTTPTimeout:      durationWithDefault(lookup, "PAYMENT_HTTP_TIMEOUT", defaultPaymentHTTPTimeout),
			RateLimitPerHour: intWithDefault(lookup, "PAYMENT_RATE_LIMIT_PER_HOUR", defaultPaymentRatePerHour),
		},
		Orders: OrdersConfig{
			DeferProviderPayment:    boolWithDefault(lookup, "ORDERS_DEFER_PROVIDER_PAYMENT", false),
			AllowBulkDelete:         boolWithDefault(lookup, "ORDERS_ALLOW_BULK_DELETE", true),
			RestockOnReturnApproval: boolWithDefault(lookup, "RETURNS_RESTOCK_ON_APPROVAL", false),
			ReportTimezone:          stringWithDefault(lookup, "REPORT_TIMEZONE", defaultReportTimezone),
		},
		Idempotency: IdempotencyConfig{
			Header:           stringWithDefault(lookup, "IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              durationWithDefault(lookup, "IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupBatchSize: intWithDefault(lookup, "IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatch),
		},
	}

	// Firestore project defaults to Firebase project when unspecified.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}
	if len(cfg.Security.OIDC.Issuers) == 0 {
		cfg.Security.OIDC.Issuers = []string{defaultOIDCIssuer}
	}

	resolved := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Security.JWTSecret", &cfg.Security.JWTSecret},
		{"Database.MySQLDSN", &cfg.Database.MySQLDSN},
		{"VNPay.HashSecret", &cfg.VNPay.HashSecret},
		{"Momo.AccessKey", &cfg.Momo.AccessKey},
		{"Momo.SecretKey", &cfg.Momo.SecretKey},
		{"Stripe.SecretKey", &cfg.Stripe.SecretKey},
		{"Razorpay.Secret", &cfg.Razorpay.Secret},
	}
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		return Config{}, missing
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Frontend.URL == "" {
		missing = append(missing, "Frontend.URL")
	}

	switch cfg.Security.AuthMode {
	case AuthModeJWT:
		if strings.TrimSpace(cfg.Security.JWTSecret) == "" {
			missing = append(missing, "Security.JWTSecret")
		}
	case AuthModeFirebase:
		if cfg.Firebase.ProjectID == "" {
			missing = append(missing, "Firebase.ProjectID")
		}
	default:
		missing = append(missing, "Security.AuthMode")
	}

	switch cfg.Database.Driver {
	case StoreDriverFirestore:
		if cfg.Firestore.ProjectID == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
	case StoreDriverMySQL:
		if cfg.Database.MySQLDSN == "" {
			missing = append(missing, "Database.MySQLDSN")
		}
	case StoreDriverMemory:
	default:
		missing = append(missing, "Database.Driver")
	}

	if cfg.Solana.VNDPerSOL != "" {
		if rate, err := strconv.ParseFloat(cfg.Solana.VNDPerSOL, 64); err != nil || rate <= 0 {
			missing = append(missing, "Solana.VNDPerSOL")
		}
	}
	if cfg.Payments.HTTPTimeout <= 0 {
		missing = append(missing, "Payments.HTTPTimeout")
	}
	if cfg.Payments.RateLimitPerHour <= 0 {
		missing = append(missing, "Payments.RateLimitPerHour")
	}
	if _, err := time.LoadLocation(cfg.Orders.ReportTimezone); err != nil {
		missing = append(missing, "Orders.ReportTimezone")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		missing = append(missing, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	var names []string
	seen := make(map[string]struct{})
	for _, name := range required {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		if resolved[trimmed] == "" {
			names = append(names, trimmed)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return &MissingSecretsError{names: names}
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
