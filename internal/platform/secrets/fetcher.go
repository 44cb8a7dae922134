package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultFallbackPath = ".secrets.local"
	meterName           = "github.com/shoestore/api/internal/platform/secrets"
)

// ErrNotFound is returned when a reference resolves neither remotely nor from the fallback file.
var ErrNotFound = errors.New("secrets: secret not found")

type accessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret://name[?version=N&project=P] references against Secret Manager.
// Payment provider keys, the JWT secret and the MySQL DSN are the values it serves.
// Resolved values are cached for the life of the process.
type Fetcher struct {
	client     accessor
	ownsClient bool
	projectID  string
	logger     *zap.Logger
	retry      gax.CallOption

	fallbackPath string
	fallbackOnce sync.Once
	fallback     map[string]string

	mu    sync.RWMutex
	cache map[string]string

	latency metric.Float64Histogram
}

type options struct {
	projectID    string
	logger       *zap.Logger
	fallbackPath string
	meter        metric.Meter
	client       accessor
	clientOpts   []option.ClientOption
}

// Option customises Fetcher construction.
type Option func(*options)

// WithProject sets the project used when a reference does not carry one.
func WithProject(projectID string) Option {
	return func(o *options) { o.projectID = strings.TrimSpace(projectID) }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithFallbackFile overrides the local "secret://name=value" file consulted when Secret Manager
// is unreachable. An empty path disables it.
func WithFallbackFile(path string) Option {
	return func(o *options) { o.fallbackPath = strings.TrimSpace(path) }
}

func WithMeter(m metric.Meter) Option {
	return func(o *options) { o.meter = m }
}

func WithClientOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.clientOpts = append(o.clientOpts, opts...) }
}

func withAccessor(client accessor) Option {
	return func(o *options) { o.client = client }
}

// NewFetcher builds a Fetcher. A Secret Manager client that cannot be created leaves the
// fetcher in fallback-only mode rather than failing startup.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	o := options{logger: zap.NewNop(), fallbackPath: defaultFallbackPath}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	meter := o.meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(meterName)
	}
	latency, err := meter.Float64Histogram("secrets.fetch.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency of secret resolution"),
	)
	if err != nil {
		return nil, fmt.Errorf("secrets: register latency metric: %w", err)
	}

	f := &Fetcher{
		client:       o.client,
		projectID:    o.projectID,
		logger:       o.logger,
		fallbackPath: o.fallbackPath,
		cache:        make(map[string]string),
		latency:      latency,
		retry: gax.WithRetry(func() gax.Retryer {
			return gax.OnCodes([]codes.Code{codes.Unavailable, codes.DeadlineExceeded}, gax.Backoff{
				Initial:    100 * time.Millisecond,
				Max:        2 * time.Second,
				Multiplier: 2,
			})
		}),
	}
	if f.client == nil {
		client, err := secretmanager.NewClient(ctx, o.clientOpts...)
		if err != nil {
			o.logger.Warn("secrets: secret manager unavailable, using fallback file only", zap.Error(err))
		} else {
			f.client = client
			f.ownsClient = true
		}
	}
	return f, nil
}

// Close releases the Secret Manager client when the fetcher created it.
func (f *Fetcher) Close() error {
	if f.ownsClient && f.client != nil {
		return f.client.Close()
	}
	return nil
}

// ResolveSecret satisfies config.SecretResolver.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	start := time.Now()
	source := "cache"
	value, err := f.resolve(ctx, ref, &source)
	attrs := []attribute.KeyValue{attribute.String("source", source), attribute.Bool("ok", err == nil)}
	f.latency.Record(ctx, float64(time.Since(start))/float64(time.Millisecond), metric.WithAttributes(attrs...))
	return value, err
}

func (f *Fetcher) resolve(ctx context.Context, ref string, source *string) (string, error) {
	parsed, err := parseReference(ref)
	if err != nil {
		return "", err
	}
	f.mu.RLock()
	cached, ok := f.cache[parsed.key()]
	f.mu.RUnlock()
	if ok {
		return cached, nil
	}

	project := parsed.project
	if project == "" {
		project = f.projectID
	}
	if f.client != nil && project != "" {
		*source = "remote"
		name := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, parsed.name, parsed.version)
		resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name}, f.retry)
		if err == nil {
			value := string(resp.GetPayload().GetData())
			f.store(parsed.key(), value)
			return value, nil
		}
		if !fallbackEligible(err) {
			return "", fmt.Errorf("secrets: access %s: %w", parsed.name, err)
		}
		f.logger.Debug("secrets: remote access failed, trying fallback file", zap.String("secret", parsed.name), zap.Error(err))
	}

	*source = "fallback"
	f.fallbackOnce.Do(f.loadFallback)
	value, ok := f.fallback[parsed.name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, parsed.name)
	}
	f.store(parsed.key(), value)
	return value, nil
}

func (f *Fetcher) store(key, value string) {
	f.mu.Lock()
	f.cache[key] = value
	f.mu.Unlock()
}

func (f *Fetcher) loadFallback() {
	f.fallback = map[string]string{}
	if f.fallbackPath == "" {
		return
	}
	file, err := os.Open(f.fallbackPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.logger.Warn("secrets: unable to open fallback file", zap.String("path", f.fallbackPath), zap.Error(err))
		}
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(key), "secret://"), "sm://")
		if key != "" {
			f.fallback[key] = strings.TrimSpace(value)
		}
	}
	if err := scanner.Err(); err != nil {
		f.logger.Warn("secrets: failed reading fallback file", zap.String("path", f.fallbackPath), zap.Error(err))
	}
}

type reference struct {
	name    string
	version string
	project string
}

func (r reference) key() string {
	return r.project + "/" + r.name + "#" + r.version
}

func parseReference(ref string) (reference, error) {
	trimmed := strings.TrimSpace(ref)
	if strings.HasPrefix(trimmed, "sm://") {
		trimmed = "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return reference{}, fmt.Errorf("secrets: invalid reference %q: %w", ref, err)
	}
	if u.Scheme != "secret" {
		return reference{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}
	name := strings.Trim(u.Host+u.Path, "/")
	if name == "" {
		return reference{}, fmt.Errorf("secrets: missing secret name in %q", ref)
	}
	query := u.Query()
	version := strings.TrimSpace(query.Get("version"))
	if version == "" {
		version = "latest"
	}
	return reference{name: name, version: version, project: strings.TrimSpace(query.Get("project"))}, nil
}

func fallbackEligible(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
