package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
)

const defaultReportURLTTL = 15 * time.Minute

// Reports uploads generated report files and hands back V4 signed download URLs.
type Reports struct {
	bucket string
	write  func(ctx context.Context, object, contentType string, data []byte) error
	sign   func(object string, opts *gcs.SignedURLOptions) (string, error)
	signer Signer
	email  string
	ttl    time.Duration
	now    func() time.Time
}

// ReportsOption customises Reports.
type ReportsOption func(*Reports)

// WithSigner signs URLs with a local key instead of IAM signBlob.
func WithSigner(signer Signer) ReportsOption {
	return func(r *Reports) { r.signer = signer }
}

// WithSignerEmail names the service account IAM signs as.
func WithSignerEmail(email string) ReportsOption {
	return func(r *Reports) { r.email = strings.TrimSpace(email) }
}

func WithURLTTL(ttl time.Duration) ReportsOption {
	return func(r *Reports) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) ReportsOption {
	return func(r *Reports) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReports binds the uploader to one bucket.
func NewReports(client *gcs.Client, bucket string, opts ...ReportsOption) (*Reports, error) {
	if client == nil {
		return nil, errors.New("storage: client is required")
	}
	handle := client.Bucket(strings.TrimSpace(bucket))
	return newReports(bucket,
		func(ctx context.Context, object, contentType string, data []byte) error {
			w := handle.Object(object).NewWriter(ctx)
			w.ContentType = contentType
			w.CacheControl = "private, max-age=0"
			if _, err := w.Write(data); err != nil {
				_ = w.Close()
				return err
			}
			return w.Close()
		},
		handle.SignedURL,
		opts...)
}

func newReports(bucket string,
	write func(context.Context, string, string, []byte) error,
	sign func(string, *gcs.SignedURLOptions) (string, error),
	opts ...ReportsOption,
) (*Reports, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("storage: reports bucket is required")
	}
	r := &Reports{bucket: bucket, write: write, sign: sign, ttl: defaultReportURLTTL, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// UploadReport writes the object and returns a GET URL valid for the configured TTL.
func (r *Reports) UploadReport(ctx context.Context, object, contentType string, data []byte) (string, time.Time, error) {
	object = strings.TrimLeft(strings.TrimSpace(object), "/")
	if object == "" {
		return "", time.Time{}, errors.New("storage: object name is required")
	}
	if err := r.write(ctx, object, contentType, data); err != nil {
		return "", time.Time{}, fmt.Errorf("storage: write gs://%s/%s: %w", r.bucket, object, err)
	}

	expires := r.now().Add(r.ttl)
	opts := &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: expires,
	}
	if r.signer != nil {
		opts.GoogleAccessID = r.signer.Email()
		opts.SignBytes = func(payload []byte) ([]byte, error) {
			return r.signer.SignBytes(ctx, payload)
		}
	} else if r.email != "" {
		opts.GoogleAccessID = r.email
	}
	url, err := r.sign(object, opts)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("storage: sign gs://%s/%s: %w", r.bucket, object, err)
	}
	return url, expires, nil
}
