package storage

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeySigner(t *testing.T) *KeySigner {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	raw, err := json.Marshal(map[string]string{
		"client_email": "reports@shop.iam.gserviceaccount.com",
		"private_key":  string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
	})
	require.NoError(t, err)
	signer, err := NewKeySigner(raw)
	require.NoError(t, err)
	return signer
}

func TestUploadReportWritesAndSigns(t *testing.T) {
	now := time.Date(2025, 5, 1, 3, 4, 5, 0, time.UTC)
	var written struct {
		object, contentType string
		data                []byte
	}
	reports, err := newReports("shop-reports",
		func(_ context.Context, object, contentType string, data []byte) error {
			written.object, written.contentType, written.data = object, contentType, data
			return nil
		},
		func(object string, opts *gcs.SignedURLOptions) (string, error) {
			return gcs.SignedURL("shop-reports", object, opts)
		},
		WithSigner(testKeySigner(t)),
		WithURLTTL(10*time.Minute),
		WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	signed, expires, err := reports.UploadReport(context.Background(), "/reports/revenue/2025/monthly.csv", "text/csv", []byte("month\n"))
	require.NoError(t, err)

	assert.Equal(t, "reports/revenue/2025/monthly.csv", written.object)
	assert.Equal(t, "text/csv", written.contentType)
	assert.Equal(t, "month\n", string(written.data))
	assert.Equal(t, now.Add(10*time.Minute), expires)

	parsed, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Contains(t, parsed.Path, "shop-reports/reports/revenue/2025/monthly.csv")
	assert.Equal(t, "600", parsed.Query().Get("X-Goog-Expires"))
	assert.True(t, strings.HasPrefix(parsed.Query().Get("X-Goog-Credential"), "reports@shop.iam.gserviceaccount.com/"))
}

func TestUploadReportSurfacesWriteFailure(t *testing.T) {
	reports, err := newReports("shop-reports",
		func(context.Context, string, string, []byte) error { return errors.New("quota exceeded") },
		func(string, *gcs.SignedURLOptions) (string, error) {
			t.Fatal("sign must not run after a failed write")
			return "", nil
		},
	)
	require.NoError(t, err)

	_, _, err = reports.UploadReport(context.Background(), "report.csv", "text/csv", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestNewReportsRequiresBucket(t *testing.T) {
	_, err := newReports(" ", nil, nil)
	require.Error(t, err)
}

func TestNewKeySignerRejectsIncompleteKey(t *testing.T) {
	_, err := NewKeySigner([]byte(`{"private_key":"x"}`))
	require.Error(t, err)
	_, err = NewKeySigner([]byte(`{"client_email":"a@b","private_key":"not pem"}`))
	require.Error(t, err)
}
