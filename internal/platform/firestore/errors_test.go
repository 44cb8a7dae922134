package firestore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/shoestore/api/internal/platform/config"
)

func TestWrapErrorClassifiesStatusCodes(t *testing.T) {
	tests := []struct {
		code        codes.Code
		notFound    bool
		conflict    bool
		unavailable bool
	}{
		{code: codes.NotFound, notFound: true},
		{code: codes.AlreadyExists, conflict: true},
		{code: codes.Aborted, conflict: true},
		{code: codes.Unavailable, unavailable: true},
		{code: codes.ResourceExhausted, unavailable: true},
		{code: codes.PermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			err := WrapError("orders.get", status.Error(tt.code, "boom"))
			var repoErr *Error
			if !errors.As(err, &repoErr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if repoErr.IsNotFound() != tt.notFound || repoErr.IsConflict() != tt.conflict || repoErr.IsUnavailable() != tt.unavailable {
				t.Fatalf("unexpected classification for %s: %+v", tt.code, repoErr)
			}
		})
	}
}

func TestWrapErrorPassesContextErrorsThrough(t *testing.T) {
	if err := WrapError("op", status.Error(codes.Canceled, "gone")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := WrapError("op", status.Error(codes.DeadlineExceeded, "slow")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if err := WrapError("op", fmt.Errorf("tx: %w", context.Canceled)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected wrapped cancel to survive, got %v", err)
	}
}

func TestWrapErrorKeepsCallbackErrorsReachable(t *testing.T) {
	sentinel := errors.New("insufficient stock")
	err := WrapError("transaction", fmt.Errorf("line p1/42: %w", sentinel))
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel to be reachable, got %v", err)
	}
	if err.Error() != "transaction: line p1/42: insufficient stock" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if WrapError("op", nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestProviderClientAfterClose(t *testing.T) {
	p := NewProvider(configForTest())
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := p.Client(context.Background()); !errors.Is(err, ErrProviderClosed) {
		t.Fatalf("expected ErrProviderClosed, got %v", err)
	}
}

func configForTest() config.FirestoreConfig {
	return config.FirestoreConfig{ProjectID: "shop-test", EmulatorHost: "127.0.0.1:1"}
}
