package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// idTokenVerifier is the subset of the Firebase auth client used here.
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseVerifier accepts Firebase ID tokens. The Firebase UID is the user id.
type FirebaseVerifier struct {
	client  idTokenVerifier
	timeout time.Duration
}

// FirebaseOption customises FirebaseVerifier instances.
type FirebaseOption func(*FirebaseVerifier)

// WithFirebaseTimeout overrides the timeout used for Admin SDK calls.
func WithFirebaseTimeout(d time.Duration) FirebaseOption {
	return func(v *FirebaseVerifier) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// NewFirebaseVerifier constructs a FirebaseVerifier backed by the Admin SDK.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string, opts ...FirebaseOption) (*FirebaseVerifier, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, errors.New("firebase project id is required")
	}

	var clientOpts []option.ClientOption
	if credentialsFile = strings.TrimSpace(credentialsFile); credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}
	return newFirebaseVerifier(authClient, opts...), nil
}

func newFirebaseVerifier(client idTokenVerifier, opts ...FirebaseOption) *FirebaseVerifier {
	verifier := &FirebaseVerifier{client: client, timeout: defaultVerifyTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(verifier)
		}
	}
	return verifier
}

// Verify forwards verification to the underlying Firebase client using a bounded context.
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (Claims, error) {
	if v == nil || v.client == nil {
		return Claims{}, errors.New("firebase verifier not initialised")
	}
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	token, err := v.client.VerifyIDToken(ctx, idToken)
	switch {
	case err == nil:
	case firebaseauth.IsIDTokenExpired(err):
		return Claims{}, ErrTokenExpired
	case firebaseauth.IsIDTokenInvalid(err):
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	default:
		return Claims{}, err
	}
	return Claims{
		Subject: token.UID,
		Email:   claimAsString(token.Claims, defaultEmailClaim),
		Locale:  claimAsString(token.Claims, defaultLocaleClaim),
		Role:    claimAsString(token.Claims, defaultRoleClaim),
	}, nil
}
