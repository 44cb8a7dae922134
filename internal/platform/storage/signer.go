package storage

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Signer signs V4 URL payloads on behalf of a service account.
type Signer interface {
	Email() string
	SignBytes(ctx context.Context, payload []byte) ([]byte, error)
}

// KeySigner signs with a downloaded service account key. Deployments on Cloud Run leave it
// unset and let the storage client sign through IAM instead.
type KeySigner struct {
	email string
	key   *rsa.PrivateKey
}

// NewKeySignerFromFile reads a service account JSON key.
func NewKeySignerFromFile(path string) (*KeySigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read service account key: %w", err)
	}
	return NewKeySigner(data)
}

// NewKeySigner parses the client_email and private_key fields of a service account key.
func NewKeySigner(data []byte) (*KeySigner, error) {
	var key struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("storage: decode service account key: %w", err)
	}
	email := strings.TrimSpace(key.ClientEmail)
	if email == "" {
		return nil, errors.New("storage: client_email missing in service account key")
	}
	block, _ := pem.Decode([]byte(strings.TrimSpace(key.PrivateKey)))
	if block == nil {
		return nil, errors.New("storage: private_key is not PEM encoded")
	}
	rsaKey, err := parseRSAKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	return &KeySigner{email: email, key: rsaKey}, nil
}

func (s *KeySigner) Email() string { return s.email }

func (s *KeySigner) SignBytes(ctx context.Context, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest := sha256.Sum256(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("storage: sign payload: %w", err)
	}
	return sig, nil
}

func parseRSAKey(der []byte) (*rsa.PrivateKey, error) {
	if parsed, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("storage: private key is not RSA")
		}
		return rsaKey, nil
	}
	rsaKey, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("storage: parse private key: %w", err)
	}
	return rsaKey, nil
}
