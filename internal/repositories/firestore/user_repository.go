package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/shoestore/api/internal/domain"
	pfirestore "github.com/shoestore/api/internal/platform/firestore"
	"github.com/shoestore/api/internal/repositories"
)

const userCollection = "users"

// UserRepository resolves accounts for role checks and admin listings.
type UserRepository struct {
	base     *pfirestore.BaseRepository[userDocument]
	provider *pfirestore.Provider
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[userDocument](provider, userCollection)
	return &UserRepository{base: base, provider: provider}, nil
}

// FindByID loads the account by UID.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if r == nil || r.base == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	if strings.TrimSpace(userID) == "" {
		return domain.User{}, errors.New("user id is required")
	}
	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByIDs batch-loads accounts in one round trip. Unknown IDs are omitted from the result.
func (r *UserRepository) FindByIDs(ctx context.Context, userIDs []string) (map[string]domain.User, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("user repository not initialised")
	}
	result := make(map[string]domain.User, len(userIDs))
	seen := make(map[string]struct{}, len(userIDs))
	refs := make([]*firestore.DocumentRef, 0, len(userIDs))
	for _, id := range userIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return result, nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	snaps, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("users.getAll", err)
	}
	for _, snap := range snaps {
		if snap == nil || !snap.Exists() {
			continue
		}
		var doc userDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, pfirestore.WrapError("users.decode", err)
		}
		result[snap.Ref.ID] = doc.toDomain(snap.Ref.ID)
	}
	return result, nil
}
