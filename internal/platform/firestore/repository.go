package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
)

// Document is a decoded snapshot with its id and server timestamps.
type Document[T any] struct {
	ID         string
	Data       T
	UpdateTime time.Time
}

// MutationResult carries the server write time.
type MutationResult struct {
	UpdateTime time.Time
}

// BaseRepository binds a struct type to one collection.
type BaseRepository[T any] struct {
	provider   *Provider
	collection string
}

// NewBaseRepository binds T to collection. T is encoded through its firestore struct tags.
func NewBaseRepository[T any](provider *Provider, collection string) *BaseRepository[T] {
	return &BaseRepository[T]{provider: provider, collection: strings.TrimSpace(collection)}
}

// Get loads one document. A missing document yields an Error whose IsNotFound is true.
func (r *BaseRepository[T]) Get(ctx context.Context, id string) (Document[T], error) {
	ref, err := r.DocumentRef(ctx, id)
	if err != nil {
		return Document[T]{}, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return Document[T]{}, WrapError(r.collection+".get", err)
	}
	var data T
	if err := snap.DataTo(&data); err != nil {
		return Document[T]{}, WrapError(r.collection+".decode", err)
	}
	return Document[T]{ID: snap.Ref.ID, Data: data, UpdateTime: snap.UpdateTime}, nil
}

// Set overwrites the document.
func (r *BaseRepository[T]) Set(ctx context.Context, id string, value T) (MutationResult, error) {
	ref, err := r.DocumentRef(ctx, id)
	if err != nil {
		return MutationResult{}, err
	}
	res, err := ref.Set(ctx, value)
	if err != nil {
		return MutationResult{}, WrapError(r.collection+".set", err)
	}
	return MutationResult{UpdateTime: res.UpdateTime}, nil
}

// DocumentRef resolves id within the collection for transactional reads and writes.
func (r *BaseRepository[T]) DocumentRef(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(r.collection+".document", errors.New("document id is required"))
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(r.collection).Doc(id), nil
}
