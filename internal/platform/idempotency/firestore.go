package idempotency

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultCollection = "idempotencyKeys"

type firestoreRecord struct {
	Scope       string    `firestore:"scope"`
	Fingerprint string    `firestore:"fingerprint"`
	Completed   bool      `firestore:"completed"`
	Status      int       `firestore:"status"`
	ContentType string    `firestore:"contentType"`
	Body        []byte    `firestore:"body"`
	CreatedAt   time.Time `firestore:"createdAt"`
	ExpiresAt   time.Time `firestore:"expiresAt"`
}

func (r firestoreRecord) record() Record {
	return Record(r)
}

// FirestoreStore shares reservations across instances. A TTL policy on expiresAt can replace
// DeleteExpired where it is configured.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	if collection == "" {
		collection = defaultCollection
	}
	return &FirestoreStore{client: client, collection: collection}
}

func (s *FirestoreStore) doc(scope string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(documentID(scope))
}

func (s *FirestoreStore) Reserve(ctx context.Context, scope, fingerprint string, now time.Time, ttl time.Duration) (Record, State, error) {
	ref := s.doc(scope)
	var (
		out   Record
		state State
	)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil {
			var existing firestoreRecord
			if err := snap.DataTo(&existing); err != nil {
				return err
			}
			if !existing.record().expired(now) {
				out = existing.record()
				state, err = classify(out, fingerprint)
				return err
			}
		}
		fresh := firestoreRecord{Scope: scope, Fingerprint: fingerprint, CreatedAt: now, ExpiresAt: now.Add(ttl)}
		out, state = fresh.record(), StateNew
		return tx.Set(ref, fresh)
	})
	if err != nil {
		return Record{}, 0, err
	}
	return out, state, nil
}

func (s *FirestoreStore) Complete(ctx context.Context, record Record) error {
	record.Completed = true
	_, err := s.doc(record.Scope).Set(ctx, firestoreRecord(record))
	return err
}

func (s *FirestoreStore) Release(ctx context.Context, scope string) error {
	_, err := s.doc(scope).Delete(ctx)
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}

func (s *FirestoreStore) DeleteExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 200
	}
	docs, err := s.client.Collection(s.collection).
		Where("expiresAt", "<=", now).
		Limit(limit).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("idempotency: query expired keys: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
	for _, doc := range docs {
		job, err := bw.Delete(doc.Ref)
		if err != nil {
			bw.End()
			return 0, err
		}
		jobs = append(jobs, job)
	}
	bw.End()

	deleted := 0
	for _, job := range jobs {
		if _, err := job.Results(); err == nil {
			deleted++
		}
	}
	return deleted, nil
}
