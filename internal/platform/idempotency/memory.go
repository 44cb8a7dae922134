package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps reservations in process; used with the memory order store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Reserve(_ context.Context, scope, fingerprint string, now time.Time, ttl time.Duration) (Record, State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := documentID(scope)
	if existing, ok := s.records[id]; ok && !existing.expired(now) {
		state, err := classify(existing, fingerprint)
		return existing, state, err
	}
	record := Record{Scope: scope, Fingerprint: fingerprint, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	s.records[id] = record
	return record, StateNew, nil
}

func (s *MemoryStore) Complete(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.Completed = true
	record.Body = append([]byte(nil), record.Body...)
	s.records[documentID(record.Scope)] = record
	return nil
}

func (s *MemoryStore) Release(_ context.Context, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, documentID(scope))
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, record := range s.records {
		if limit > 0 && removed >= limit {
			break
		}
		if record.expired(now) {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}
