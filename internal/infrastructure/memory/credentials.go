package memory

import (
	"context"
	"sync"
	"time"

	"github.com/gram-sevak/internal/domain"
	"github.com/gram-sevak/internal/pkg/clock"
)

// ExpiredRetention is how long an expired record is kept so that a late
// verification still reports the code as expired rather than missing.
const ExpiredRetention = 10 * time.Minute

const sweepInterval = time.Minute

// CredentialStore is the in-process credential store. One mutex guards the
// map and is held only for the map operation itself.
type CredentialStore struct {
	mu      sync.Mutex
	records map[string]domain.CredentialRecord
	clock   clock.Clock

	stop chan struct{}
	once sync.Once
}

// NewCredentialStore creates the store and starts its janitor. Call Close to stop it.
func NewCredentialStore(c clock.Clock) *CredentialStore {
	s := &CredentialStore{
		records: make(map[string]domain.CredentialRecord),
		clock:   c,
		stop:    make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *CredentialStore) Put(_ context.Context, identity string, rec domain.CredentialRecord) error {
	s.mu.Lock()
	s.records[identity] = rec
	s.mu.Unlock()
	return nil
}

func (s *CredentialStore) Get(_ context.Context, identity string) (domain.CredentialRecord, bool, error) {
	s.mu.Lock()
	rec, ok := s.records[identity]
	s.mu.Unlock()
	return rec, ok, nil
}

func (s *CredentialStore) Delete(_ context.Context, identity string) error {
	s.mu.Lock()
	delete(s.records, identity)
	s.mu.Unlock()
	return nil
}

// Consume removes the record for identity only if it still equals rec.
func (s *CredentialStore) Consume(_ context.Context, identity string, rec domain.CredentialRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[identity]
	if !ok || cur.Code != rec.Code || !cur.ExpiresAt.Equal(rec.ExpiresAt) {
		return false, nil
	}
	delete(s.records, identity)
	return true, nil
}

// Len returns the number of records currently held.
func (s *CredentialStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Close stops the janitor. Safe to call more than once.
func (s *CredentialStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *CredentialStore) janitor() {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.sweep()
		}
	}
}

// sweep drops records that expired more than ExpiredRetention ago.
func (s *CredentialStore) sweep() {
	cutoff := s.clock.Now().Add(-ExpiredRetention)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.records {
		if rec.ExpiresAt.Before(cutoff) {
			delete(s.records, id)
		}
	}
}
