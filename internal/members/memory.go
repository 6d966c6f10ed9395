package members

import (
	"context"
	"strings"
	"sync"

	"github.com/galette-community/plugin-oauth2/internal/security"
)

// MemoryStore is an in-process member store used by tests and local demos.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]Record
	logins  map[string]Credentials
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[int64]Record),
		logins:  make(map[string]Credentials),
	}
}

// Add stores a record reachable by login and email with an argon2id hash of password.
func (s *MemoryStore) Add(rec Record, login, password string) error {
	hash, err := security.HashPassword(password)
	if err != nil {
		return err
	}
	s.AddWithHash(rec, login, hash)
	return nil
}

// AddWithHash stores a record with a precomputed password hash.
func (s *MemoryStore) AddWithHash(rec Record, login, hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.ID] = rec
	creds := Credentials{MemberID: rec.ID, PasswordHash: hash}
	if login != "" {
		s.logins[strings.ToLower(login)] = creds
	}
	if rec.Email != "" {
		s.logins[strings.ToLower(rec.Email)] = creds
	}
}

// Load implements Loader.
func (s *MemoryStore) Load(_ context.Context, id int64) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// LookupCredentials implements CredentialSource.
func (s *MemoryStore) LookupCredentials(_ context.Context, login string) (Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	creds, ok := s.logins[strings.ToLower(login)]
	if !ok {
		return Credentials{}, ErrNotFound
	}
	return creds, nil
}
