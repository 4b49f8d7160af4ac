package auth

import (
	"context"
	"sync"
	"time"
)

type memoryCode struct {
	VerificationCode
	expiresAt time.Time
}

// MemoryCodeStore keeps pending codes in process memory.
type MemoryCodeStore struct {
	mu    sync.Mutex
	codes map[string]*memoryCode
	now   func() time.Time
}

// NewMemoryCodeStore returns an empty store. A nil clock means time.Now.
func NewMemoryCodeStore(now func() time.Time) *MemoryCodeStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryCodeStore{codes: make(map[string]*memoryCode), now: now}
}

func (s *MemoryCodeStore) Save(_ context.Context, email, hash string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.codes[email] = &memoryCode{VerificationCode: VerificationCode{Hash: hash}, expiresAt: s.now().Add(ttl)}
	return nil
}

// live must be called with the lock held.
func (s *MemoryCodeStore) live(email string) *memoryCode {
	c, ok := s.codes[email]
	if !ok {
		return nil
	}
	if !s.now().Before(c.expiresAt) {
		delete(s.codes, email)
		return nil
	}
	return c
}

func (s *MemoryCodeStore) Get(_ context.Context, email string) (*VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.live(email)
	if c == nil {
		return nil, ErrCodeNotFound
	}
	code := c.VerificationCode
	return &code, nil
}

func (s *MemoryCodeStore) IncrementAttempts(_ context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.live(email)
	if c == nil {
		return 0, ErrCodeNotFound
	}
	c.Attempts++
	return c.Attempts, nil
}

func (s *MemoryCodeStore) Delete(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.live(email) != nil
	delete(s.codes, email)
	return live, nil
}

// MemoryDenylist keeps revoked token IDs in process memory.
type MemoryDenylist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryDenylist returns an empty denylist. A nil clock means time.Now.
func NewMemoryDenylist(now func() time.Time) *MemoryDenylist {
	if now == nil {
		now = time.Now
	}
	return &MemoryDenylist{revoked: make(map[string]time.Time), now: now}
}

func (d *MemoryDenylist) Revoke(_ context.Context, jti string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for id, exp := range d.revoked {
		if !now.Before(exp) {
			delete(d.revoked, id)
		}
	}
	if now.Before(until) {
		d.revoked[jti] = until
	}
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	until, ok := d.revoked[jti]
	return ok && d.now().Before(until), nil
}
