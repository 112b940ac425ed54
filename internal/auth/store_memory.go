package auth

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"
)

type memoryCode struct {
	code      string
	expiresAt time.Time
}

type MemoryCodeStore struct {
	mu    sync.Mutex
	codes map[string]memoryCode
}

func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{codes: make(map[string]memoryCode)}
}

func (s *MemoryCodeStore) Save(_ context.Context, email, code string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[email] = memoryCode{code: code, expiresAt: expiresAt}
	return nil
}

func (s *MemoryCodeStore) Consume(_ context.Context, email, code string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[email]
	if !ok {
		return false, nil
	}
	if !now.Before(c.expiresAt) {
		delete(s.codes, email)
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(c.code), []byte(code)) != 1 {
		return false, nil
	}
	delete(s.codes, email)
	return true, nil
}
