// Package authcode holds the pending authorization code for the in-flight
// OIDC flow. The design assumes at most one authorization in flight at a
// time, so the store is a single slot with last-write-wins semantics
// rather than a map of outstanding codes.
package authcode

import (
	"crypto/rand"
	"fmt"
	"sync"
)

const (
	// CodeLength is the length of generated authorization codes
	CodeLength = 10

	// CodeAlphabet is the character set authorization codes are drawn from
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Store is a mutex-guarded single-value store for the pending
// authorization code. It is shared between the authorize and token
// endpoints, which may be hit concurrently.
type Store struct {
	mu      sync.Mutex
	pending string
}

// NewStore creates an empty pending-code store
func NewStore() *Store {
	return &Store{}
}

// Issue generates a fresh authorization code and overwrites the pending
// slot with it. Only the most recently issued code is redeemable.
func (s *Store) Issue() (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.pending = code
	s.mu.Unlock()

	return code, nil
}

// Redeem atomically compares code against the pending slot and, on match,
// clears the slot. Codes are strictly single-use: a second redemption of
// the same code fails. An empty slot never matches.
func (s *Store) Redeem(code string) bool {
	if code == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != code {
		return false
	}
	s.pending = ""
	return true
}

// Pending returns a snapshot of the currently pending code
func (s *Store) Pending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// generateCode draws CodeLength characters from CodeAlphabet using a
// cryptographically secure random source.
func generateCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate authorization code: %w", err)
	}

	code := make([]byte, CodeLength)
	for i, b := range buf {
		code[i] = CodeAlphabet[int(b)%len(CodeAlphabet)]
	}
	return string(code), nil
}
