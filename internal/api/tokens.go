package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dyike/QuantDesk/models"
)

// TokenStore persists the bearer token pair between requests.
type TokenStore interface {
	Load() (models.Tokens, error)
	Save(models.Tokens) error
	Clear() error
}

// FileTokenStore keeps tokens in a JSON file readable only by the owner.
type FileTokenStore struct {
	path string
	mu   sync.Mutex
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (s *FileTokenStore) Load() (models.Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tok models.Tokens
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return tok, nil
	}
	if err != nil {
		return tok, fmt.Errorf("read tokens: %w", err)
	}
	if err := json.Unmarshal(data, &tok); err != nil {
		return models.Tokens{}, fmt.Errorf("parse tokens: %w", err)
	}
	return tok, nil
}

func (s *FileTokenStore) Save(tok models.Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// MemoryTokenStore is a process-local TokenStore.
type MemoryTokenStore struct {
	mu  sync.Mutex
	tok models.Tokens
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Load() (models.Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tok, nil
}

func (s *MemoryTokenStore) Save(tok models.Tokens) error {
	s.mu.Lock()
	s.tok = tok
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	return s.Save(models.Tokens{})
}

// expiryLeeway refreshes tokens slightly before they actually expire.
const expiryLeeway = 10 * time.Second

// TokenExpiry reads the exp claim without verifying the signature.
func TokenExpiry(raw string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func tokenExpired(raw string, now time.Time) bool {
	exp, ok := TokenExpiry(raw)
	if !ok {
		return false
	}
	return !exp.After(now.Add(expiryLeeway))
}
