package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/feedapp/feedclient/internal/core/domain"
	"github.com/feedapp/feedclient/internal/core/ports"
)

const tokenFileName = "tokens.json"

// FileTokenStore persists the token pair as a JSON file so sessions survive
// process restarts. Writes go through a temp file and rename, so a crash
// mid-save never leaves a half-written pair behind.
type FileTokenStore struct {
	path string
	mu   sync.Mutex
}

func NewFileTokenStore(dir string) (*FileTokenStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}
	return &FileTokenStore{path: filepath.Join(dir, tokenFileName)}, nil
}

func (s *FileTokenStore) Load() (domain.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.TokenPair{}, nil
		}
		return domain.TokenPair{}, fmt.Errorf("failed to read token file: %w", err)
	}

	var pair domain.TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return domain.TokenPair{}, fmt.Errorf("failed to parse token file: %w", err)
	}
	return pair, nil
}

func (s *FileTokenStore) Save(pair domain.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("failed to encode tokens: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

var _ ports.TokenStore = (*FileTokenStore)(nil)
