// Package settings persists the user-adjustable values (default model and
// debug flag) between restarts.
package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"localchat/internal/common/fsutil"
	"localchat/pkg/types"
)

// ErrInvalidModel is returned when a model identifier contains whitespace.
var ErrInvalidModel = errors.New("model identifier must not contain whitespace")

// Store reads and updates persisted settings.
type Store interface {
	Get(ctx context.Context) (types.Settings, error)
	Update(ctx context.Context, patch types.SettingsPatch) (types.Settings, error)
}

// Apply merges patch into s after validating it.
func Apply(s types.Settings, patch types.SettingsPatch) (types.Settings, error) {
	if patch.Model != nil {
		m := strings.TrimSpace(*patch.Model)
		if strings.ContainsAny(m, " \t\r\n") {
			return s, ErrInvalidModel
		}
		s.Model = m
	}
	if patch.Debug != nil {
		s.Debug = *patch.Debug
	}
	return s, nil
}

// FileStore keeps settings in a YAML file. The file is re-read on every Get
// so edits made by the CLI are picked up by a running daemon.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store at path; '~' is expanded.
func NewFileStore(path string) (*FileStore, error) {
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	if p == "" {
		return nil, errors.New("settings path is empty")
	}
	return &FileStore{path: p}, nil
}

// Path returns the resolved file location.
func (s *FileStore) Path() string { return s.path }

// Get returns the stored settings. A missing file yields zero settings.
func (s *FileStore) Get(_ context.Context) (types.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Update applies patch and writes the file atomically.
func (s *FileStore) Update(_ context.Context, patch types.SettingsPatch) (types.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.read()
	if err != nil {
		return types.Settings{}, err
	}
	next, err := Apply(cur, patch)
	if err != nil {
		return cur, err
	}
	b, err := yaml.Marshal(next)
	if err != nil {
		return cur, fmt.Errorf("encode settings: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, b, 0o600); err != nil {
		return cur, err
	}
	return next, nil
}

func (s *FileStore) read() (types.Settings, error) {
	var st types.Settings
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(b, &st); err != nil {
		return types.Settings{}, fmt.Errorf("parse settings %s: %w", s.path, err)
	}
	st.Model = strings.TrimSpace(st.Model)
	return st, nil
}

// MemoryStore is an in-process Store for tests and ephemeral runs.
type MemoryStore struct {
	mu sync.RWMutex
	s  types.Settings
}

// NewMemoryStore returns a store seeded with initial.
func NewMemoryStore(initial types.Settings) *MemoryStore {
	return &MemoryStore{s: initial}
}

func (m *MemoryStore) Get(_ context.Context) (types.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s, nil
}

func (m *MemoryStore) Update(_ context.Context, patch types.SettingsPatch) (types.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := Apply(m.s, patch)
	if err != nil {
		return m.s, err
	}
	m.s = next
	return next, nil
}
