package memory

import (
	"sync"

	"github.com/splax/umd/internal/domain"
)

// SettingsStore guards one session's preferences.
type SettingsStore struct {
	mu       sync.RWMutex
	settings domain.Settings
}

// NewSettingsStore starts from initial.
func NewSettingsStore(initial domain.Settings) *SettingsStore {
	return &SettingsStore{settings: cloneSettings(initial)}
}

// Get returns a copy of the current settings.
func (s *SettingsStore) Get() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSettings(s.settings)
}

// Update applies fn to a working copy and commits it only when fn succeeds.
func (s *SettingsStore) Update(fn func(*domain.Settings) error) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := cloneSettings(s.settings)
	if err := fn(&next); err != nil {
		return cloneSettings(s.settings), err
	}
	s.settings = next
	return cloneSettings(next), nil
}

func cloneSettings(in domain.Settings) domain.Settings {
	out := in
	if in.PasswordHash != nil {
		out.PasswordHash = append([]byte(nil), in.PasswordHash...)
	}
	return out
}
