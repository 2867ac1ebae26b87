package host

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SettingsVersion is stamped into settings files on save. Load refuses
// files stamped with a newer version.
const SettingsVersion = 1

// Settings is everything a host persists across restarts.
type Settings struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`

	// DisplayName is the user-facing host name.
	DisplayName string `json:"display_name,omitempty"`

	// PermanentPairingCode is the backend-issued long-lived pairing
	// code, used as the fallback when Connect is called without one.
	PermanentPairingCode string `json:"permanent_pairing_code,omitempty"`

	// PermanentCodeExpiresAt is when that code stops working.
	PermanentCodeExpiresAt time.Time `json:"permanent_code_expires_at,omitempty"`

	// Remotes records every remote that has ever joined this host.
	Remotes []RemoteRecord `json:"remotes,omitempty"`
}

// RemoteRecord is the persisted form of a remote known to this host.
type RemoteRecord struct {
	PeerID string `json:"peer_id"`

	// Kind is "remote" or "observer".
	Kind string `json:"kind,omitempty"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at,omitempty"`
}

// SettingsStore reads and writes host settings as JSON on disk. A
// store serializes its own callers; create one per path.
type SettingsStore struct {
	mu   sync.Mutex
	path string
}

// NewSettingsStore creates a store backed by the given file path.
func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path}
}

// Save writes the settings to disk, stamping Version and SavedAt. The
// file is swapped into place with a rename, so a crash mid-save cannot
// tear the previous copy.
func (s *SettingsStore) Save(settings *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	settings.Version = SettingsVersion
	settings.SavedAt = time.Now()

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	// 0600: the file holds the fallback pairing code.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load reads settings back from disk. A missing file is not an error:
// Load returns nil, nil so first boot looks like empty settings.
func (s *SettingsStore) Load() (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if settings.Version > SettingsVersion {
		return nil, fmt.Errorf("%w: %d", ErrSettingsVersion, settings.Version)
	}

	return &settings, nil
}

// Clear deletes the settings file if it exists.
func (s *SettingsStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
