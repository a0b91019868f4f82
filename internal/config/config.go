// Package config loads the engine's site settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings are the deployment-level knobs of the draw engine. Field names
// mirror the hosting platform's site settings.
type Settings struct {
	// Enabled gates draw creation site-wide.
	Enabled bool `yaml:"enabled"`
	// GlobalMinParticipants is the floor every draw's minimum must meet.
	GlobalMinParticipants int `yaml:"global_min_participants"`
	// LockDelayMinutes is how long before the draw instant edits freeze.
	LockDelayMinutes int `yaml:"lock_delay_minutes"`
	// ExcludedGroups never participate in (or create) draws.
	ExcludedGroups []string `yaml:"excluded_groups"`
	// AllowedCategoryIDs restricts which categories may host draws.
	// Empty means all categories.
	AllowedCategoryIDs []int64 `yaml:"allowed_category_ids"`

	// DatabasePath is the SQLite file holding draw state.
	DatabasePath string `yaml:"database_path"`
	// ListenAddr is the HTTP bind address of the serve command.
	ListenAddr string `yaml:"listen_addr"`
	// ForumBaseURL is the hosting platform's draw-integration API.
	ForumBaseURL string `yaml:"forum_base_url"`
	// ForumAPIKey authenticates calls to the forum API.
	ForumAPIKey string `yaml:"forum_api_key"`
}

// Default returns the settings used when the file omits a key.
func Default() Settings {
	return Settings{
		Enabled:               true,
		GlobalMinParticipants: 5,
		LockDelayMinutes:      30,
		DatabasePath:          "topicdraw.db",
		ListenAddr:            ":8080",
		ForumBaseURL:          "http://127.0.0.1:3000/draw-api",
	}
}

// LockDelay returns the lock delay as a duration.
func (s Settings) LockDelay() time.Duration {
	return time.Duration(s.LockDelayMinutes) * time.Minute
}

// Load reads settings from path, applying defaults for omitted keys.
// A missing file is not an error: defaults are returned as-is.
func Load(path string) (Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return s, fmt.Errorf("config %s: %w", path, err)
	}
	return s, nil
}

func (s Settings) validate() error {
	if s.GlobalMinParticipants < 1 {
		return fmt.Errorf("global_min_participants must be at least 1, got %d", s.GlobalMinParticipants)
	}
	if s.LockDelayMinutes < 0 {
		return fmt.Errorf("lock_delay_minutes must not be negative, got %d", s.LockDelayMinutes)
	}
	if s.DatabasePath == "" {
		return errors.New("database_path must not be empty")
	}
	return nil
}
