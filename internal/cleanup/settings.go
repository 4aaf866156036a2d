// Package cleanup implements the scheduled retention sweep: dormant,
// grace-watched, and grace-unwatched phases gated by a storage floor.
package cleanup

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const settingsKey = "cleanup"

// GlobalSettings controls sweep behavior across all rules.
type GlobalSettings struct {
	// StorageMinGB is the free-space floor in GB. Nil means no gate:
	// sweeps always run to completion.
	StorageMinGB *float64 `json:"storage_min_gb"`
	// DryRunMode forces every rule into dry-run during sweeps.
	DryRunMode bool `json:"dry_run_mode"`
	// CleanupIntervalHours is the scheduled sweep cadence.
	CleanupIntervalHours int `json:"cleanup_interval_hours"`
}

func defaultSettings() GlobalSettings {
	return GlobalSettings{CleanupIntervalHours: 6}
}

// Settings persists GlobalSettings as a JSON row in the settings table.
type Settings struct {
	db *sql.DB
}

// NewSettings creates a settings accessor backed by the given database.
func NewSettings(db *sql.DB) *Settings {
	return &Settings{db: db}
}

// Load returns the stored settings, persisting and returning defaults
// when none exist yet.
func (s *Settings) Load(ctx context.Context) (GlobalSettings, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, settingsKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		defaults := defaultSettings()
		if err := s.Save(ctx, defaults); err != nil {
			return GlobalSettings{}, err
		}
		return defaults, nil
	}
	if err != nil {
		return GlobalSettings{}, fmt.Errorf("failed to load cleanup settings: %w", err)
	}

	settings := defaultSettings()
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return GlobalSettings{}, fmt.Errorf("failed to parse cleanup settings: %w", err)
	}
	if settings.CleanupIntervalHours < 1 {
		settings.CleanupIntervalHours = defaultSettings().CleanupIntervalHours
	}
	return settings, nil
}

// DryRun reports whether global dry-run mode is currently enabled,
// reading the stored settings each call so toggles apply immediately.
// When the settings cannot be read it fails safe and reports dry-run.
func (s *Settings) DryRun(ctx context.Context) bool {
	settings, err := s.Load(ctx)
	if err != nil {
		return true
	}
	return settings.DryRunMode
}

// Save stores the settings.
func (s *Settings) Save(ctx context.Context, settings GlobalSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode cleanup settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		settingsKey, string(raw))
	if err != nil {
		return fmt.Errorf("failed to save cleanup settings: %w", err)
	}
	return nil
}
