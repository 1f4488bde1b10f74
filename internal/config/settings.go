package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
)

// Settings are the user-editable values persisted next to the cache database.
// They survive restarts and win over environment defaults when present.
type Settings struct {
	OutputFile  string   `json:"output_file"`
	Theme       Theme    `json:"theme"`
	Categories  []string `json:"categories"`
	RefreshCron string   `json:"refresh_cron"`
}

// Theme holds the colors handed to the page template.
type Theme struct {
	Background string `json:"background"`
	Card       string `json:"card"`
	Accent     string `json:"accent"`
	Text       string `json:"text"`
}

// DefaultSettings returns the settings used when no settings file exists yet.
func DefaultSettings() Settings {
	return Settings{
		OutputFile: filepath.Join("outputs", "shelf.html"),
		Theme: Theme{
			Background: "#101418",
			Card:       "#1b2129",
			Accent:     "#e3b341",
			Text:       "#e6edf3",
		},
		Categories: []string{"Suggestions", "Also Liked", "Popular"},
	}
}

func (s Settings) Validate() error {
	if strings.TrimSpace(s.OutputFile) == "" {
		return fmt.Errorf("output_file is required")
	}
	if s.RefreshCron != "" {
		if _, err := cron.ParseStandard(s.RefreshCron); err != nil {
			return fmt.Errorf("invalid refresh_cron: %w", err)
		}
	}
	return nil
}

// LoadSettings reads the settings file at path. A missing file is not an
// error; defaults are returned instead.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// SaveSettings writes settings to path, creating parent directories as
// needed.
func SaveSettings(path string, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// WithSettings overlays persisted settings onto a Config. Empty fields keep
// the environment-provided values.
func WithSettings(settings Settings) Option {
	return func(c *Config) {
		if strings.TrimSpace(settings.OutputFile) != "" {
			c.Page.OutputFile = settings.OutputFile
		}
		if strings.TrimSpace(settings.RefreshCron) != "" {
			c.Refresh.CronExpr = settings.RefreshCron
		}
	}
}
