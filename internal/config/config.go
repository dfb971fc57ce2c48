package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/eukleia/eukleia/internal/editor"
)

type Config struct {
	Port           int           `envconfig:"PORT" default:"8080"`
	DatabaseURL    string        `envconfig:"DATABASE_URL"`
	SQLitePath     string        `envconfig:"SQLITE_PATH" default:"./data/eukleia.db"`
	JWTSecret      string        `envconfig:"JWT_SECRET" default:"dev-secret-change-in-production"`
	PasswordHash   string        `envconfig:"PASSWORD_HASH"`
	AllowedOrigins string        `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	SettingsFile   string        `envconfig:"SETTINGS_FILE"`
	TickInterval   time.Duration `envconfig:"TICK_INTERVAL" default:"16ms"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("TICK_INTERVAL must be positive, got %s", cfg.TickInterval)
	}
	return &cfg, nil
}

// Origins splits ALLOWED_ORIGINS.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// OriginPatterns strips the scheme from Origins, the form the websocket
// accept check expects.
func (c *Config) OriginPatterns() []string {
	origins := c.Origins()
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		out = append(out, o)
	}
	return out
}

// Level parses LOG_LEVEL, falling back to info.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// LoadSettings reads editor settings from a YAML file. Keys missing from
// the file keep their defaults; an empty path returns the defaults.
func LoadSettings(path string) (editor.Settings, error) {
	settings := editor.DefaultSettings()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if err := validateSettings(settings); err != nil {
		return settings, fmt.Errorf("settings %s: %w", path, err)
	}
	return settings, nil
}

// SaveSettings writes settings as YAML.
func SaveSettings(path string, settings editor.Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func validateSettings(s editor.Settings) error {
	var errs []error
	if s.Width <= 0 || s.Height <= 0 {
		errs = append(errs, fmt.Errorf("width and height must be positive"))
	}
	if s.Viewport.MinZoom <= 0 || s.Viewport.MaxZoom < s.Viewport.MinZoom {
		errs = append(errs, fmt.Errorf("zoom bounds [%g, %g] are invalid", s.Viewport.MinZoom, s.Viewport.MaxZoom))
	}
	if s.Viewport.ZoomSpeed <= 0 {
		errs = append(errs, fmt.Errorf("zoom speed must be positive"))
	}
	if s.Snap.GridSnap && s.Snap.GridSize <= 0 {
		errs = append(errs, fmt.Errorf("grid size must be positive when grid snapping is on"))
	}
	return errors.Join(errs...)
}
