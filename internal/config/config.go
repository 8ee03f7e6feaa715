package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	appLog "remindcal/internal/log"
)

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "Asia/Jakarta"
	defaultRefreshCron  = "*/5 * * * *"
	defaultPreviewCount = 5
	defaultCacheDir     = "/var/lib/remindcal/ics-cache"

	// MaxPreviewCount bounds how many runs a single request may ask for.
	MaxPreviewCount = 100
)

// reminderNamespace seeds deterministic IDs for reminders configured
// without one, so that IDs survive restarts without a save.
var reminderNamespace = uuid.MustParse("6f1d3a52-8c1e-4b7a-9d0e-2f4c5b6a7e81")

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone all schedules are evaluated in
	// (e.g. "Asia/Jakarta").
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/5 * * * *")
	// controlling how often the upcoming-runs snapshot is rebuilt.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// PreviewCount is the number of upcoming runs computed per reminder.
	PreviewCount int `yaml:"preview_count" json:"preview_count"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// CORSOrigins, if non-empty, enables CORS for the listed origins.
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	// ImportICS lists .ics file paths or http(s) feed URLs whose recurring
	// events are added as reminders at startup.
	ImportICS []string `yaml:"import_ics" json:"import_ics"`

	// CacheDir holds the last good copy of every imported feed URL.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Reminders []ReminderConfig `yaml:"reminders" json:"reminders"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		RefreshCron:  defaultRefreshCron,
		PreviewCount: defaultPreviewCount,
		LogLevel:     "info",
		CORSOrigins:  []string{},
		ImportICS:    []string{},
		CacheDir:     defaultCacheDir,
		Reminders: []ReminderConfig{
			{
				Name:     "Pengingat harian",
				Channel:  "telegram",
				Template: "Halo {name}, ini pengingat dari KHF.",
				Enabled:  false,
				Schedule: ScheduleConfig{
					Freq:       "daily",
					Time:       "09:00",
					WeeklyDays: []int{1, 3, 5},
					MonthlyDay: 5,
					StartDate:  time.Now().Format("2006-01-02"),
				},
			},
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.PreviewCount <= 0 {
		c.PreviewCount = defaultPreviewCount
	}
	if c.PreviewCount > MaxPreviewCount {
		c.PreviewCount = MaxPreviewCount
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = []string{}
	}
	if c.ImportICS == nil {
		c.ImportICS = []string{}
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.Reminders == nil {
		c.Reminders = []ReminderConfig{}
	}
	seen := make(map[string]int, len(c.Reminders))
	for i := range c.Reminders {
		c.Reminders[i].normalize(seen)
	}
}

// Location resolves Timezone, falling back to time.Local when it is unknown.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".remindcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
