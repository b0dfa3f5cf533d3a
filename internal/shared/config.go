package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Catalog     CatalogConfig     `toml:"catalog"`
	Discovery   DiscoveryConfig   `toml:"discovery"`
	Scraper     ScraperConfig     `toml:"scraper"`
	Scheduler   SchedulerConfig   `toml:"scheduler"`
	Database    DatabaseConfig    `toml:"database"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig holds the MusicKit signing material or a pre-signed developer token.
type CredentialsConfig struct {
	TeamID         string        `toml:"team_id"`
	KeyID          string        `toml:"key_id"`
	KeyPath        string        `toml:"key_path"`
	DeveloperToken string        `toml:"developer_token"`
	MusicUserToken string        `toml:"music_user_token"`
	TokenTTL       time.Duration `toml:"token_ttl"`
	RefreshBefore  time.Duration `toml:"refresh_before"`
}

// CatalogConfig contains catalog API settings.
type CatalogConfig struct {
	BaseURL           string        `toml:"base_url"`
	Storefront        string        `toml:"storefront"`
	Timeout           time.Duration `toml:"timeout"`
	CheckRegions      bool          `toml:"check_regions"`
	RegionStorefronts []string      `toml:"region_storefronts"`
	RegionChunkSize   int           `toml:"region_chunk_size"`
	RegionConcurrency int           `toml:"region_concurrency"`
}

// DiscoveryConfig lists the sources crawled by a discovery pass.
type DiscoveryConfig struct {
	PlaylistTrackLimit int      `toml:"playlist_track_limit"`
	ChartAlbumLimit    int      `toml:"chart_album_limit"`
	SearchLimit        int      `toml:"search_limit"`
	SearchTerms        []string `toml:"search_terms"`
	YearlySearchTerms  []string `toml:"yearly_search_terms"` // formatted with the current year
	SpatialPlaylists   []string `toml:"spatial_playlists"`
	NewMusicPlaylists  []string `toml:"new_music_playlists"`
	ChartPlaylists     []string `toml:"chart_playlists"`
}

// ScraperConfig contains credits page fetch settings.
type ScraperConfig struct {
	UserAgent      string        `toml:"user_agent"`
	AcceptLanguage string        `toml:"accept_language"`
	Timeout        time.Duration `toml:"timeout"`
	MinDelay       time.Duration `toml:"min_delay"`
	MaxDelay       time.Duration `toml:"max_delay"`
}

// SchedulerConfig contains job intervals and batch sizes.
type SchedulerConfig struct {
	DiscoveryInterval time.Duration `toml:"discovery_interval"`
	UpgradeInterval   time.Duration `toml:"upgrade_interval"`
	CreditsInterval   time.Duration `toml:"credits_interval"`
	CreditsBatchSize  int           `toml:"credits_batch_size"`
	SyncBatchSize     int           `toml:"sync_batch_size"`
	UpgradeBatchSize  int           `toml:"upgrade_batch_size"`
	RunOnStart        bool          `toml:"run_on_start"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig controls the log level and the optional rotating log file.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Environment variables that override values from the config file.
const (
	EnvTeamID         = "APPLE_TEAM_ID"
	EnvKeyID          = "APPLE_KEY_ID"
	EnvKeyPath        = "APPLE_KEY_PATH"
	EnvDeveloperToken = "APPLE_MUSIC_DEVELOPER_TOKEN"
	EnvMusicUserToken = "APPLE_MUSIC_USER_TOKEN"
	EnvDatabasePath   = "SELECTA_DATABASE_PATH"
	EnvLogLevel       = "SELECTA_LOG_LEVEL"
	EnvStorefront     = "SELECTA_STOREFRONT"
)

// LoadConfig reads a TOML file on top of [DefaultConfig], so keys missing from the file keep their defaults.
// Environment overrides are applied afterwards.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadOrDefault loads path when it exists and falls back to defaults (with env overrides) otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		config := DefaultConfig()
		config.ApplyEnv()
		return config, config.Validate()
	}
	return LoadConfig(path)
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// LoadEnv loads .env style files into the process environment. Missing files are ignored.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides credentials and a few operational settings from the environment.
func (c *Config) ApplyEnv() {
	setFromEnv(&c.Credentials.TeamID, EnvTeamID)
	setFromEnv(&c.Credentials.KeyID, EnvKeyID)
	setFromEnv(&c.Credentials.KeyPath, EnvKeyPath)
	setFromEnv(&c.Credentials.DeveloperToken, EnvDeveloperToken)
	setFromEnv(&c.Credentials.MusicUserToken, EnvMusicUserToken)
	setFromEnv(&c.Database.Path, EnvDatabasePath)
	setFromEnv(&c.Log.Level, EnvLogLevel)
	setFromEnv(&c.Catalog.Storefront, EnvStorefront)
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Validate checks values that would otherwise fail deep inside a job.
func (c *Config) Validate() error {
	switch {
	case c.Catalog.BaseURL == "":
		return fmt.Errorf("%w: catalog.base_url is required", ErrInvalidConfig)
	case c.Catalog.Storefront == "":
		return fmt.Errorf("%w: catalog.storefront is required", ErrInvalidConfig)
	case c.Scraper.MaxDelay < c.Scraper.MinDelay:
		return fmt.Errorf("%w: scraper.max_delay must be >= scraper.min_delay", ErrInvalidConfig)
	case c.Scheduler.DiscoveryInterval <= 0 || c.Scheduler.UpgradeInterval <= 0 || c.Scheduler.CreditsInterval <= 0:
		return fmt.Errorf("%w: scheduler intervals must be positive", ErrInvalidConfig)
	case c.Database.Path == "":
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	}
	return nil
}

// HasSigningKey reports whether enough material is configured to sign developer tokens.
func (c CredentialsConfig) HasSigningKey() bool {
	return c.TeamID != "" && c.KeyID != "" && c.KeyPath != ""
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
