package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"telkatv/internal/ratelimit"
)

// ErrMissingCredentials is returned when the PocketBase backend is
// selected without admin credentials configured.
var ErrMissingCredentials = errors.New("POCKETBASE_ADMIN_EMAIL and POCKETBASE_ADMIN_PASSWORD must be set")

// ChannelSeed is one channel the collector fetches, used when the
// upstream directory is unavailable or a curated subset is wanted.
type ChannelSeed struct {
	ID       int64  `yaml:"id"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

// Config holds collector and server configuration.
type Config struct {
	DBPath             string           `yaml:"db_path"`
	DaysAhead          int              `yaml:"days_ahead"`
	RetentionDays      int              `yaml:"retention_days"`
	ServerPort         string           `yaml:"server_port"`
	UserAgent          string           `yaml:"user_agent"`
	Timeout            time.Duration    `yaml:"-"`
	RedisURL           string           `yaml:"redis_url"`
	PocketBaseURL      string           `yaml:"pocketbase_url"`
	PocketBaseEmail    string           `yaml:"pocketbase_admin_email"`
	PocketBasePassword string           `yaml:"pocketbase_admin_password"`
	RateLimit          ratelimit.Config `yaml:"rate_limit"`
	Channels           []ChannelSeed    `yaml:"channels"`
}

// Load builds config from environment variables, falling back to
// .env.local and .env files for anything unset. Nothing is required:
// the SQLite backend runs with defaults alone, and the PocketBase
// credentials are checked only when that backend is selected.
func Load() (*Config, error) {
	loadEnvFiles()

	c := &Config{
		DBPath:             envOr("TV_DB_PATH", "tv_programs.db"),
		DaysAhead:          envInt("FETCH_DAYS_AHEAD", 7),
		RetentionDays:      envInt("RETENTION_DAYS", 30),
		ServerPort:         envOr("SERVER_PORT", "8080"),
		UserAgent:          os.Getenv("FETCHER_USER_AGENT"),
		Timeout:            15 * time.Second,
		RedisURL:           os.Getenv("REDIS_URL"),
		PocketBaseURL:      envOr("POCKETBASE_URL", "http://127.0.0.1:8090"),
		PocketBaseEmail:    os.Getenv("POCKETBASE_ADMIN_EMAIL"),
		PocketBasePassword: os.Getenv("POCKETBASE_ADMIN_PASSWORD"),
		RateLimit:          ratelimit.DefaultConfig(),
		Channels:           DefaultChannels(),
	}

	if s := os.Getenv("FETCHER_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			c.Timeout = d
		}
	}

	return c, nil
}

// fileConfig mirrors Config for YAML decoding; timeout comes in as a
// duration string.
type fileConfig struct {
	Config  `yaml:",inline"`
	Timeout string `yaml:"timeout"`
}

// LoadFromFile loads env-based config first, then overlays any values
// present in the YAML file. A channels list in the file replaces the
// default set entirely.
func LoadFromFile(path string) (*Config, error) {
	c, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	f := fileConfig{Config: *c}
	f.Channels = nil
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	out := f.Config
	if len(out.Channels) == 0 {
		out.Channels = c.Channels
	}
	if f.Timeout != "" {
		if d, err := time.ParseDuration(f.Timeout); err == nil {
			out.Timeout = d
		}
	}
	if out.Timeout <= 0 {
		out.Timeout = c.Timeout
	}

	return &out, nil
}

// RequirePocketBase validates the credentials the PocketBase backend
// cannot run without.
func (c *Config) RequirePocketBase() error {
	if c.PocketBaseEmail == "" || c.PocketBasePassword == "" {
		return ErrMissingCredentials
	}
	return nil
}

// DefaultChannels returns the built-in channel set fetched when no
// channels are configured.
func DefaultChannels() []ChannelSeed {
	return []ChannelSeed{
		{ID: 1, Name: "YLE TV1", Category: "public"},
		{ID: 2, Name: "YLE TV2", Category: "public"},
		{ID: 3, Name: "MTV3", Category: "commercial"},
		{ID: 4, Name: "Nelonen", Category: "commercial"},
		{ID: 13, Name: "Channel 13", Category: "unknown"},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
