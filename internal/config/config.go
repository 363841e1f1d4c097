package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrMissingEnvironmentVariables = errors.New("missing required environment variables")

// Config holds application configuration loaded from files and environment variables.
type Config struct {
	Env       string    `mapstructure:"env"`       // current application environment (local, dev, production etc)
	HTTP      HTTP      `mapstructure:"http"`      // API server section
	DB        DB        `mapstructure:"database"`  // database configuration section
	Auth      Auth      `mapstructure:"auth"`      // bearer token verification
	Telegram  Telegram  `mapstructure:"telegram"`  // admin alerts
	Player    Player    `mapstructure:"player"`    // embed player checks
	Tracker   Tracker   `mapstructure:"tracker"`   // playback progress tracking
	Compactor Compactor `mapstructure:"compactor"` // watched segment compaction job
	Client    Client    `mapstructure:"client"`    // progress API client used by the watcher
}

// HTTP contains API server parameters.
type HTTP struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DB contains database-related configuration parameters.
type DB struct {
	URL             string        `mapstructure:"-"`                 // database connection string loaded from environment
	MaxConnections  int           `mapstructure:"max_connections"`   // maximum number of open connections in the pool
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"` // maximum lifetime of a single connection
}

// DSN returns the database connection string if it is configured.
func (db DB) DSN() (string, error) {
	if db.URL == "" {
		return "", ErrMissingEnvironmentVariables
	}
	return db.URL, nil
}

// Auth holds the shared secret used to verify bearer tokens.
type Auth struct {
	JWTSecret string `mapstructure:"-"` // loaded from environment
}

// Secret returns the signing secret if it is configured.
func (a Auth) Secret() ([]byte, error) {
	if a.JWTSecret == "" {
		return nil, ErrMissingEnvironmentVariables
	}
	return []byte(a.JWTSecret), nil
}

// Telegram configures admin alerts. Alerts are disabled when the token is empty.
type Telegram struct {
	APIToken    string `mapstructure:"-"`             // Telegram API token loaded from environment
	AdminChatID int64  `mapstructure:"admin_chat_id"` // chat that receives server-side alerts
}

// Enabled reports whether alerts can be delivered.
func (t Telegram) Enabled() bool {
	return t.APIToken != "" && t.AdminChatID != 0
}

// Player configures the embeddability check run before mounting a video.
type Player struct {
	OEmbedURL    string        `mapstructure:"oembed_url"`    // empty disables the check
	CheckTimeout time.Duration `mapstructure:"check_timeout"` // timeout of a single oEmbed request
}

// Tracker holds the playback sampling parameters.
type Tracker struct {
	PollInterval        time.Duration `mapstructure:"poll_interval"`        // how often the player is sampled
	SaveInterval        time.Duration `mapstructure:"save_interval"`        // minimum gap between incremental saves
	SkipTolerance       float64       `mapstructure:"skip_tolerance"`       // seconds allowed past the furthest watched position
	CompletionThreshold float64       `mapstructure:"completion_threshold"` // fraction of duration that counts as completed
}

// Compactor configures the watched segment compaction job.
type Compactor struct {
	Schedule      string  `mapstructure:"schedule"`       // cron spec
	MergeGap      float64 `mapstructure:"merge_gap"`      // seconds between segments that still count as adjacent
	MaxConcurrent int     `mapstructure:"max_concurrent"` // assignments compacted in parallel
}

// Client configures the progress API client.
type Client struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"-"` // bearer token loaded from environment
	Timeout time.Duration `mapstructure:"timeout"`
}

// Validate checks that the client can reach the API.
func (c Client) Validate() error {
	if c.BaseURL == "" || c.Token == "" {
		return ErrMissingEnvironmentVariables
	}
	return nil
}

// Load reads configuration from config files and environment variables.
func Load() (*Config, error) {
	// Pick up a local .env file if there is one.
	_ = godotenv.Load()

	// Initialize Viper instance and base config options.
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")

	setDefaults(v)

	// Configure environment variable handling and key mapping.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // map nested keys to ENV style names
	v.AutomaticEnv()

	// Bind explicit environment variables to configuration keys.
	_ = v.BindEnv("telegram_api_token", "TELEGRAM_API_TOKEN")
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("watch_token", "WATCH_TOKEN")
	_ = v.BindEnv("env", "APP_ENV")

	// Try to read configuration file if present.
	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	// Unmarshal configuration into strongly typed struct.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// Load sensitive values from environment variables.
	cfg.Telegram.APIToken = v.GetString("telegram_api_token")
	cfg.DB.URL = v.GetString("database_url")
	cfg.Auth.JWTSecret = v.GetString("jwt_secret")
	cfg.Client.Token = v.GetString("watch_token")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", "10s")

	v.SetDefault("database.max_connections", 20)
	v.SetDefault("database.max_conn_lifetime", "30s")

	v.SetDefault("player.oembed_url", "https://www.youtube.com/oembed")
	v.SetDefault("player.check_timeout", "5s")

	v.SetDefault("tracker.poll_interval", "500ms")
	v.SetDefault("tracker.save_interval", "5s")
	v.SetDefault("tracker.skip_tolerance", 2.0)
	v.SetDefault("tracker.completion_threshold", 0.95)

	v.SetDefault("compactor.schedule", "@every 5m")
	v.SetDefault("compactor.merge_gap", 1.0)
	v.SetDefault("compactor.max_concurrent", 10)

	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.timeout", "10s")
}
