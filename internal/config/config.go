package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the server settings. Every field can be set through the
// environment or a .env file.
type Config struct {
	DBPath          string        `mapstructure:"DB_PATH"`
	Port            string        `mapstructure:"PORT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	LogFormat       string        `mapstructure:"LOG_FORMAT"`
	SessionLifetime time.Duration `mapstructure:"SESSION_LIFETIME"`
	NotifyTimeout   time.Duration `mapstructure:"NOTIFY_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	SlackBotToken  string `mapstructure:"SLACK_BOT_TOKEN"`
	SlackChannelID string `mapstructure:"SLACK_CHANNEL_ID"`

	// Slack OAuth app used for sign in
	SlackClientID     string `mapstructure:"SLACK_CLIENT_ID"`
	SlackClientSecret string `mapstructure:"SLACK_CLIENT_SECRET"`
	SlackCallbackURL  string `mapstructure:"SLACK_CALLBACK_URL"`
	SessionSecret     string `mapstructure:"SESSION_SECRET"`

	// AllowedOrigins lists the origins allowed to open the live feed besides
	// the server's own.
	AllowedOrigins []string `mapstructure:"ALLOWED_ORIGINS"`
	// DevActorHeader trusts X-Actor-ID on requests without a session. Never
	// enable it outside local development.
	DevActorHeader bool `mapstructure:"DEV_ACTOR_HEADER"`
}

// SlackEnabled reports whether announcements and direct messages go to Slack.
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != ""
}

// SlackLoginEnabled reports whether users can sign in with Slack.
func (c *Config) SlackLoginEnabled() bool {
	return c.SlackClientID != ""
}

func (c *Config) Addr() string {
	return ":" + c.Port
}

var keys = []string{
	"DB_PATH", "PORT", "LOG_LEVEL", "LOG_FORMAT",
	"SESSION_LIFETIME", "NOTIFY_TIMEOUT", "SHUTDOWN_TIMEOUT",
	"SLACK_BOT_TOKEN", "SLACK_CHANNEL_ID",
	"SLACK_CLIENT_ID", "SLACK_CLIENT_SECRET", "SLACK_CALLBACK_URL", "SESSION_SECRET",
	"ALLOWED_ORIGINS", "DEV_ACTOR_HEADER",
}

// Load reads .env when present and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	// Unmarshal only sees keys viper knows about
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_PATH", "tournament.db")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("SESSION_LIFETIME", 24*time.Hour)
	v.SetDefault("NOTIFY_TIMEOUT", 5*time.Second)
	v.SetDefault("SHUTDOWN_TIMEOUT", 30*time.Second)
	v.SetDefault("DEV_ACTOR_HEADER", false)
}

func validate(cfg *Config) error {
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	if cfg.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if cfg.SlackBotToken != "" && cfg.SlackChannelID == "" {
		return fmt.Errorf("SLACK_CHANNEL_ID is required when SLACK_BOT_TOKEN is set")
	}
	if cfg.SlackLoginEnabled() {
		if cfg.SlackClientSecret == "" || cfg.SlackCallbackURL == "" {
			return fmt.Errorf("SLACK_CLIENT_SECRET and SLACK_CALLBACK_URL are required when SLACK_CLIENT_ID is set")
		}
		if len(cfg.SessionSecret) < 32 {
			return fmt.Errorf("SESSION_SECRET must be at least 32 bytes when Slack login is enabled")
		}
	}
	if cfg.NotifyTimeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be positive")
	}
	return nil
}
