package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Room        RoomConfig        `mapstructure:"room"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Session     SessionConfig     `mapstructure:"session"`
	Email       EmailConfig       `mapstructure:"email"`
	Development DevelopmentConfig `mapstructure:"development"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type RoomConfig struct {
	// UserTimeout is the sliding inactivity window before a user is
	// evicted from their room.
	UserTimeout time.Duration `mapstructure:"user_timeout"`
}

type DatabaseConfig struct {
	// URL is a Postgres connection string. When empty the server keeps
	// users in memory, which only makes sense in development.
	URL string `mapstructure:"url"`
}

type SessionConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type EmailConfig struct {
	SendGridKey string `mapstructure:"sendgrid_key"`
	FromName    string `mapstructure:"from_name"`
	FromAddress string `mapstructure:"from_address"`

	// InviteBaseURL is the public front-end address invitation links
	// point at.
	InviteBaseURL string `mapstructure:"invite_base_url"`
}

type DevelopmentConfig struct {
	// DevAuth enables the password-less sign-in endpoint.
	DevAuth  bool   `mapstructure:"dev_auth"`
	LogLevel string `mapstructure:"log_level"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Enable environment variables
	viper.SetEnvPrefix("CHECKERS")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("room.user_timeout", 30*time.Second)
	viper.SetDefault("database.url", "")
	viper.SetDefault("session.secret", "")
	viper.SetDefault("session.ttl", 24*time.Hour)
	viper.SetDefault("email.sendgrid_key", "")
	viper.SetDefault("email.from_name", "Online Checkers")
	viper.SetDefault("email.from_address", "noreply@checkers.example")
	viper.SetDefault("email.invite_base_url", "http://localhost:8080")
	viper.SetDefault("development.dev_auth", false)
	viper.SetDefault("development.log_level", "info")

	// Read config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults and environment
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Session.Secret == "" && !cfg.Development.DevAuth {
		return nil, fmt.Errorf("session.secret is required")
	}

	return &cfg, nil
}
