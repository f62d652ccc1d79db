package config

import (
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Catalog store configuration
	Catalog CatalogConfig `mapstructure:"catalog"`

	// Mixer behaviour
	Mixer MixerConfig `mapstructure:"mixer"`

	// Local media playback
	Media MediaConfig `mapstructure:"media"`

	// Primary track player
	Primary PrimaryConfig `mapstructure:"primary"`

	// Discord configuration
	Discord DiscordConfig `mapstructure:"discord"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// CatalogConfig holds the track catalog settings
type CatalogConfig struct {
	Database       string        `mapstructure:"database"`
	Owner          string        `mapstructure:"owner"`     // empty means a generated, persisted id
	SeedFile       string        `mapstructure:"seed_file"` // empty means the embedded seed
	ResyncInterval time.Duration `mapstructure:"resync_interval"`
}

// MixerConfig holds mixer policy settings
type MixerConfig struct {
	ResumeOnBind  bool    `mapstructure:"resume_on_bind"`
	DefaultVolume float64 `mapstructure:"default_volume"`
}

// MediaConfig holds local audio settings
type MediaConfig struct {
	Dir        string `mapstructure:"dir"`
	SampleRate int    `mapstructure:"sample_rate"`
	Output     bool   `mapstructure:"output"`
}

// PrimaryConfig holds primary player settings
type PrimaryConfig struct {
	File             string        `mapstructure:"file"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
}

// DiscordConfig holds Discord-specific configuration
type DiscordConfig struct {
	Token      string `mapstructure:"token"`
	GuildID    string `mapstructure:"guild_id"`
	ChannelID  string `mapstructure:"channel_id"`
	WebhookURL string `mapstructure:"webhook_url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("catalog.database", "ambimix.db")
	v.SetDefault("catalog.owner", "")
	v.SetDefault("catalog.seed_file", "")
	v.SetDefault("catalog.resync_interval", "1m")
	v.SetDefault("mixer.resume_on_bind", true)
	v.SetDefault("mixer.default_volume", 0.5)
	v.SetDefault("media.dir", "media")
	v.SetDefault("media.sample_rate", 48000)
	v.SetDefault("media.output", true)
	v.SetDefault("primary.file", "")
	v.SetDefault("primary.progress_interval", "500ms")
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.guild_id", "")
	v.SetDefault("discord.channel_id", "")
	v.SetDefault("discord.webhook_url", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load reads configuration through v.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	// Read config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.ambimix")
	v.AddConfigPath("/etc/ambimix")

	// Allow environment variables, AMBIMIX_CATALOG_DATABASE and so on
	v.SetEnvPrefix("AMBIMIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read the config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		slog.Debug("No config file found, using defaults and environment variables")
	} else {
		slog.Info("Using config file", slog.String("file", v.ConfigFileUsed()))
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Catalog.Database == "" {
		return &ConfigError{Field: "catalog.database", Message: "database path is required"}
	}
	if c.Catalog.ResyncInterval < 0 {
		return &ConfigError{Field: "catalog.resync_interval", Message: "must not be negative"}
	}
	if v := c.Mixer.DefaultVolume; v < 0 || v > 1 {
		return &ConfigError{Field: "mixer.default_volume", Message: "must be between 0 and 1"}
	}
	if c.Media.SampleRate < 8000 || c.Media.SampleRate > 192000 {
		return &ConfigError{Field: "media.sample_rate", Message: "must be between 8000 and 192000"}
	}
	if c.Primary.ProgressInterval < 0 {
		return &ConfigError{Field: "primary.progress_interval", Message: "must not be negative"}
	}

	if c.Discord.GuildID != "" {
		if _, err := snowflake.Parse(c.Discord.GuildID); err != nil {
			return &ConfigError{Field: "discord.guild_id", Message: "not a valid Discord ID"}
		}
	}
	if c.Discord.ChannelID != "" {
		if c.Discord.Token == "" {
			return &ConfigError{Field: "discord.token", Message: "Discord token is required to post to a channel"}
		}
		if _, err := snowflake.Parse(c.Discord.ChannelID); err != nil {
			return &ConfigError{Field: "discord.channel_id", Message: "not a valid Discord ID"}
		}
	}
	if c.Discord.WebhookURL != "" {
		u, err := url.Parse(c.Discord.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &ConfigError{Field: "discord.webhook_url", Message: "must be an http(s) URL"}
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be text or json"}
	}
	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
