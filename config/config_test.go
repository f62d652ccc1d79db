package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func validConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Database:       "ambimix.db",
			ResyncInterval: time.Minute,
		},
		Mixer: MixerConfig{
			ResumeOnBind:  true,
			DefaultVolume: 0.5,
		},
		Media: MediaConfig{
			Dir:        "media",
			SampleRate: 48000,
		},
		Primary: PrimaryConfig{
			ProgressInterval: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(c *Config)
		wantField string
	}{
		{
			name:   "valid config",
			modify: func(c *Config) {},
		},
		{
			name: "valid discord config",
			modify: func(c *Config) {
				c.Discord = DiscordConfig{
					Token:      "test-token",
					GuildID:    "123456789012345678",
					ChannelID:  "123456789012345679",
					WebhookURL: "https://discord.com/api/webhooks/1/abc",
				}
			},
		},
		{
			name:      "missing database",
			modify:    func(c *Config) { c.Catalog.Database = "" },
			wantField: "catalog.database",
		},
		{
			name:      "volume above range",
			modify:    func(c *Config) { c.Mixer.DefaultVolume = 1.5 },
			wantField: "mixer.default_volume",
		},
		{
			name:      "sample rate too low",
			modify:    func(c *Config) { c.Media.SampleRate = 100 },
			wantField: "media.sample_rate",
		},
		{
			name:      "channel without token",
			modify:    func(c *Config) { c.Discord.ChannelID = "123456789012345678" },
			wantField: "discord.token",
		},
		{
			name: "bad channel id",
			modify: func(c *Config) {
				c.Discord.Token = "test-token"
				c.Discord.ChannelID = "general"
			},
			wantField: "discord.channel_id",
		},
		{
			name:      "bad guild id",
			modify:    func(c *Config) { c.Discord.GuildID = "guild" },
			wantField: "discord.guild_id",
		},
		{
			name:      "webhook without scheme",
			modify:    func(c *Config) { c.Discord.WebhookURL = "discord.com/api/webhooks/1/abc" },
			wantField: "discord.webhook_url",
		},
		{
			name:      "unknown log format",
			modify:    func(c *Config) { c.Logging.Format = "xml" },
			wantField: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Config.Validate() error = %v, want nil", err)
				}
				return
			}

			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("Config.Validate() error = %v, want *ConfigError", err)
			}
			if cerr.Field != tt.wantField {
				t.Errorf("ConfigError.Field = %q, want %q", cerr.Field, tt.wantField)
			}
		})
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Catalog.Database != "ambimix.db" {
		t.Errorf("Catalog.Database = %q, want ambimix.db", cfg.Catalog.Database)
	}
	if !cfg.Mixer.ResumeOnBind {
		t.Error("Mixer.ResumeOnBind = false, want true")
	}
	if cfg.Mixer.DefaultVolume != 0.5 {
		t.Errorf("Mixer.DefaultVolume = %v, want 0.5", cfg.Mixer.DefaultVolume)
	}
	if cfg.Primary.ProgressInterval != 500*time.Millisecond {
		t.Errorf("Primary.ProgressInterval = %v, want 500ms", cfg.Primary.ProgressInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", t.TempDir())

	yaml := `catalog:
  database: /var/lib/ambimix/tracks.db
  resync_interval: 30s
mixer:
  resume_on_bind: false
media:
  dir: /srv/media
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AMBIMIX_MEDIA_DIR", "/opt/media")
	t.Setenv("AMBIMIX_LOGGING_LEVEL", "debug")

	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Catalog.Database != "/var/lib/ambimix/tracks.db" {
		t.Errorf("Catalog.Database = %q", cfg.Catalog.Database)
	}
	if cfg.Catalog.ResyncInterval != 30*time.Second {
		t.Errorf("Catalog.ResyncInterval = %v, want 30s", cfg.Catalog.ResyncInterval)
	}
	if cfg.Mixer.ResumeOnBind {
		t.Error("Mixer.ResumeOnBind = true, want false from file")
	}
	if cfg.Media.Dir != "/opt/media" {
		t.Errorf("Media.Dir = %q, want env override /opt/media", cfg.Media.Dir)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}
