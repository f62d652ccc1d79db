package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"ambimix/assets"
	"ambimix/config"
	"ambimix/logger"
	"ambimix/playback"
	"ambimix/store"
	"ambimix/youtube"

	"github.com/spf13/cobra"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  "Commands for managing and validating ambimix configuration.",
}

// configValidateCmd validates the current configuration
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate the current configuration file and environment variables, then
check that the built-in catalog parses and that its media can be found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Setup("info", "text"); err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if err := cfg.Validate(); err != nil {
			slog.Error("Configuration validation failed", slog.Any("error", err))
			return err
		}

		report, err := checkSetup(cfg)
		if err != nil {
			slog.Error("Catalog seed check failed", slog.Any("error", err))
			return err
		}
		report.print(cmd.OutOrStdout())
		return nil
	},
}

// setupReport summarizes what the mixer will find at startup.
type setupReport struct {
	seeds      int
	unresolved []string
	mediaDir   string
	mediaFound bool
	missing    []string
	primary    string
	primaryOK  bool
	discord    bool
	webhook    bool
}

// checkSetup loads the seed catalog and looks up its media.
func checkSetup(cfg *config.Config) (*setupReport, error) {
	seeds, err := assets.LoadSeeds(cfg.Catalog.SeedFile)
	if err != nil {
		return nil, err
	}
	seeds = store.ResolveSeeds(seeds, youtube.ResolveID)

	library := playback.NewLibrary(cfg.Media.Dir)
	r := &setupReport{
		seeds:    len(seeds),
		mediaDir: library.Dir(),
		primary:  cfg.Primary.File,
		discord:  cfg.Discord.Token != "",
		webhook:  cfg.Discord.WebhookURL != "",
	}
	if info, err := os.Stat(r.mediaDir); err == nil && info.IsDir() {
		r.mediaFound = true
	}
	for _, seed := range seeds {
		switch {
		case seed.Source == "":
			r.unresolved = append(r.unresolved, seed.Name)
		case !library.Has(seed.Source):
			r.missing = append(r.missing, seed.Name)
		}
	}
	if r.primary != "" {
		if info, err := os.Stat(r.primary); err == nil && !info.IsDir() {
			r.primaryOK = true
		}
	}
	return r, nil
}

func (r *setupReport) print(w io.Writer) {
	fmt.Fprintln(w, "✅ Configuration is valid")
	fmt.Fprintf(w, "  Seed tracks: %d\n", r.seeds)
	if len(r.unresolved) > 0 {
		fmt.Fprintf(w, "  ⚠️  Seeds without a source: %s\n", strings.Join(r.unresolved, ", "))
	}
	if r.mediaFound {
		fmt.Fprintf(w, "  Media directory: %s\n", r.mediaDir)
	} else {
		fmt.Fprintf(w, "  ⚠️  Media directory %s not found, tracks will stay unbound\n", r.mediaDir)
	}
	if len(r.missing) > 0 {
		fmt.Fprintf(w, "  ⚠️  No media for: %s\n", strings.Join(r.missing, ", "))
	}
	switch {
	case r.primary == "":
	case r.primaryOK:
		fmt.Fprintf(w, "  Primary track: %s\n", r.primary)
	default:
		fmt.Fprintf(w, "  ⚠️  Primary track %s not found\n", r.primary)
	}
	fmt.Fprintf(w, "  Discord commands: %s\n", enabled(r.discord))
	fmt.Fprintf(w, "  Webhook notifications: %s\n", enabled(r.webhook))
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

// configShowCmd shows the current configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current configuration values from file and environment variables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Setup basic logging
		if err := logger.Setup("info", "text"); err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}

		// Load configuration
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		fmt.Println("Current Configuration:")
		fmt.Printf("  Catalog:\n")
		fmt.Printf("    Database: %s\n", cfg.Catalog.Database)
		fmt.Printf("    Owner: %s\n", orDefault(cfg.Catalog.Owner, "(generated)"))
		fmt.Printf("    Seed file: %s\n", orDefault(cfg.Catalog.SeedFile, "(embedded)"))
		fmt.Printf("    Resync interval: %s\n", cfg.Catalog.ResyncInterval)
		fmt.Printf("  Mixer:\n")
		fmt.Printf("    Resume on bind: %t\n", cfg.Mixer.ResumeOnBind)
		fmt.Printf("    Default volume: %.2f\n", cfg.Mixer.DefaultVolume)
		fmt.Printf("  Media:\n")
		fmt.Printf("    Directory: %s\n", cfg.Media.Dir)
		fmt.Printf("    Sample rate: %d\n", cfg.Media.SampleRate)
		fmt.Printf("    Output: %t\n", cfg.Media.Output)
		fmt.Printf("  Primary:\n")
		fmt.Printf("    File: %s\n", orDefault(cfg.Primary.File, "(none)"))
		fmt.Printf("    Progress interval: %s\n", cfg.Primary.ProgressInterval)
		fmt.Printf("  Discord:\n")
		fmt.Printf("    Token: %s\n", mask(cfg.Discord.Token, 8))
		fmt.Printf("    Guild ID: %s\n", orDefault(cfg.Discord.GuildID, "(global commands)"))
		fmt.Printf("    Channel ID: %s\n", orDefault(cfg.Discord.ChannelID, "(none)"))
		fmt.Printf("    Webhook URL: %s\n", mask(cfg.Discord.WebhookURL, 20))
		fmt.Printf("  Logging:\n")
		fmt.Printf("    Level: %s\n", cfg.Logging.Level)
		fmt.Printf("    Format: %s\n", cfg.Logging.Format)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}

// mask keeps the first keep characters of a secret for display.
func mask(secret string, keep int) string {
	switch {
	case secret == "":
		return "(none)"
	case len(secret) <= keep:
		return "***"
	default:
		return secret[:keep] + "***"
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
