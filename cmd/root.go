package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ambimix/config"
	"ambimix/logger"
	"ambimix/machine"
	"ambimix/shell"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	verbose  bool
	headless bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ambimix",
	Short: "An ambient sound mixer",
	Long: `Ambimix plays a primary track together with layers of ambient sound such as
rain, waves or forest, each with its own play state and volume.

Tracks come from a catalog of built-in and user-added YouTube sources. Local
media files named after each source are played through the speaker, and the
mixer can be driven from the interactive shell or Discord slash commands.`,
	RunE: runMixer,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("database", "ambimix.db", "path to the track catalog database")
	rootCmd.PersistentFlags().String("owner", "", "owner id for user tracks (default is a generated id)")

	// Local flags for the mixer command
	rootCmd.Flags().BoolVar(&headless, "headless", false, "run without the interactive shell")
	rootCmd.Flags().StringP("media", "m", "media", "directory of local media files")
	rootCmd.Flags().Bool("output", true, "play audio through the speaker")
	rootCmd.Flags().StringP("primary", "p", "", "primary track to load at start")
	rootCmd.Flags().Bool("resume-on-bind", true, "resume active tracks as soon as their media is ready")
	rootCmd.Flags().String("discord-token", "", "Discord bot token")
	rootCmd.Flags().String("discord-webhook", "", "Discord webhook URL")
	rootCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().String("log-format", "text", "log format (text, json)")

	// Bind flags to viper
	viper.BindPFlag("catalog.database", rootCmd.PersistentFlags().Lookup("database"))
	viper.BindPFlag("catalog.owner", rootCmd.PersistentFlags().Lookup("owner"))
	viper.BindPFlag("media.dir", rootCmd.Flags().Lookup("media"))
	viper.BindPFlag("media.output", rootCmd.Flags().Lookup("output"))
	viper.BindPFlag("primary.file", rootCmd.Flags().Lookup("primary"))
	viper.BindPFlag("mixer.resume_on_bind", rootCmd.Flags().Lookup("resume-on-bind"))
	viper.BindPFlag("discord.token", rootCmd.Flags().Lookup("discord-token"))
	viper.BindPFlag("discord.webhook_url", rootCmd.Flags().Lookup("discord-webhook"))
	viper.BindPFlag("logging.level", rootCmd.Flags().Lookup("log-level"))
	viper.BindPFlag("logging.format", rootCmd.Flags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if verbose {
		viper.Set("logging.level", "debug")
	}
}

// runMixer starts the mixer with the shell, or headless until a signal
func runMixer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	// Setup logging
	if err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	// Create and initialize the machine
	m := machine.New(cfg)
	if err := m.Initialize(); err != nil {
		m.Stop()
		return fmt.Errorf("failed to initialize machine: %w", err)
	}

	// Start the machine
	if err := m.Start(); err != nil {
		m.Stop()
		return fmt.Errorf("failed to start machine: %w", err)
	}

	if headless {
		err = waitForSignal(m)
	} else {
		err = runShell(cfg, m)
	}

	// Graceful shutdown
	if stopErr := m.Stop(); stopErr != nil {
		return fmt.Errorf("failed to stop machine gracefully: %w", stopErr)
	}
	return err
}

func waitForSignal(m *machine.Machine) error {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or error
	select {
	case sig := <-signalChan:
		fmt.Printf("\nReceived %s, shutting down gracefully...\n", sig)
	case err := <-m.Error():
		fmt.Printf("Error occurred: %v\n", err)
		return err
	}
	return nil
}

func runShell(cfg *config.Config, m *machine.Machine) error {
	sh := shell.New(m.Controller(), m.Primary(), m.Metadata(), os.Stdout)
	logOut, err := sh.Open()
	if err != nil {
		return err
	}
	defer sh.Close()

	// Keep log lines off the prompt
	if err := logger.SetupWriter(logOut, cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sh.Run(ctx) }()

	select {
	case err := <-done:
		return err
	case err := <-m.Error():
		return err
	case <-ctx.Done():
		return nil
	}
}
