package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"ambimix/config"
	"ambimix/logger"
	"ambimix/store"

	"github.com/spf13/cobra"
)

// tracksCmd lists the catalog without starting the mixer
var tracksCmd = &cobra.Command{
	Use:   "tracks",
	Short: "List catalog tracks",
	Long:  "List the built-in tracks and the tracks of the configured owner.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Setup("warn", "text"); err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		db, err := store.Open(cfg.Catalog.Database, cfg.Catalog.Owner)
		if err != nil {
			return fmt.Errorf("failed to open catalog: %w", err)
		}
		defer db.Close()

		tracks, err := db.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list catalog: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tNAME\tSOURCE\tKIND\tID")
		for i, t := range tracks {
			kind := "user"
			if t.BuiltIn {
				kind = "built-in"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, t.Name, t.SourceRef, kind, t.ID)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(tracksCmd)
}
