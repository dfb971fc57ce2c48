package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var (
	dbPath       string
	settingsFile string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:     "eukleia",
	Short:   "Structural model editor tools",
	Long:    brand.Sprint("eukleia") + " — replay edit scripts, inspect models and manage snapshots\n" + subtle.Sprint("Runs the same editor core as the server, without a browser"),
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.SetVersionTemplate("eukleia {{ .Version }}\n")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./data/eukleia.db", "SQLite snapshot database")
	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "Editor settings YAML file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log editor activity to stderr")

	rootCmd.AddCommand(
		replayCmd(),
		sampleCmd(),
		showCmd(),
		snapshotsCmd(),
		settingsCmd(),
		hashPasswordCmd(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		bad.Fprintf(os.Stderr, "eukleia: %v\n", err)
		os.Exit(1)
	}
}
