// Command noticeboard crawls university notice boards in batches and stores
// the harvested postings.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	root := &cobra.Command{
		Use:           "noticeboard",
		Short:         "University notice-board harvester",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newCrawlCmd())
	root.AddCommand(newTemplatesCmd())

	if err := root.Execute(); err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("fatal", "error", err)
		os.Exit(1)
	}
}
