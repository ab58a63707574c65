package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"

	"github.com/daehakro/noticeboard/internal/config"
	"github.com/daehakro/noticeboard/internal/fetch"
	"github.com/daehakro/noticeboard/internal/selectors"
	"github.com/daehakro/noticeboard/internal/templates"
)

func newTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Inspect and validate the board template catalogue",
	}
	cmd.AddCommand(newTemplatesStatsCmd())
	cmd.AddCommand(newTemplatesLintCmd())
	cmd.AddCommand(newTemplatesSuggestCmd())
	return cmd
}

func newTemplatesStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print catalogue sizes per tier",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			var reg *templates.Registry
			if cfg.TemplatesFile != "" {
				reg, err = templates.NewRegistryFromFile(cfg.TemplatesFile, cfg.Detection.MinNotices, logger)
			} else {
				reg, err = templates.NewRegistry(cfg.Detection.MinNotices, logger)
			}
			if err != nil {
				return err
			}
			for tier, n := range reg.Stats() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", tier, n)
			}
			return nil
		},
	}
}

func newTemplatesSuggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <url>",
		Short: "Propose a selector set for an uncatalogued board page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fetcher := fetch.NewFetcher(nil, cfg.Crawler.UserAgent,
				time.Duration(cfg.Crawler.Timeout)*time.Second)
			body, err := fetcher.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
			if err != nil {
				return fmt.Errorf("failed to parse %q: %w", args[0], err)
			}

			s, ok := templates.Suggest(doc)
			if !ok {
				return fmt.Errorf("no board structure recognized at %q", args[0])
			}
			out, err := json.MarshalIndent(struct {
				Confidence float64       `json:"confidence"`
				Selectors  selectors.Set `json:"selectors"`
			}{s.Confidence, s.Selectors}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func newTemplatesLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint <file>",
		Short: "Validate a templates JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %q: %w", args[0], err)
			}
			if err := templates.Lint(data); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "templates file is valid")
			return nil
		},
	}
}
