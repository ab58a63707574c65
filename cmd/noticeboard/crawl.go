package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/daehakro/noticeboard/internal/config"
	"github.com/daehakro/noticeboard/internal/store"
	"github.com/daehakro/noticeboard/noticeboard"
)

// site is one entry of the input list file.
type site struct {
	Name      string `json:"name"`
	NoticeURL string `json:"notice_url"`
}

type siteFailure struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Error string `json:"error"`
}

// report is the batch summary written to the report directory.
type report struct {
	Timestamp    time.Time      `json:"timestamp"`
	Total        int            `json:"total"`
	Success      int            `json:"success"`
	Failed       int            `json:"failed"`
	NoticesSaved int            `json:"notices_saved"`
	Methods      map[string]int `json:"methods"`
	FailedSites  []siteFailure  `json:"failed_sites"`
}

func newCrawlCmd() *cobra.Command {
	var (
		sitesPath string
		workers   int
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl a batch of notice boards and store the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd.Context(), sitesPath, workers)
		},
	}
	cmd.Flags().StringVarP(&sitesPath, "sites", "s", "data/university_list.json", "path to the site list JSON")
	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "number of concurrent crawls")
	return cmd
}

// runCrawl returns an error only for initialization failures; per-site crawl
// failures are recorded in the report and do not affect the exit code.
func runCrawl(ctx context.Context, sitesPath string, workers int) error {
	logger := newLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	sites, err := loadSites(sitesPath)
	if err != nil {
		return err
	}
	batch := sliceBatch(sites, cfg.Batch.StartIndex, cfg.Batch.Size)
	logger.Info("batch selected", "total_sites", len(sites), "batch", len(batch),
		"start_index", cfg.Batch.StartIndex)

	db, err := store.Open(cfg.StorePath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	crawler, err := noticeboard.New(cfg, logger)
	if err != nil {
		return err
	}

	rep := crawlBatch(ctx, crawler, db, batch, workers, logger)

	if err := writeReport(cfg.ReportDir, rep); err != nil {
		logger.Warn("failed to write report", "error", err)
	}
	logSummary(logger, rep)
	return nil
}

func crawlBatch(ctx context.Context, crawler *noticeboard.Crawler, db *store.Store, batch []site, workers int, logger *slog.Logger) *report {
	if workers < 1 {
		workers = 1
	}
	rep := &report{
		Timestamp: time.Now(),
		Total:     len(batch),
		Methods:   map[string]int{},
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, workers)
	)
	for i, s := range batch {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, s site) {
			defer wg.Done()
			defer func() { <-sem }()

			logger.Info("crawling site", "index", i+1, "of", len(batch), "site", s.Name)
			result := crawler.Extract(ctx, s.NoticeURL, s.Name)

			mu.Lock()
			defer mu.Unlock()
			if !result.Success {
				rep.Failed++
				rep.FailedSites = append(rep.FailedSites, siteFailure{Name: s.Name, URL: s.NoticeURL, Error: result.Error})
				return
			}
			rep.Success++
			rep.Methods[string(result.Method)]++

			saved, err := db.Save(ctx, result.Notices, s.Name)
			if err != nil {
				logger.Error("store save failed", "site", s.Name, "error", err)
				return
			}
			rep.NoticesSaved += saved
		}(i, s)
	}
	wg.Wait()
	return rep
}

func loadSites(path string) ([]site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read site list %q: %w", path, err)
	}
	var sites []site
	if err := json.Unmarshal(data, &sites); err != nil {
		return nil, fmt.Errorf("failed to parse site list %q: %w", path, err)
	}
	if len(sites) == 0 {
		return nil, fmt.Errorf("site list %q is empty", path)
	}
	return sites, nil
}

func sliceBatch(sites []site, start, size int) []site {
	if start >= len(sites) {
		return nil
	}
	end := start + size
	if end > len(sites) {
		end = len(sites)
	}
	return sites[start:end]
}

func writeReport(dir string, rep *report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("crawl_report_%s.json", rep.Timestamp.Format("20060102_150405")))
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func logSummary(logger *slog.Logger, rep *report) {
	rate := 0.0
	if rep.Total > 0 {
		rate = float64(rep.Success) / float64(rep.Total) * 100
	}
	logger.Info("crawl finished",
		"total", rep.Total,
		"success", rep.Success,
		"failed", rep.Failed,
		"success_rate", fmt.Sprintf("%.1f%%", rate),
		"notices_saved", rep.NoticesSaved,
	)
	for method, n := range rep.Methods {
		logger.Info("method count", "method", method, "count", n)
	}
	for _, f := range rep.FailedSites {
		logger.Warn("site failed", "site", f.Name, "error", f.Error)
	}
}
