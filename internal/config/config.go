// Package config loads the harvester configuration: YAML file over built-in
// defaults, then environment-variable overrides, then validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Crawler struct {
	Timeout   int    `koanf:"timeout" validate:"gt=0"`
	UserAgent string `koanf:"user_agent"`
}

type Detection struct {
	MinConfidence       float64 `koanf:"min_confidence" validate:"gte=0,lte=1"`
	MinNotices          int     `koanf:"min_notices" validate:"gt=0"`
	MinTitleLength      int     `koanf:"min_title_length" validate:"gt=0"`
	MaxTitleLength      int     `koanf:"max_title_length" validate:"gtfield=MinTitleLength"`
	SimilarityThreshold float64 `koanf:"similarity_threshold" validate:"gte=0,lte=1"`
}

type Validation struct {
	MaxNoticesPerUniversity int `koanf:"max_notices_per_university" validate:"gt=0"`
}

type Fallback struct {
	UseSelenium       bool     `koanf:"use_selenium"`
	SeleniumSelectors []string `koanf:"selenium_selectors"`
}

type Selenium struct {
	ChromeOptions []string `koanf:"chrome_options"`
}

type Patterns struct {
	DatePatterns   []string `koanf:"date_patterns" validate:"min=1"`
	NoticeKeywords []string `koanf:"notice_keywords"`
}

type Batch struct {
	Size       int `koanf:"size" validate:"gt=0"`
	StartIndex int `koanf:"start_index" validate:"gte=0"`
}

type Config struct {
	Crawler         Crawler    `koanf:"crawler"`
	Detection       Detection  `koanf:"detection"`
	Validation      Validation `koanf:"validation"`
	Fallback        Fallback   `koanf:"fallback"`
	Selenium        Selenium   `koanf:"selenium"`
	SeleniumTimeout int        `koanf:"selenium_timeout" validate:"gt=0"`
	Patterns        Patterns   `koanf:"patterns"`
	Batch           Batch      `koanf:"batch"`
	TemplatesFile   string     `koanf:"templates_file"`
	ReportDir       string     `koanf:"report_dir"`
	StorePath       string     `koanf:"store_path"`
}

// Default returns the full built-in configuration. Every Load starts from
// these values; a config file and the environment only override them.
func Default() *Config {
	return &Config{
		Crawler: Crawler{
			Timeout:   15,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Detection: Detection{
			MinConfidence:       0.7,
			MinNotices:          3,
			MinTitleLength:      5,
			MaxTitleLength:      500,
			SimilarityThreshold: 0.8,
		},
		Validation: Validation{
			MaxNoticesPerUniversity: 50,
		},
		Fallback: Fallback{
			UseSelenium: true,
			SeleniumSelectors: []string{
				"table tbody tr",
				".board-list li",
				".notice-list li",
				".board-item",
			},
		},
		Selenium: Selenium{
			ChromeOptions: []string{
				"--headless",
				"--no-sandbox",
				"--disable-dev-shm-usage",
				"--disable-gpu",
				"--window-size=1920,1080",
				"--lang=ko_KR",
			},
		},
		SeleniumTimeout: 30,
		Patterns: Patterns{
			DatePatterns: []string{
				`\d{4}[-./]\d{1,2}[-./]\d{1,2}`,
				`\d{2}[-./]\d{1,2}[-./]\d{1,2}`,
				`\d{4}년\s*\d{1,2}월\s*\d{1,2}일`,
				`^\d{1,2}[-./]\d{1,2}$`,
				`\d{1,2}월\s*\d{1,2}일`,
			},
			NoticeKeywords: []string{
				"공지", "안내", "모집", "전형", "입학",
				"합격", "발표", "시험", "접수", "마감",
			},
		},
		Batch: Batch{
			Size:       50,
			StartIndex: 0,
		},
		ReportDir: "reports",
		StorePath: "notices.db",
	}
}

// Load reads the YAML file at path over the defaults. An empty path skips the
// file and uses defaults plus environment overrides only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %q: %w", path, err)
		}
		if err := k.Unmarshal("", cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %q: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides individual settings from NOTICE_* variables. The table
// is explicit; only listed keys are reachable from the environment. List
// values are semicolon-separated, since CSS selectors may contain commas.
func applyEnv(cfg *Config) error {
	overrides := []struct {
		name  string
		apply func(string) error
	}{
		{"NOTICE_CRAWLER_TIMEOUT", intSetter(&cfg.Crawler.Timeout)},
		{"NOTICE_CRAWLER_USER_AGENT", stringSetter(&cfg.Crawler.UserAgent)},
		{"NOTICE_DETECTION_MIN_CONFIDENCE", floatSetter(&cfg.Detection.MinConfidence)},
		{"NOTICE_DETECTION_MIN_NOTICES", intSetter(&cfg.Detection.MinNotices)},
		{"NOTICE_DETECTION_MIN_TITLE_LENGTH", intSetter(&cfg.Detection.MinTitleLength)},
		{"NOTICE_DETECTION_MAX_TITLE_LENGTH", intSetter(&cfg.Detection.MaxTitleLength)},
		{"NOTICE_DETECTION_SIMILARITY_THRESHOLD", floatSetter(&cfg.Detection.SimilarityThreshold)},
		{"NOTICE_VALIDATION_MAX_NOTICES", intSetter(&cfg.Validation.MaxNoticesPerUniversity)},
		{"NOTICE_FALLBACK_USE_SELENIUM", boolSetter(&cfg.Fallback.UseSelenium)},
		{"NOTICE_FALLBACK_SELENIUM_SELECTORS", listSetter(&cfg.Fallback.SeleniumSelectors)},
		{"NOTICE_SELENIUM_CHROME_OPTIONS", listSetter(&cfg.Selenium.ChromeOptions)},
		{"NOTICE_SELENIUM_TIMEOUT", intSetter(&cfg.SeleniumTimeout)},
		{"NOTICE_PATTERNS_DATE_PATTERNS", listSetter(&cfg.Patterns.DatePatterns)},
		{"NOTICE_PATTERNS_NOTICE_KEYWORDS", listSetter(&cfg.Patterns.NoticeKeywords)},
		{"NOTICE_BATCH_SIZE", intSetter(&cfg.Batch.Size)},
		{"NOTICE_START_INDEX", intSetter(&cfg.Batch.StartIndex)},
		{"NOTICE_TEMPLATES_FILE", stringSetter(&cfg.TemplatesFile)},
		{"NOTICE_REPORT_DIR", stringSetter(&cfg.ReportDir)},
		{"NOTICE_STORE_PATH", stringSetter(&cfg.StorePath)},
	}
	for _, o := range overrides {
		value, ok := os.LookupEnv(o.name)
		if !ok || value == "" {
			continue
		}
		if err := o.apply(value); err != nil {
			return fmt.Errorf("invalid %s: %w", o.name, err)
		}
	}
	return nil
}

func stringSetter(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func intSetter(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func floatSetter(dst *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst = f
		return nil
	}
}

func listSetter(dst *[]string) func(string) error {
	return func(v string) error {
		var items []string
		for _, item := range strings.Split(v, ";") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		if len(items) == 0 {
			return fmt.Errorf("empty list")
		}
		*dst = items
		return nil
	}
}

func boolSetter(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}
