package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Locales the site serves. The locale picks the language of scraped
// field values (genres, work formats, dates), not which works are found.
var SupportedLocales = []string{"ja_JP", "en_US", "zh_CN", "zh_TW", "ko_KR"}

// Page sizes the search endpoint accepts; anything else is silently
// clamped server-side, so we reject it up front.
var SupportedPageSizes = []int{30, 50, 100}

type Config struct {
	Site    SiteConfig    `toml:"site"`
	Search  SearchConfig  `toml:"search"`
	Mapping MappingConfig `toml:"mapping"`
	Images  ImagesConfig  `toml:"images"`
	Logging LoggingConfig `toml:"logging"`
	Daemon  DaemonConfig  `toml:"daemon"`
}

type SiteConfig struct {
	BaseURL   string            `toml:"base_url"`
	Locale    string            `toml:"locale"`
	UserAgent string            `toml:"user_agent"`
	Timeout   string            `toml:"timeout"`
	Cookies   map[string]string `toml:"cookies"`
}

type SearchConfig struct {
	MaxResults int `toml:"max_results"`
}

// MappingConfig routes the two scraped category lists into the host's
// three property buckets and selects which credited roles become
// developer entries.
type MappingConfig struct {
	WorkFormats string      `toml:"work_formats"`
	Genres      string      `toml:"genres"`
	Roles       RolesConfig `toml:"roles"`
}

type RolesConfig struct {
	Author       bool `toml:"author"`
	Scenario     bool `toml:"scenario"`
	Illustration bool `toml:"illustration"`
	Voice        bool `toml:"voice"`
	Music        bool `toml:"music"`
}

type ImagesConfig struct {
	CacheDir string `toml:"cache_dir"`
	MaxAge   string `toml:"max_age"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type DaemonConfig struct {
	Addr string `toml:"addr"`
}

func Default() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:   "https://www.dlsite.com",
			Locale:    "en_US",
			UserAgent: "Mozilla/5.0 (compatible; rjmeta/0.1; +https://github.com/devraulu/rjmeta)",
			Timeout:   "15s",
		},
		Search: SearchConfig{
			MaxResults: 30,
		},
		Mapping: MappingConfig{
			WorkFormats: "features",
			Genres:      "genres",
			Roles: RolesConfig{
				Author:       true,
				Scenario:     true,
				Illustration: true,
			},
		},
		Images: ImagesConfig{
			CacheDir: filepath.Join(os.TempDir(), "rjmeta"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Daemon: DaemonConfig{
			Addr: ":8470",
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if u, err := url.Parse(c.Site.BaseURL); err != nil || !u.IsAbs() {
		return fmt.Errorf("site.base_url: %q is not an absolute url", c.Site.BaseURL)
	}
	if !contains(SupportedLocales, c.Site.Locale) {
		return fmt.Errorf("site.locale: unsupported locale %q", c.Site.Locale)
	}
	if !containsInt(SupportedPageSizes, c.Search.MaxResults) {
		return fmt.Errorf("search.max_results: %d is not a supported page size (30, 50 or 100)", c.Search.MaxResults)
	}
	for _, bucket := range []struct{ key, val string }{
		{"mapping.work_formats", c.Mapping.WorkFormats},
		{"mapping.genres", c.Mapping.Genres},
	} {
		switch bucket.val {
		case "features", "genres", "tags", "none":
		default:
			return fmt.Errorf("%s: unknown bucket %q (want features, genres, tags or none)", bucket.key, bucket.val)
		}
	}
	if _, err := time.ParseDuration(c.Site.Timeout); err != nil {
		return fmt.Errorf("site.timeout: %w", err)
	}
	if c.Images.MaxAge != "" {
		if _, err := time.ParseDuration(c.Images.MaxAge); err != nil {
			return fmt.Errorf("images.max_age: %w", err)
		}
	}
	return nil
}

func (c *SiteConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 15 * time.Second // Fallback
	}
	return d
}

// GetMaxAge returns the image cache retention; zero means keep forever.
func (c *ImagesConfig) GetMaxAge() time.Duration {
	if c.MaxAge == "" {
		return 0
	}
	d, err := time.ParseDuration(c.MaxAge)
	if err != nil {
		return 0
	}
	return d
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsInt(haystack []int, needle int) bool {
	for _, n := range haystack {
		if n == needle {
			return true
		}
	}
	return false
}
