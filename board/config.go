// CLAUDE:SUMMARY Board service configuration: YAML loading, nested section defaults, validation.
package board

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/loadwatch/board/internal/dedup"
	"github.com/hazyhaar/loadwatch/board/internal/extract"
	"github.com/hazyhaar/loadwatch/board/internal/normalize"
	"github.com/hazyhaar/loadwatch/board/internal/schedule"
	"github.com/hazyhaar/loadwatch/board/internal/score"
	"github.com/hazyhaar/loadwatch/pagesource"
)

// Config is the top-level loadwatch configuration.
type Config struct {
	Board     BoardConfig              `yaml:"board"`
	Rules     []extract.Rule           `yaml:"rules"`
	Normalize normalize.Config         `yaml:"normalize"`
	Score     score.Config             `yaml:"score"`
	Dedup     dedup.Config             `yaml:"dedup"`
	Schedule  schedule.Config          `yaml:"schedule"`
	HTTP      pagesource.HTTPConfig    `yaml:"http"`
	Browser   pagesource.BrowserConfig `yaml:"browser"`
	Store     StoreConfig              `yaml:"store"`
	Sinks     SinksConfig              `yaml:"sinks"`
}

// BoardConfig identifies the page to watch and how to reach it.
type BoardConfig struct {
	URL string `yaml:"url"`
	// Provider selects the page transport: http | browser | auto.
	// auto starts on plain HTTP and escalates to a headless browser
	// when the page looks script-rendered.
	Provider string `yaml:"provider"`
	// LoggedOutSelector, when it matches the page, means the board has
	// dropped the session. The watch stops until re-authentication.
	LoggedOutSelector string `yaml:"logged_out_selector"`
}

// StoreConfig controls the SQLite journal.
type StoreConfig struct {
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// SinksConfig declares the delivery backends.
type SinksConfig struct {
	Stdout           bool   `yaml:"stdout"`
	WebhookURL       string `yaml:"webhook_url"`
	PostgresDSN      string `yaml:"postgres_dsn"`
	PostgresMaxConns int32  `yaml:"postgres_max_conns"`
}

// LoadConfigFile reads a YAML configuration file, applies defaults, and
// validates the result.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Board.Provider == "" {
		c.Board.Provider = "auto"
	}
	if len(c.Rules) == 0 {
		c.Rules = extract.DefaultRules()
	}
	c.Normalize.Defaults()
	c.Score.Defaults()
	c.Dedup.Defaults()
	c.Schedule.Defaults()
	// The providers read their own URL so they stay constructible from
	// their section alone.
	if c.HTTP.URL == "" {
		c.HTTP.URL = c.Board.URL
	}
	if c.Browser.URL == "" {
		c.Browser.URL = c.Board.URL
	}
	if c.Store.Path == "" {
		c.Store.Path = "loadwatch.db"
	}
	if c.Store.Retention <= 0 {
		c.Store.Retention = 7 * 24 * time.Hour
	}
	if c.Sinks.PostgresMaxConns <= 0 {
		c.Sinks.PostgresMaxConns = 4
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Board.URL) == "" {
		return fmt.Errorf("%w: board.url is required", ErrInvalidConfig)
	}
	switch c.Board.Provider {
	case "http", "browser", "auto":
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Board.Provider)
	}
	if c.Score.MaxDistanceMiles > 0 && c.Score.MinDistanceMiles > c.Score.MaxDistanceMiles {
		return fmt.Errorf("%w: distance band %v-%v is inverted",
			ErrInvalidConfig, c.Score.MinDistanceMiles, c.Score.MaxDistanceMiles)
	}
	for _, r := range c.Rules {
		if strings.TrimSpace(r.Selector) == "" {
			return fmt.Errorf("%w: rule %q has no selector", ErrInvalidConfig, r.Name)
		}
	}
	return nil
}
