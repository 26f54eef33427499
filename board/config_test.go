package board

// WHAT: YAML config loading, the default cascade over every section,
// and validation of the mistakes people actually make in config files.
// WHY: a config typo should fail at startup with a named field, not
// three hours into a session.

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loadwatch.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFile(t *testing.T) {
	// WHAT: A minimal file loads, and every untouched section gets its
	// defaults: rule cascade, gate thresholds, dedup TTL, polling policy,
	// journal retention, and the provider URLs mirrored from board.url.
	// WHY: operators write three lines of YAML and expect a working
	// watcher; the defaults are the real configuration surface.
	path := writeConfig(t, `
board:
  url: https://loads.example.com/search
  provider: http
score:
  min_rate_per_mile: 2.75
sinks:
  stdout: true
`)

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}

	if cfg.Board.URL != "https://loads.example.com/search" {
		t.Errorf("URL = %q", cfg.Board.URL)
	}
	if cfg.Board.Provider != "http" {
		t.Errorf("Provider = %q", cfg.Board.Provider)
	}
	if cfg.Score.MinRatePerMile != 2.75 {
		t.Errorf("MinRatePerMile = %v, want the configured 2.75", cfg.Score.MinRatePerMile)
	}
	if cfg.Score.MaxDeadheadRatio != 0.25 {
		t.Errorf("MaxDeadheadRatio = %v, want default 0.25", cfg.Score.MaxDeadheadRatio)
	}
	if len(cfg.Rules) != 5 {
		t.Errorf("default cascade has %d rules, want 5", len(cfg.Rules))
	}
	if cfg.Dedup.TTL != 30*time.Minute {
		t.Errorf("Dedup.TTL = %v, want 30m", cfg.Dedup.TTL)
	}
	if cfg.Dedup.MaxEntries != 100 {
		t.Errorf("Dedup.MaxEntries = %d, want 100", cfg.Dedup.MaxEntries)
	}
	if cfg.Schedule.Policy.Base != 3*time.Second {
		t.Errorf("Policy.Base = %v, want 3s", cfg.Schedule.Policy.Base)
	}
	if cfg.Store.Path != "loadwatch.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Store.Retention != 7*24*time.Hour {
		t.Errorf("Store.Retention = %v, want 168h", cfg.Store.Retention)
	}
	if cfg.HTTP.URL != cfg.Board.URL {
		t.Errorf("HTTP.URL = %q, want mirrored board URL", cfg.HTTP.URL)
	}
	if cfg.Browser.URL != cfg.Board.URL {
		t.Errorf("Browser.URL = %q, want mirrored board URL", cfg.Browser.URL)
	}
	if !cfg.Sinks.Stdout {
		t.Error("Sinks.Stdout lost")
	}
	if cfg.Sinks.PostgresMaxConns != 4 {
		t.Errorf("PostgresMaxConns = %d, want 4", cfg.Sinks.PostgresMaxConns)
	}
}

func TestLoadConfigFile_DefaultProvider(t *testing.T) {
	// WHAT: omitting the provider means auto.
	// WHY: auto is the safe choice; forcing a decision up front helps no one.
	path := writeConfig(t, `
board:
  url: https://loads.example.com/search
`)
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Board.Provider != "auto" {
		t.Errorf("Provider = %q, want auto", cfg.Board.Provider)
	}
}

func TestLoadConfigFile_Missing(t *testing.T) {
	// WHAT: a missing file is a plain error, not a silent default config.
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfigFile_Validation(t *testing.T) {
	// WHAT: the validator names the offending field and wraps
	// ErrInvalidConfig for each rejected file.
	// WHY: errors.Is is how callers distinguish config mistakes from IO.
	cases := []struct {
		name string
		yaml string
	}{
		{"no url", `
board:
  provider: http
`},
		{"unknown provider", `
board:
  url: https://loads.example.com
  provider: telnet
`},
		{"inverted distance band", `
board:
  url: https://loads.example.com
score:
  min_distance_miles: 800
  max_distance_miles: 200
`},
		{"rule without selector", `
board:
  url: https://loads.example.com
rules:
  - name: broken
    selector: ""
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfigFile(writeConfig(t, tc.yaml))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
