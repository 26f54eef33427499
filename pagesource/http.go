package pagesource

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/loadwatch/pagesource/internal/fetcher"
)

// HTTPConfig configures the plain-HTTP provider.
type HTTPConfig struct {
	URL              string        `yaml:"url" json:"url"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
	MaxBytes         int64         `yaml:"max_bytes" json:"max_bytes"`
	MinFetchInterval time.Duration `yaml:"min_fetch_interval" json:"min_fetch_interval"`
	UserAgent        string        `yaml:"user_agent" json:"user_agent"`
	// AllowPrivateHosts relaxes the SSRF screen for boards on a LAN.
	AllowPrivateHosts bool `yaml:"allow_private_hosts" json:"allow_private_hosts"`
}

// HTTPProvider polls the board over plain HTTP with conditional GET.
// ETag, Last-Modified, and the content hash of the previous snapshot
// are carried across calls so an unmoved page costs one cheap round
// trip.
type HTTPProvider struct {
	url    string
	f      *fetcher.Fetcher
	logger *slog.Logger

	mu       sync.Mutex
	etag     string
	lastMod  string
	prevHash string
}

// NewHTTP validates the board URL and builds the provider.
func NewHTTP(cfg HTTPConfig, logger *slog.Logger) (*HTTPProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	validate := fetcher.ValidateURL
	if cfg.AllowPrivateHosts {
		validate = fetcher.ValidateScheme
	}
	if err := validate(cfg.URL); err != nil {
		return nil, err
	}
	f := fetcher.New(fetcher.Config{
		Timeout:      cfg.Timeout,
		MaxBytes:     cfg.MaxBytes,
		MinInterval:  cfg.MinFetchInterval,
		UserAgent:    cfg.UserAgent,
		URLValidator: validate,
	})
	return &HTTPProvider{url: cfg.URL, f: f, logger: logger}, nil
}

func (p *HTTPProvider) Snapshot(ctx context.Context) (*Document, error) {
	p.mu.Lock()
	etag, lastMod, prevHash := p.etag, p.lastMod, p.prevHash
	p.mu.Unlock()

	res, err := p.f.Fetch(ctx, p.url, etag, lastMod, prevHash)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if res.ETag != "" {
		p.etag = res.ETag
	}
	if res.LastMod != "" {
		p.lastMod = res.LastMod
	}
	if res.Hash != "" {
		p.prevHash = res.Hash
	}
	hash := p.prevHash
	p.mu.Unlock()

	now := time.Now()
	if !res.Changed {
		p.logger.Debug("pagesource: page unchanged", "url", p.url, "status", res.StatusCode)
		return &Document{URL: p.url, Hash: hash, FetchedAt: now, Unchanged: true}, nil
	}
	return ParseHTML(p.url, res.Body, now)
}

func (p *HTTPProvider) Close() error { return nil }
