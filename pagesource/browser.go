package pagesource

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/loadwatch/pagesource/internal/browser"
)

// BrowserConfig configures the headless-browser provider.
type BrowserConfig struct {
	URL string `yaml:"url" json:"url"`
	// RemoteURL connects to an external Chrome instead of launching one.
	RemoteURL       string        `yaml:"remote_url" json:"remote_url"`
	MemoryLimit     int64         `yaml:"memory_limit" json:"memory_limit"`
	RecycleInterval time.Duration `yaml:"recycle_interval" json:"recycle_interval"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout" json:"navigate_timeout"`
	// SettleDelay is the pause after page load before the first DOM
	// serialisation, giving client-side rendering time to paint rows.
	// Default: 500ms.
	SettleDelay time.Duration `yaml:"settle_delay" json:"settle_delay"`
}

// BrowserProvider drives a headless Chrome tab kept on the board page
// across snapshots. The tab survives between cycles so a logged-in
// session is not lost; a recycled or crashed browser is detected on the
// next snapshot and the tab is reopened.
type BrowserProvider struct {
	cfg    BrowserConfig
	logger *slog.Logger
	mgr    *browser.Manager

	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	mu       sync.Mutex
	page     *rod.Page
	prevHash string
}

// NewBrowser builds the provider. Chrome launches lazily on the first
// snapshot.
func NewBrowser(cfg BrowserConfig, logger *slog.Logger) *BrowserProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 500 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BrowserProvider{
		cfg:    cfg,
		logger: logger,
		mgr: browser.NewManager(browser.Config{
			RemoteURL:       cfg.RemoteURL,
			MemoryLimit:     cfg.MemoryLimit,
			RecycleInterval: cfg.RecycleInterval,
			NavigateTimeout: cfg.NavigateTimeout,
			Logger:          logger,
		}),
		lifeCtx:    ctx,
		lifeCancel: cancel,
	}
}

func (p *BrowserProvider) Snapshot(ctx context.Context) (*Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// The monitor goroutine outlives individual snapshots, so it runs on
	// the provider's own lifetime context, not the cycle's.
	if err := p.mgr.Start(p.lifeCtx); err != nil {
		return nil, err
	}

	if p.page == nil {
		page, err := p.mgr.OpenPage(ctx, p.cfg.URL)
		if err != nil {
			return nil, err
		}
		p.page = page
		select {
		case <-time.After(p.cfg.SettleDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	body, err := p.mgr.PageHTML(ctx, p.page)
	if err != nil {
		// Tab is likely dead after a browser recycle. Drop it; the next
		// snapshot reopens.
		p.page.Close()
		p.page = nil
		return nil, fmt.Errorf("pagesource: browser snapshot: %w", err)
	}

	now := time.Now()
	sum := sha256.Sum256(body)
	hash := hex.EncodeToString(sum[:])
	if hash == p.prevHash {
		return &Document{URL: p.cfg.URL, Hash: hash, FetchedAt: now, Unchanged: true}, nil
	}
	p.prevHash = hash
	return ParseHTML(p.cfg.URL, body, now)
}

func (p *BrowserProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lifeCancel()
	if p.page != nil {
		p.page.Close()
		p.page = nil
	}
	return p.mgr.Close()
}
