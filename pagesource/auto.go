// CLAUDE:SUMMARY Auto provider: polls over HTTP and escalates to headless Chrome when the page is script-rendered.
package pagesource

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// Thresholds for LooksDynamic. A board page with real rows carries far
// more than 200 bytes of visible text.
const (
	minVisibleText = 200
	minScriptTags  = 3
)

// Auto polls over plain HTTP and escalates to a browser provider the
// first time the page looks script-rendered. Escalation is one-way for
// the life of the provider.
type Auto struct {
	logger     *slog.Logger
	newBrowser func() (Provider, error)

	mu        sync.Mutex
	active    Provider
	escalated bool
}

// NewAuto wraps an HTTP provider with browser escalation. newBrowser is
// called at most once, when escalation triggers.
func NewAuto(http Provider, newBrowser func() (Provider, error), logger *slog.Logger) *Auto {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auto{logger: logger, newBrowser: newBrowser, active: http}
}

func (a *Auto) Snapshot(ctx context.Context) (*Document, error) {
	a.mu.Lock()
	active, escalated := a.active, a.escalated
	a.mu.Unlock()

	doc, err := active.Snapshot(ctx)
	if escalated || err != nil {
		return doc, err
	}
	if !LooksDynamic(doc) {
		return doc, nil
	}

	a.logger.Info("pagesource: page looks script-rendered, escalating to browser")
	b, berr := a.newBrowser()
	if berr != nil {
		// Serve the thin document; escalation retries next cycle.
		a.logger.Warn("pagesource: browser escalation failed", "error", berr)
		return doc, nil
	}

	a.mu.Lock()
	old := a.active
	a.active = b
	a.escalated = true
	a.mu.Unlock()
	old.Close()

	return b.Snapshot(ctx)
}

func (a *Auto) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active.Close()
}

// LooksDynamic reports whether a fetched page appears to render its
// content with JavaScript: almost no visible text but several script
// tags. Unchanged documents carry no DOM and never look dynamic.
func LooksDynamic(doc *Document) bool {
	if doc == nil || doc.Root == nil {
		return false
	}
	textLen, scripts := pageSignals(doc.Root)
	return textLen < minVisibleText && scripts >= minScriptTags
}

func pageSignals(n *html.Node) (textLen, scripts int) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script":
			return 0, 1
		case "style", "noscript", "template":
			return 0, 0
		}
	}
	if n.Type == html.TextNode {
		return len(strings.TrimSpace(n.Data)), 0
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		t, s := pageSignals(c)
		textLen += t
		scripts += s
	}
	return textLen, scripts
}
