// Package pagesource acquires snapshots of a load board page.
//
// A Provider hides how the page is obtained: plain HTTP with
// conditional GET, a headless browser for script-rendered boards, or
// Auto, which starts cheap and escalates when the page turns out to be
// dynamic. Consumers only ever see a Document.
package pagesource

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/net/html"
)

// Document is one acquired snapshot of the board page.
type Document struct {
	URL       string
	HTML      []byte
	Root      *html.Node // nil when Unchanged
	Hash      string     // sha256 of HTML
	FetchedAt time.Time
	Unchanged bool // page identical to the previous snapshot
}

// Provider produces page snapshots. Snapshot blocks until the page is
// acquired or ctx is done; implementations are safe for use from a
// single polling goroutine.
type Provider interface {
	Snapshot(ctx context.Context) (*Document, error)
	Close() error
}

// ParseHTML builds a Document from a fetched body.
func ParseHTML(url string, body []byte, fetchedAt time.Time) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("pagesource: parse %s: %w", url, err)
	}
	sum := sha256.Sum256(body)
	return &Document{
		URL:       url,
		HTML:      body,
		Root:      root,
		Hash:      hex.EncodeToString(sum[:]),
		FetchedAt: fetchedAt,
	}, nil
}
