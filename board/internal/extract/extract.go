// Package extract lifts candidate load rows out of a board page snapshot.
//
// Extraction runs a cascade of matcher rules, most specific first: the
// first rule producing at least one plausible match wins. When every rule
// comes up empty (markup drifted again), a structural heuristic scans
// generic containers for elements that look like load rows. "Nothing
// found" is an ordinary result, not an error — the page may be empty,
// mid-render, or showing a login wall.
package extract

import (
	"log/slog"

	"golang.org/x/net/html"
)

// RuleHeuristic is the pseudo-rule name attached to fallback candidates.
const RuleHeuristic = "heuristic"

// maxCandidates bounds one extraction pass. A page yielding more than
// this is almost certainly matching a layout element, not load rows.
const maxCandidates = 200

// Rule is one matcher in the cascade.
type Rule struct {
	Name     string `yaml:"name" json:"name"`
	Selector string `yaml:"selector" json:"selector"`
}

// Candidate is a matched element plus its flattened text. Candidates are
// ephemeral: they live for one extraction cycle and are never stored.
type Candidate struct {
	Node *html.Node
	Rule string
	Text string
}

// DefaultRules is the shipping cascade, ordered for the board layout
// variants seen in the wild. Overridable through configuration.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "load-row", Selector: "tr.load-row"},
		{Name: "load-card", Selector: "div.load-card"},
		{Name: "results-table", Selector: "table#results tr"},
		{Name: "data-load", Selector: "div[data-load-id]"},
		{Name: "load-class", Selector: "div[class*=load]"},
	}
}

// Extract runs the cascade over a parsed document. The document is read,
// never modified. Malformed rules are logged and skipped; they do not
// abort the rest of the cascade.
func Extract(root *html.Node, rules []Rule, logger *slog.Logger) []Candidate {
	if logger == nil {
		logger = slog.Default()
	}
	if root == nil {
		return nil
	}

	for _, r := range rules {
		matches, err := QueryAll(root, r.Selector)
		if err != nil {
			logger.Warn("extract: skipping malformed matcher", "rule", r.Name, "error", err)
			continue
		}
		var cands []Candidate
		for _, n := range matches {
			text := Text(n)
			if plausible(n, text) {
				cands = append(cands, Candidate{Node: n, Rule: r.Name, Text: text})
				if len(cands) >= maxCandidates {
					break
				}
			}
		}
		if len(cands) > 0 {
			logger.Debug("extract: rule matched", "rule", r.Name, "candidates", len(cands))
			return cands
		}
	}

	cands := fallbackScan(root)
	if len(cands) > 0 {
		logger.Debug("extract: heuristic fallback", "candidates", len(cands))
	}
	return cands
}

// plausible filters rule matches: enough freight signals in the text and
// enough internal structure to be a data row.
func plausible(n *html.Node, text string) bool {
	return countSignals(text) >= 2 && structured(n)
}

// containerTags are the generic elements the heuristic considers.
var containerTags = map[string]bool{
	"div": true, "tr": true, "li": true, "article": true, "section": true,
}

// fallbackScan walks the tree looking for container elements that read
// like load rows. Deepest qualifying containers win: a wrapper whose
// descendants already qualified is not itself a candidate, otherwise the
// page shell would swallow every row as one giant match.
func fallbackScan(root *html.Node) []Candidate {
	var cands []Candidate
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if len(cands) >= maxCandidates {
			return true
		}
		found := false
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				found = true
			}
		}
		if found {
			return true
		}
		if n.Type == html.ElementNode && containerTags[n.Data] {
			text := Text(n)
			if countSignals(text) >= 2 && structured(n) {
				cands = append(cands, Candidate{Node: n, Rule: RuleHeuristic, Text: text})
				return true
			}
		}
		return false
	}
	walk(root)
	return cands
}
