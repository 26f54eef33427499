// CLAUDE:SUMMARY Simple CSS selector engine over parsed HTML used by the matcher cascade and the normalizer.
package extract

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Selector is a parsed chain of simple selectors joined by the descendant
// combinator. Supported syntax per step:
//
//	tag            "tr", "div"
//	.class         ".load-row"
//	#id            "#results"
//	tag.class      "tr.load-row"
//	tag[attr]      "div[data-load-id]"
//	tag[attr=val]  "div[role=row]"
//	tag[attr*=val] "div[class*=load]"  (substring match)
type Selector []simpleSel

type simpleSel struct {
	tag       string
	id        string
	class     string
	attrKey   string
	attrVal   string
	attrMatch byte // 0 = presence, '=' exact, '*' substring
}

// ParseSelector parses a selector chain. Malformed input is an error so a
// broken matcher rule can be reported and skipped instead of silently
// matching nothing.
func ParseSelector(selector string) (Selector, error) {
	parts := strings.Fields(selector)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty selector")
	}
	out := make(Selector, 0, len(parts))
	for _, part := range parts {
		s, err := parseSimple(part)
		if err != nil {
			return nil, fmt.Errorf("selector %q: %w", selector, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func parseSimple(sel string) (simpleSel, error) {
	var s simpleSel
	orig := sel

	// Attribute suffix: tag[attr], tag[attr=val], tag[attr*=val].
	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		if !strings.HasSuffix(sel, "]") {
			return s, fmt.Errorf("unclosed attribute selector in %q", orig)
		}
		attrPart := sel[idx+1 : len(sel)-1]
		sel = sel[:idx]
		switch {
		case strings.Contains(attrPart, "*="):
			kv := strings.SplitN(attrPart, "*=", 2)
			s.attrKey, s.attrVal, s.attrMatch = kv[0], strings.Trim(kv[1], `"'`), '*'
		case strings.Contains(attrPart, "="):
			kv := strings.SplitN(attrPart, "=", 2)
			s.attrKey, s.attrVal, s.attrMatch = kv[0], strings.Trim(kv[1], `"'`), '='
		default:
			s.attrKey = attrPart
		}
		if s.attrKey == "" {
			return s, fmt.Errorf("empty attribute name in %q", orig)
		}
	}

	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
		if s.id == "" {
			return s, fmt.Errorf("empty id in %q", orig)
		}
	}

	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		s.class = sel[idx+1:]
		sel = sel[:idx]
		if s.class == "" {
			return s, fmt.Errorf("empty class in %q", orig)
		}
	}

	s.tag = strings.ToLower(sel)
	if s.tag == "" && s.id == "" && s.class == "" && s.attrKey == "" {
		return s, fmt.Errorf("unparseable selector part %q", orig)
	}
	return s, nil
}

// QueryAll returns every node under root matching the selector chain.
func QueryAll(root *html.Node, selector string) ([]*html.Node, error) {
	sel, err := ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	return sel.Match(root), nil
}

// First returns the first match of selector under root, or nil. Parse
// errors also yield nil — callers using First treat the selector as a
// best-effort hint.
func First(root *html.Node, selector string) *html.Node {
	matches, err := QueryAll(root, selector)
	if err != nil || len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// Match evaluates the parsed chain against a subtree.
func (sel Selector) Match(root *html.Node) []*html.Node {
	matches := matchStep(root, sel[0], true)
	for _, step := range sel[1:] {
		var next []*html.Node
		for _, parent := range matches {
			// Descendants only: the parent itself is not its own descendant.
			next = append(next, matchStep(parent, step, false)...)
		}
		matches = next
	}
	return matches
}

// matchStep collects nodes matching one step. includeRoot controls whether
// root itself may match (true only for the first step).
func matchStep(root *html.Node, s simpleSel, includeRoot bool) []*html.Node {
	var results []*html.Node
	var walk func(n *html.Node, isRoot bool)
	walk = func(n *html.Node, isRoot bool) {
		if (!isRoot || includeRoot) && matchesSimple(n, s) {
			results = append(results, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, false)
		}
	}
	walk(root, true)
	return results
}

func matchesSimple(n *html.Node, s simpleSel) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.id != "" && Attr(n, "id") != s.id {
		return false
	}
	if s.class != "" {
		found := false
		for _, c := range strings.Fields(Attr(n, "class")) {
			if c == s.class {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if s.attrKey != "" {
		val, ok := lookupAttr(n, s.attrKey)
		if !ok {
			return false
		}
		switch s.attrMatch {
		case '=':
			if val != s.attrVal {
				return false
			}
		case '*':
			if !strings.Contains(val, s.attrVal) {
				return false
			}
		}
	}
	return true
}

// Attr returns the value of an attribute, or "" when absent.
func Attr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
