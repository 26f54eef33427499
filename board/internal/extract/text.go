package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// Text flattens the visible text of a subtree. Script, style, template
// and comment content is skipped; runs of whitespace collapse to single
// spaces.
func Text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return CleanText(sb.String())
}

// CleanText strips zero-width characters and collapses all whitespace to
// single spaces. Board pages pad cells with nbsp and layout newlines;
// field parsing wants one flat line.
func CleanText(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '​', '‌', '‍', '﻿':
			return -1
		case ' ':
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Render serialises a subtree back to HTML. Returns "" on failure; the
// fragment is diagnostic payload, never load-bearing.
func Render(n *html.Node) string {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return ""
	}
	return sb.String()
}

// elementChildren counts direct element children.
func elementChildren(n *html.Node) int {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			count++
		}
	}
	return count
}

// subtreeDepth measures the deepest element nesting below n.
func subtreeDepth(n *html.Node) int {
	max := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if d := subtreeDepth(c) + 1; d > max {
			max = d
		}
	}
	return max
}

// structured reports whether a node has enough internal shape to be a
// data row rather than a stray text wrapper.
func structured(n *html.Node) bool {
	return elementChildren(n) >= 2 || subtreeDepth(n) >= 2
}
