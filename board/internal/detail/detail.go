// Package detail renders the source fragment of an emitted load as
// markdown for human-facing sinks. The fragment is sanitised before
// conversion so hostile board markup never reaches a consumer.
package detail

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/hazyhaar/loadwatch/board/internal/extract"
)

// Renderer converts load row fragments to markdown. Safe for use from
// a single cycle goroutine; both the policy and the converter are
// reusable across calls.
type Renderer struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
}

// NewRenderer builds the sanitiser and the markdown converter.
func NewRenderer() *Renderer {
	return &Renderer{
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Render sanitises the fragment and converts it to markdown. Empty
// input (or input that sanitises away entirely) renders as "". If
// conversion fails or produces nothing, the cleaned plain text of the
// sanitised fragment is returned instead.
func (r *Renderer) Render(fragment, sourceURL string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	sanitised := r.policy.Sanitize(fragment)
	if strings.TrimSpace(sanitised) == "" {
		return ""
	}

	var opts []converter.ConvertOptionFunc
	if sourceURL != "" {
		opts = append(opts, converter.WithDomain(sourceURL))
	}
	md, err := r.conv.ConvertString(sanitised, opts...)
	if err != nil || strings.TrimSpace(md) == "" {
		return plainText(sanitised)
	}
	return strings.TrimSpace(md)
}

func plainText(fragment string) string {
	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return extract.CleanText(fragment)
	}
	return extract.Text(root)
}
