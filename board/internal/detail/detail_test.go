package detail

// WHAT: sanitisation and markdown conversion of load row fragments.
// WHY: fragments come straight off a third-party page; script content
// must never survive into an emitted event.

import (
	"strings"
	"testing"
)

func TestRenderKeepsLoadFacts(t *testing.T) {
	r := NewRenderer()
	md := r.Render(`<tr class="load-row">
		<td class="origin">Atlanta, GA</td>
		<td class="dest">Charlotte, NC</td>
		<td class="rate"><strong>$720</strong></td>
	</tr>`, "https://boards.example.com/search")

	for _, want := range []string{"Atlanta, GA", "Charlotte, NC", "$720"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestRenderStripsScript(t *testing.T) {
	r := NewRenderer()
	md := r.Render(`<div class="load-card">
		<script>document.cookie</script>
		<span>Rate $720 for 240 mi</span>
	</div>`, "")

	if strings.Contains(md, "document.cookie") {
		t.Fatalf("script content leaked into markdown:\n%s", md)
	}
	if !strings.Contains(md, "$720") {
		t.Fatalf("payload text lost:\n%s", md)
	}
}

func TestRenderEmptyInput(t *testing.T) {
	r := NewRenderer()
	if got := r.Render("", "https://x.test"); got != "" {
		t.Fatalf("empty input rendered %q", got)
	}
	if got := r.Render("   \n\t ", ""); got != "" {
		t.Fatalf("blank input rendered %q", got)
	}
	// A fragment that sanitises away entirely renders as nothing.
	if got := r.Render("<script>alert(1)</script>", ""); got != "" {
		t.Fatalf("script-only input rendered %q", got)
	}
}

func TestRenderReusableAcrossCalls(t *testing.T) {
	r := NewRenderer()
	first := r.Render("<p>lane one</p>", "")
	second := r.Render("<p>lane two</p>", "")
	if !strings.Contains(first, "lane one") || !strings.Contains(second, "lane two") {
		t.Fatalf("renders interfered: %q / %q", first, second)
	}
}
