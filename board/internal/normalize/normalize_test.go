package normalize

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/loadwatch/board/internal/extract"
)

var testNow = time.UnixMilli(1708700000000)

func synthetic(origin, dest string, _ time.Time) string { return "syn-test" }

// candidateFrom parses src and wraps the first match of selector as an
// extraction candidate.
func candidateFrom(t *testing.T, src, selector string) extract.Candidate {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	n := extract.First(doc, selector)
	if n == nil {
		t.Fatalf("selector %q matched nothing", selector)
	}
	return extract.Candidate{Node: n, Rule: "test", Text: extract.Text(n)}
}

func TestNormalizeStructuredRow(t *testing.T) {
	// WHAT: a fully classed row resolves every field through sub-element
	// rules, no text guessing involved.
	const src = `<html><body><table><tr class="load-row" data-load-id="LB-48213">
<td class="origin">Origin: Atlanta, GA 30301</td>
<td class="destination">Dest: Charlotte, NC</td>
<td class="rate">$720</td>
<td class="miles">240 mi</td>
<td class="deadhead">15</td>
<td class="equipment">53' Dry Van</td>
<td class="pickup">08/24</td>
<td class="weight">42,000 lbs</td>
</tr></table></body></html>`
	l, ok := Normalize(candidateFrom(t, src, "tr.load-row"), Config{}, testNow, synthetic)
	if !ok {
		t.Fatal("normalize rejected a complete row")
	}

	if l.ID != "LB-48213" {
		t.Errorf("ID: got %q", l.ID)
	}
	if l.OriginText != "Atlanta, GA 30301" {
		t.Errorf("OriginText: got %q", l.OriginText)
	}
	if l.OriginCity != "Atlanta" || l.OriginState != "GA" || l.OriginZip != "30301" {
		t.Errorf("origin parts: got %q %q %q", l.OriginCity, l.OriginState, l.OriginZip)
	}
	if l.DestCity != "Charlotte" || l.DestState != "NC" || l.DestZip != "" {
		t.Errorf("dest parts: got %q %q %q", l.DestCity, l.DestState, l.DestZip)
	}
	if l.RateUSD != 720 {
		t.Errorf("RateUSD: got %v", l.RateUSD)
	}
	if l.DistanceMiles != 240 {
		t.Errorf("DistanceMiles: got %v", l.DistanceMiles)
	}
	if l.DeadheadMiles != 15 {
		t.Errorf("DeadheadMiles: got %v", l.DeadheadMiles)
	}
	if l.EquipmentType != "53' Dry Van" {
		t.Errorf("EquipmentType: got %q", l.EquipmentType)
	}
	if l.PickupDate != "08/24" {
		t.Errorf("PickupDate: got %q", l.PickupDate)
	}
	if l.WeightLbs != 42000 {
		t.Errorf("WeightLbs: got %v", l.WeightLbs)
	}
	if l.DiscoveredAt != testNow.UnixMilli() {
		t.Errorf("DiscoveredAt: got %d", l.DiscoveredAt)
	}
	if l.SourceHTML == "" || !strings.Contains(l.SourceHTML, "LB-48213") {
		t.Error("SourceHTML missing or incomplete")
	}
}

func TestNormalizeFreeTextFallback(t *testing.T) {
	// WHAT: a row with no usable classes still normalizes off its text.
	// WHY: strategy order is rules, attributes, then regex — the regex
	// tier is what survives markup drift.
	const src = `<html><body><table><tr class="r">
<td>LB-9</td><td>Dallas, TX</td><td>Tulsa, OK</td><td>$800</td><td>260 mi</td><td>Reefer</td>
</tr></table></body></html>`
	l, ok := Normalize(candidateFrom(t, src, "tr.r"), Config{}, testNow, synthetic)
	if !ok {
		t.Fatal("normalize rejected the row")
	}
	if l.OriginText != "Dallas, TX" || l.DestinationText != "Tulsa, OK" {
		t.Errorf("lane: got %q -> %q", l.OriginText, l.DestinationText)
	}
	if l.RateUSD != 800 {
		t.Errorf("RateUSD: got %v", l.RateUSD)
	}
	if l.DistanceMiles != 260 {
		t.Errorf("DistanceMiles: got %v", l.DistanceMiles)
	}
	if !strings.EqualFold(l.EquipmentType, "reefer") {
		t.Errorf("EquipmentType: got %q", l.EquipmentType)
	}
	// "LB-9" is only 4 chars and fine, but it sits in a plain td no rule
	// points at — identity falls through to the synthesizer.
	if l.ID != "syn-test" {
		t.Errorf("ID: got %q, want synthetic", l.ID)
	}
}

func TestNormalizeDeadheadNeverReadAsDistance(t *testing.T) {
	const src = `<html><body><div class="q">
<span>15 mi deadhead</span> <span>Dallas, TX</span> <span>Tulsa, OK</span> <span>$800</span> <span>260 mi</span>
</div></body></html>`
	l, ok := Normalize(candidateFrom(t, src, "div.q"), Config{}, testNow, synthetic)
	if !ok {
		t.Fatal("normalize rejected the row")
	}
	if l.DeadheadMiles != 15 {
		t.Errorf("DeadheadMiles: got %v, want 15", l.DeadheadMiles)
	}
	if l.DistanceMiles != 260 {
		t.Errorf("DistanceMiles: got %v, want 260", l.DistanceMiles)
	}
}

func TestNormalizeDropsLanelessFragment(t *testing.T) {
	// WHY: rate and distance without any location is not a posting; it is
	// a pricing banner or a summary footer.
	const src = `<html><body><div class="q"><b>$800</b> <i>260 mi</i> <u>Van</u></div></body></html>`
	l, ok := Normalize(candidateFrom(t, src, "div.q"), Config{}, testNow, synthetic)
	if ok || l != nil {
		t.Fatalf("laneless fragment must drop, got %+v", l)
	}
}

func TestNormalizeRejectsPlaceholderIDs(t *testing.T) {
	cases := []struct {
		id string
	}{
		{"View Details"},
		{"TBD"},
		{"n/a"},
		{"ab"},                                // too short
		{strings.Repeat("x", 51)},             // too long
		{"Book Now"},                          // deny + whitespace
		{"click-here-for-loadef0012377aa211"}, // deny substring
	}
	for _, tc := range cases {
		src := `<html><body><div class="q" data-load-id="` + tc.id + `">
<span>Dallas, TX</span> <span>Tulsa, OK</span> <span>$800</span> <span>260 mi</span>
</div></body></html>`
		l, ok := Normalize(candidateFrom(t, src, "div.q"), Config{}, testNow, synthetic)
		if !ok {
			t.Fatalf("%q: row rejected", tc.id)
		}
		if l.ID != "syn-test" {
			t.Errorf("id %q: got %q, want synthetic", tc.id, l.ID)
		}
	}
}

func TestNormalizeCeilingsRejectCorruptValues(t *testing.T) {
	// WHAT: a rate or distance past its ceiling zeroes out instead of
	// clamping.
	// WHY: a half-rendered cell reading $7,200,000 is noise; clamping it
	// to the ceiling would manufacture a fake top-dollar load.
	const src = `<html><body><div class="q">
<span>Dallas, TX</span> <span>Tulsa, OK</span> <span class="rate">$7,200,000</span> <span class="miles">9500 mi</span>
</div></body></html>`
	l, ok := Normalize(candidateFrom(t, src, "div.q"), Config{}, testNow, synthetic)
	if !ok {
		t.Fatal("normalize rejected the row")
	}
	if l.RateUSD != 0 {
		t.Errorf("RateUSD: got %v, want 0", l.RateUSD)
	}
	if l.DistanceMiles != 0 {
		t.Errorf("DistanceMiles: got %v, want 0", l.DistanceMiles)
	}
}

func TestParseNumberSeparators(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1,234", 1234, true},
		{"1234.50", 1234.5, true},
		{"1,2345", 12345, true}, // >2 digits after separator: grouping
		{"12,34", 12.34, true},  // 2 digits after separator: decimal
		{"1.234,56", 1234.56, true},
		{"720", 720, true},
		{"", 0, false},
		{"x", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseNumber(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("parseNumber(%q): got %v/%v, want %v/%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$1,234", 1234, true},
		{"$ 950.50", 950.5, true},
		{"720", 720, true},  // attribute value, no currency mark
		{"Rate: $2,100 all-in", 2100, true},
		{"$0", 0, false},
		{"$60,000", 0, false}, // over ceiling
		{"call for rate", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseAmount(tc.in, 50_000)
		if ok != tc.ok || got != tc.want {
			t.Errorf("parseAmount(%q): got %v/%v, want %v/%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseMoneyStrictRequiresDollar(t *testing.T) {
	// WHY: in free row text a bare number could be miles or a zip code.
	if _, ok := parseMoneyStrict("260 mi to Tulsa 74101", 50_000); ok {
		t.Error("bare numbers must not parse as money from free text")
	}
	if v, ok := parseMoneyStrict("pays $1,850 total", 50_000); !ok || v != 1850 {
		t.Errorf("got %v/%v, want 1850/true", v, ok)
	}
}

func TestParseWeight(t *testing.T) {
	if v, ok := parseWeight("42,000 lbs", 100_000); !ok || v != 42000 {
		t.Errorf("got %v/%v", v, ok)
	}
	if v, ok := parseWeight("42k lbs", 100_000); !ok || v != 42000 {
		t.Errorf("shorthand: got %v/%v", v, ok)
	}
	if _, ok := parseWeight("no weight here", 100_000); ok {
		t.Error("matched weight in plain text")
	}
}

func TestCleanLocation(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Origin: Atlanta, GA", "Atlanta, GA"},
		{"From - Dallas, TX", "Dallas, TX"},
		{"Pickup: Memphis", "Memphis"},
		{"  12345  ", ""}, // digits only: not a place
		{"", ""},
	}
	for _, tc := range cases {
		if got := cleanLocation(tc.in); got != tc.want {
			t.Errorf("cleanLocation(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}
