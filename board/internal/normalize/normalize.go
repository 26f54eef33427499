// Package normalize turns an extracted candidate element into a typed
// load record. Each field is resolved through a strategy ladder: a
// configured sub-element rule, then a data attribute, then a regex pass
// over the candidate's flattened text. A field that resolves nowhere
// degrades to its zero value; only a load with no lane at all is dropped.
package normalize

import (
	"strings"
	"time"

	"github.com/hazyhaar/loadwatch/board/internal/extract"
	"github.com/hazyhaar/loadwatch/board/load"
)

// Field names addressable by rules.
const (
	FieldID           = "id"
	FieldOrigin       = "origin"
	FieldDestination  = "destination"
	FieldRate         = "rate"
	FieldDistance     = "distance"
	FieldDeadhead     = "deadhead"
	FieldEquipment    = "equipment"
	FieldPickupDate   = "pickup_date"
	FieldDeliveryDate = "delivery_date"
	FieldWeight       = "weight"
)

// FieldRule reads one field from a candidate. With a Selector, the first
// matching sub-element supplies the value (its Attr when set, else its
// text). Without a Selector, Attr reads off the candidate root.
type FieldRule struct {
	Field    string `yaml:"field" json:"field"`
	Selector string `yaml:"selector,omitempty" json:"selector,omitempty"`
	Attr     string `yaml:"attr,omitempty" json:"attr,omitempty"`
}

// Limits are the corrupt-value ceilings. A parsed figure above its
// ceiling is treated as garbage and discarded, not clamped.
type Limits struct {
	MaxRateUSD       float64 `yaml:"max_rate_usd" json:"max_rate_usd"`
	MaxDistanceMiles float64 `yaml:"max_distance_miles" json:"max_distance_miles"`
	MaxWeightLbs     float64 `yaml:"max_weight_lbs" json:"max_weight_lbs"`
}

// Defaults fills unset ceilings.
func (l *Limits) Defaults() {
	if l.MaxRateUSD <= 0 {
		l.MaxRateUSD = 50_000
	}
	if l.MaxDistanceMiles <= 0 {
		l.MaxDistanceMiles = 5_000
	}
	if l.MaxWeightLbs <= 0 {
		l.MaxWeightLbs = 100_000
	}
}

// Config drives normalization.
type Config struct {
	Limits Limits      `yaml:"limits" json:"limits"`
	Fields []FieldRule `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// Defaults fills ceilings and installs the standard field rules when none
// are configured.
func (c *Config) Defaults() {
	c.Limits.Defaults()
	if len(c.Fields) == 0 {
		c.Fields = DefaultFieldRules()
	}
}

// DefaultFieldRules matches the markup variants the board has shipped.
func DefaultFieldRules() []FieldRule {
	return []FieldRule{
		{Field: FieldID, Attr: "data-load-id"},
		{Field: FieldID, Selector: "[data-load-id]", Attr: "data-load-id"},
		{Field: FieldID, Selector: ".load-id"},
		{Field: FieldOrigin, Selector: ".origin"},
		{Field: FieldOrigin, Attr: "data-origin"},
		{Field: FieldDestination, Selector: ".destination"},
		{Field: FieldDestination, Selector: ".dest"},
		{Field: FieldDestination, Attr: "data-destination"},
		{Field: FieldRate, Selector: ".rate"},
		{Field: FieldRate, Attr: "data-rate"},
		{Field: FieldDistance, Selector: ".miles"},
		{Field: FieldDistance, Selector: ".distance"},
		{Field: FieldDistance, Attr: "data-miles"},
		{Field: FieldDeadhead, Selector: ".deadhead"},
		{Field: FieldDeadhead, Attr: "data-deadhead"},
		{Field: FieldEquipment, Selector: ".equipment"},
		{Field: FieldPickupDate, Selector: ".pickup"},
		{Field: FieldDeliveryDate, Selector: ".delivery"},
		{Field: FieldWeight, Selector: ".weight"},
	}
}

// IDFunc synthesizes a load ID when the page offers none worth keeping.
type IDFunc func(origin, dest string, t time.Time) string

// maxSourceHTML caps the raw fragment carried on the record.
const maxSourceHTML = 8 << 10

// idDeny rejects placeholder UI strings scraped where an ID should be.
var idDeny = []string{"n/a", "tbd", "null", "none", "undefined", "book", "call", "click", "view", "detail"}

// Normalize builds a typed Load from a candidate. Returns (nil, false)
// only when neither origin nor destination resolved — such a fragment has
// no lane and cannot be a posting. Never panics on malformed input.
func Normalize(c extract.Candidate, cfg Config, now time.Time, newID IDFunc) (*load.Load, bool) {
	cfg.Defaults()

	text := c.Text
	if text == "" && c.Node != nil {
		text = extract.Text(c.Node)
	}

	raw := applyRules(c, cfg.Fields)

	l := &load.Load{
		DiscoveredAt: now.UnixMilli(),
	}

	// Lane endpoints: rule value first, then positional free-text matches
	// (first location reads as origin, second as destination).
	locs := locationRe.FindAllString(text, 3)
	origin := cleanLocation(raw[FieldOrigin])
	if origin == "" && len(locs) > 0 {
		origin = cleanLocation(locs[0])
	}
	dest := cleanLocation(raw[FieldDestination])
	if dest == "" && len(locs) > 1 {
		dest = cleanLocation(locs[1])
	}
	l.OriginText, l.DestinationText = origin, dest
	if !l.Valid() {
		return nil, false
	}
	if p, ok := splitLocation(origin); ok {
		l.OriginCity, l.OriginState, l.OriginZip = p.city, p.state, p.zip
	}
	if p, ok := splitLocation(dest); ok {
		l.DestCity, l.DestState, l.DestZip = p.city, p.state, p.zip
	}

	// Money.
	if v, ok := parseAmount(raw[FieldRate], cfg.Limits.MaxRateUSD); ok {
		l.RateUSD = v
	} else if v, ok := parseMoneyStrict(text, cfg.Limits.MaxRateUSD); ok {
		l.RateUSD = v
	}

	// Deadhead before distance: its span must not be double-counted.
	skip := [2]int{}
	if v, ok := parseMileage(raw[FieldDeadhead], cfg.Limits.MaxDistanceMiles); ok {
		l.DeadheadMiles = v
	} else if v, span, ok := parseDeadhead(text, cfg.Limits.MaxDistanceMiles); ok {
		l.DeadheadMiles = v
		skip = span
	}
	if v, ok := parseMileage(raw[FieldDistance], cfg.Limits.MaxDistanceMiles); ok {
		l.DistanceMiles = v
	} else if v, ok := parseDistance(text, cfg.Limits.MaxDistanceMiles, skip); ok {
		l.DistanceMiles = v
	}

	if v, ok := parseWeight(raw[FieldWeight], cfg.Limits.MaxWeightLbs); ok {
		l.WeightLbs = v
	} else if v, ok := parseWeight(text, cfg.Limits.MaxWeightLbs); ok {
		l.WeightLbs = v
	}

	// Equipment: rule value as-is, else the first recognised term.
	if eq := strings.TrimSpace(raw[FieldEquipment]); eq != "" {
		l.EquipmentType = eq
	} else if m := equipRe.FindString(text); m != "" {
		l.EquipmentType = m
	}

	// Dates stay textual: first match is pickup, second is delivery.
	dates := dateRe.FindAllString(text, 2)
	if d := strings.TrimSpace(raw[FieldPickupDate]); d != "" {
		l.PickupDate = d
	} else if len(dates) > 0 {
		l.PickupDate = dates[0]
	}
	if d := strings.TrimSpace(raw[FieldDeliveryDate]); d != "" {
		l.DeliveryDate = d
	} else if len(dates) > 1 {
		l.DeliveryDate = dates[1]
	}

	// Identity.
	if id := validID(raw[FieldID]); id != "" {
		l.ID = id
	} else if newID != nil {
		l.ID = newID(l.OriginText, l.DestinationText, now)
	}

	if c.Node != nil {
		if h := extract.Render(c.Node); h != "" {
			if len(h) > maxSourceHTML {
				h = h[:maxSourceHTML]
			}
			l.SourceHTML = h
		}
	}
	return l, true
}

// applyRules resolves the configured rules into raw per-field strings.
// First hit per field wins; later rules for a resolved field are skipped.
func applyRules(c extract.Candidate, rules []FieldRule) map[string]string {
	raw := make(map[string]string, len(rules))
	if c.Node == nil {
		return raw
	}
	for _, r := range rules {
		if raw[r.Field] != "" {
			continue
		}
		var val string
		switch {
		case r.Selector != "":
			if n := extract.First(c.Node, r.Selector); n != nil {
				if r.Attr != "" {
					val = extract.Attr(n, r.Attr)
				} else {
					val = extract.Text(n)
				}
			}
		case r.Attr != "":
			val = extract.Attr(c.Node, r.Attr)
		}
		if val = strings.TrimSpace(val); val != "" {
			raw[r.Field] = val
		}
	}
	return raw
}

// validID accepts a scraped identifier only when it is plausibly real:
// 3 to 50 characters, no whitespace, and no placeholder vocabulary.
func validID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) < 3 || len(id) > 50 {
		return ""
	}
	if strings.ContainsAny(id, " \t\n") {
		return ""
	}
	lower := strings.ToLower(id)
	for _, deny := range idDeny {
		if strings.Contains(lower, deny) {
			return ""
		}
	}
	return id
}
