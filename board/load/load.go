// Package load defines the structured types emitted by loadwatch.
// These are the public API contract: any consumer (sinks, the control API,
// MCP tools) imports this package to receive and process discovered loads.
package load

// Priority buckets an emitted load for display ordering.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Load is one normalized load posting lifted off the board page.
// Free-text origin/destination are always present on a valid load; the
// structured city/state/zip fields are filled only when the text parses.
type Load struct {
	ID              string `json:"id"`
	EquipmentType   string `json:"equipment_type,omitempty"`
	OriginText      string `json:"origin_text"`
	DestinationText string `json:"destination_text"`
	OriginCity      string `json:"origin_city,omitempty"`
	OriginState     string `json:"origin_state,omitempty"`
	OriginZip       string `json:"origin_zip,omitempty"`
	DestCity        string `json:"dest_city,omitempty"`
	DestState       string `json:"dest_state,omitempty"`
	DestZip         string `json:"dest_zip,omitempty"`
	PickupDate      string `json:"pickup_date,omitempty"`
	DeliveryDate    string `json:"delivery_date,omitempty"`

	DistanceMiles float64 `json:"distance_miles"`
	DeadheadMiles float64 `json:"deadhead_miles"`
	RateUSD       float64 `json:"rate_usd"`
	WeightLbs     float64 `json:"weight_lbs,omitempty"`

	DiscoveredAt int64  `json:"discovered_at"`         // epoch milliseconds
	SourceHTML   string `json:"source_html,omitempty"` // raw fragment the load came from
}

// Valid reports whether the load carries enough identity to be scored.
// A load with neither origin nor destination text is noise.
func (l *Load) Valid() bool {
	return l != nil && (l.OriginText != "" || l.DestinationText != "")
}

// Lane is the origin→destination pair as a single display string.
func (l *Load) Lane() string {
	switch {
	case l.OriginText == "":
		return "? -> " + l.DestinationText
	case l.DestinationText == "":
		return l.OriginText + " -> ?"
	default:
		return l.OriginText + " -> " + l.DestinationText
	}
}

// Verdict is the profitability evaluation of a single load. It is a pure
// function of the load and the active thresholds; verdicts are never
// stored back onto the load or mutated after evaluation.
type Verdict struct {
	RatePerMile   float64  `json:"rate_per_mile"`
	DeadheadRatio float64  `json:"deadhead_ratio"`
	Score         float64  `json:"score"`
	Profitable    bool     `json:"profitable"`
	Priority      Priority `json:"priority"`
}

// Event is the atomic unit delivered to sinks: one newly discovered load
// that passed the profitability gate and the user filters, together with
// both scoring passes and an optional markdown rendering of its source
// fragment.
type Event struct {
	Load           Load    `json:"load"`
	Verdict        Verdict `json:"verdict"`
	Points         int     `json:"points"`
	DetailMarkdown string  `json:"detail_markdown,omitempty"`
	Cycle          uint64  `json:"cycle"`
	EmittedAt      int64   `json:"emitted_at"` // epoch milliseconds
}

// Outcome classifies what a polling cycle produced. The scheduler keys
// its interval adjustment off this value.
type Outcome string

const (
	OutcomeProfitable   Outcome = "profitable"    // at least one load emitted
	OutcomeNewLoads     Outcome = "new_loads"     // new loads seen, none emitted
	OutcomeNoNew        Outcome = "no_new"        // candidates present, all already known
	OutcomeNoCandidates Outcome = "no_candidates" // page yielded nothing extractable
	OutcomeError        Outcome = "error"         // snapshot or pipeline failure
	OutcomeTimeout      Outcome = "timeout"       // cycle exceeded its deadline
)

// CycleStats summarises one polling cycle for the journal and stats sinks.
type CycleStats struct {
	Cycle      uint64  `json:"cycle"`
	Scanned    int     `json:"scanned"`    // candidates extracted
	New        int     `json:"new"`        // loads not previously seen
	Profitable int     `json:"profitable"` // loads passing the gate (pre-dedup)
	Emitted    int     `json:"emitted"`    // events actually delivered
	DurationMs int64   `json:"duration_ms"`
	Outcome    Outcome `json:"outcome"`
	IntervalMs int64   `json:"interval_ms"` // interval that will precede the next cycle
	At         int64   `json:"at"`          // epoch milliseconds at cycle completion
}
