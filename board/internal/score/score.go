// Package score evaluates normalized loads against the profitability rule
// and the user's filter criteria. Every function is pure and total: any
// load, however degenerate, produces a verdict without panicking.
package score

import (
	"strings"

	"github.com/hazyhaar/loadwatch/board/load"
)

// deadheadPenalty discounts the composite score by up to 30% as the
// deadhead ratio approaches 1.
const deadheadPenalty = 0.3

// Composite score cut points for the ratio-pass priority.
const (
	scoreHigh   = 3.5
	scoreMedium = 2.5
)

// Point-pass tier boundaries.
const (
	pointsHigh   = 60
	pointsMedium = 30
)

// Config holds the profitability gate thresholds and the user filters.
// Zero values for the filter fields mean "no constraint".
type Config struct {
	// MinRatePerMile is the gate threshold. Default: 2.50.
	MinRatePerMile float64 `yaml:"min_rate_per_mile" json:"min_rate_per_mile"`
	// MaxDeadheadRatio is the gate threshold. Default: 0.25.
	MaxDeadheadRatio float64 `yaml:"max_deadhead_ratio" json:"max_deadhead_ratio"`
	// MinDistanceMiles filters out short runs. 0 = no minimum.
	MinDistanceMiles float64 `yaml:"min_distance_miles" json:"min_distance_miles"`
	// MaxDistanceMiles filters out long runs. 0 = no maximum.
	MaxDistanceMiles float64 `yaml:"max_distance_miles" json:"max_distance_miles"`
	// Regions is an allow-list matched against lane endpoints.
	// Empty = all regions pass. Two-letter entries are also compared as
	// exact state codes.
	Regions []string `yaml:"regions" json:"regions,omitempty"`
}

// Defaults fills unset gate thresholds.
func (c *Config) Defaults() {
	if c.MinRatePerMile <= 0 {
		c.MinRatePerMile = 2.50
	}
	if c.MaxDeadheadRatio <= 0 {
		c.MaxDeadheadRatio = 0.25
	}
}

// Evaluate runs the ratio pass over a load.
//
//	ratePerMile    = rate / (distance + deadhead)   (0 when the denominator is 0)
//	deadheadRatio  = deadhead / distance            (1 when distance is 0)
//	score          = ratePerMile * (1 - deadheadRatio*0.3)
//
// A load is profitable when ratePerMile meets the minimum and the deadhead
// ratio stays under the maximum. Priority comes from the composite score.
func Evaluate(l *load.Load, cfg Config) load.Verdict {
	cfg.Defaults()

	var v load.Verdict
	if total := l.DistanceMiles + l.DeadheadMiles; total > 0 {
		v.RatePerMile = l.RateUSD / total
	}
	if l.DistanceMiles > 0 {
		v.DeadheadRatio = l.DeadheadMiles / l.DistanceMiles
	} else {
		// Zero-distance postings are all deadhead: worst possible ratio.
		v.DeadheadRatio = 1
	}
	v.Score = v.RatePerMile * (1 - v.DeadheadRatio*deadheadPenalty)
	v.Profitable = v.RatePerMile >= cfg.MinRatePerMile && v.DeadheadRatio <= cfg.MaxDeadheadRatio

	switch {
	case v.Score > scoreHigh:
		v.Priority = load.PriorityHigh
	case v.Score > scoreMedium:
		v.Priority = load.PriorityMedium
	default:
		v.Priority = load.PriorityLow
	}
	return v
}

// Points runs the independent point pass: additive tiers over rate per
// mile, deadhead ratio, distance band, and total revenue. The two passes
// disagree on purpose for some loads — the ratio pass gates emission, the
// point pass drives display priority.
func Points(l *load.Load) int {
	var rpm, ratio float64
	if total := l.DistanceMiles + l.DeadheadMiles; total > 0 {
		rpm = l.RateUSD / total
	}
	if l.DistanceMiles > 0 {
		ratio = l.DeadheadMiles / l.DistanceMiles
	} else {
		ratio = 1
	}

	pts := 0

	switch {
	case rpm >= 3.0:
		pts += 30
	case rpm >= 2.5:
		pts += 20
	case rpm >= 2.0:
		pts += 10
	}

	switch {
	case ratio <= 0.1:
		pts += 25
	case ratio <= 0.2:
		pts += 15
	case ratio <= 0.3:
		pts += 5
	}

	switch {
	case l.DistanceMiles >= 200 && l.DistanceMiles <= 600:
		pts += 25 // regional sweet spot
	case l.DistanceMiles >= 100 && l.DistanceMiles <= 800:
		pts += 15
	case l.DistanceMiles > 0:
		pts += 5
	}

	switch {
	case l.RateUSD >= 1500:
		pts += 20
	case l.RateUSD >= 1000:
		pts += 10
	case l.RateUSD >= 600:
		pts += 5
	}

	return pts
}

// PointsPriority maps a point total onto the display priority tiers.
func PointsPriority(pts int) load.Priority {
	switch {
	case pts >= pointsHigh:
		return load.PriorityHigh
	case pts >= pointsMedium:
		return load.PriorityMedium
	default:
		return load.PriorityLow
	}
}

// PassesFilters applies the user criteria: distance band and region
// allow-list. Gate thresholds are handled by Evaluate, not here.
func PassesFilters(l *load.Load, cfg Config) bool {
	if cfg.MinDistanceMiles > 0 && l.DistanceMiles < cfg.MinDistanceMiles {
		return false
	}
	if cfg.MaxDistanceMiles > 0 && l.DistanceMiles > cfg.MaxDistanceMiles {
		return false
	}
	if len(cfg.Regions) == 0 {
		return true
	}
	for _, region := range cfg.Regions {
		if matchesRegion(l, region) {
			return true
		}
	}
	return false
}

// matchesRegion checks one allow-list entry against both lane endpoints.
func matchesRegion(l *load.Load, region string) bool {
	region = strings.TrimSpace(region)
	if region == "" {
		return false
	}
	if len(region) == 2 {
		code := strings.ToUpper(region)
		if l.OriginState == code || l.DestState == code {
			return true
		}
	}
	lower := strings.ToLower(region)
	return strings.Contains(strings.ToLower(l.OriginText), lower) ||
		strings.Contains(strings.ToLower(l.DestinationText), lower)
}
