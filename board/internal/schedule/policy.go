package schedule

import (
	"time"

	"github.com/hazyhaar/loadwatch/board/load"
)

// Policy is the adaptive interval rule set. All adjustments are relative
// to the current interval, capped relative to the base, and finally
// clamped into [Min, Max] — no sequence of outcomes can escape the band.
type Policy struct {
	// Base is the steady-state interval a fresh session starts from.
	// Default: 3s.
	Base time.Duration `yaml:"base" json:"base"`
	// Min bounds how aggressive polling may get. Default: 1500ms.
	Min time.Duration `yaml:"min" json:"min"`
	// Max bounds the backoff. Default: 15s.
	Max time.Duration `yaml:"max" json:"max"`
	// SlowCycle marks a completed cycle as slow. Default: 5s.
	SlowCycle time.Duration `yaml:"slow_cycle" json:"slow_cycle"`
	// HiddenMultiplier stretches the delay while the page is hidden.
	// Default: 2.0.
	HiddenMultiplier float64 `yaml:"hidden_multiplier" json:"hidden_multiplier"`
}

// Defaults fills unset fields and repairs an inverted band.
func (p *Policy) Defaults() {
	if p.Base <= 0 {
		p.Base = 3 * time.Second
	}
	if p.Min <= 0 {
		p.Min = 1500 * time.Millisecond
	}
	if p.Max <= 0 {
		p.Max = 15 * time.Second
	}
	if p.Max < p.Min {
		p.Max = p.Min
	}
	if p.SlowCycle <= 0 {
		p.SlowCycle = 5 * time.Second
	}
	if p.HiddenMultiplier < 1 {
		p.HiddenMultiplier = 2.0
	}
}

// Next computes the interval that follows a completed cycle.
//
//	profitable        ×0.5            (race toward Min while the lane is hot)
//	new, unprofitable ×0.8
//	no new loads      ×1.2  ≤ 2×Base
//	no candidates     ×1.5  ≤ 3×Base  (page empty or unreadable)
//	error / timeout   ×1.3  ≤ 2.5×Base
//	slow no-new cycle ×1.3  ≤ 2.5×Base
//	anything else     relax 30% toward Base
//
// Good outcomes win over slowness: a slow cycle that found profitable
// loads still speeds up.
func (p Policy) Next(cur time.Duration, out load.Outcome, elapsed time.Duration) time.Duration {
	var next time.Duration
	switch {
	case out == load.OutcomeError || out == load.OutcomeTimeout:
		next = capAt(scale(cur, 1.3), scale(p.Base, 2.5))
	case out == load.OutcomeProfitable:
		next = cur / 2
	case out == load.OutcomeNewLoads:
		next = scale(cur, 0.8)
	case out == load.OutcomeNoCandidates:
		next = capAt(scale(cur, 1.5), 3*p.Base)
	case out == load.OutcomeNoNew && elapsed > p.SlowCycle:
		next = capAt(scale(cur, 1.3), scale(p.Base, 2.5))
	case out == load.OutcomeNoNew:
		next = capAt(scale(cur, 1.2), 2*p.Base)
	default:
		next = cur + scale(p.Base-cur, 0.3)
	}
	return p.Clamp(next)
}

// Delay is the actual timer duration before the next cycle: the interval,
// stretched while the page is hidden, still inside the band.
func (p Policy) Delay(interval time.Duration, hidden bool) time.Duration {
	if !hidden {
		return interval
	}
	return p.Clamp(scale(interval, p.HiddenMultiplier))
}

// Clamp forces a duration into [Min, Max].
func (p Policy) Clamp(d time.Duration) time.Duration {
	if d < p.Min {
		return p.Min
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

func scale(d time.Duration, f float64) time.Duration {
	return time.Duration(float64(d) * f)
}

func capAt(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	return d
}
