// Package schedule drives one watch session: it runs cycles through a
// Runner at an adaptive interval, enforces a per-cycle timeout, and
// carries a watchdog that force-restarts the loop when it stalls.
//
// The loop is a single goroutine. Cycles execute in worker goroutines
// whose results come back tagged with a generation counter; a result
// from an orphaned cycle (timed out, or cut loose by the watchdog) is
// discarded on arrival. At most one cycle is live at a time.
package schedule

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/loadwatch/board/load"
)

// Runner executes one discovery cycle. It must honor ctx cancellation;
// the scheduler cancels it on timeout and on watchdog restart.
type Runner func(ctx context.Context) Result

// Result is what a cycle reports back.
type Result struct {
	Outcome load.Outcome
	Err     error
}

// Config bounds the loop.
type Config struct {
	Policy Policy `yaml:"policy" json:"policy"`
	// CycleTimeout aborts a cycle that runs too long. Default: 30s.
	CycleTimeout time.Duration `yaml:"cycle_timeout" json:"cycle_timeout"`
	// WatchdogInterval is how often staleness is checked. Default: 15s.
	WatchdogInterval time.Duration `yaml:"watchdog_interval" json:"watchdog_interval"`
	// StallFactor: no completed cycle for StallFactor×interval means the
	// loop is stuck. Default: 3.
	StallFactor int `yaml:"stall_factor" json:"stall_factor"`
	// RestartDelay is the pause before the cycle forced by a watchdog
	// restart. Default: 250ms.
	RestartDelay time.Duration `yaml:"restart_delay" json:"restart_delay"`
}

// Defaults fills unset fields.
func (c *Config) Defaults() {
	c.Policy.Defaults()
	if c.CycleTimeout <= 0 {
		c.CycleTimeout = 30 * time.Second
	}
	if c.WatchdogInterval <= 0 {
		c.WatchdogInterval = 15 * time.Second
	}
	if c.StallFactor <= 0 {
		c.StallFactor = 3
	}
	if c.RestartDelay <= 0 {
		c.RestartDelay = 250 * time.Millisecond
	}
}

type ctrlKind int

const (
	ctrlRunNow ctrlKind = iota + 1
	ctrlVisibility
	ctrlPolicy
)

type ctrlMsg struct {
	kind    ctrlKind
	visible bool
	policy  Policy
}

type result struct {
	gen uint64
	res Result
}

// Stats is a point-in-time snapshot of the loop.
type Stats struct {
	Running          bool          `json:"running"`
	Cycles           uint64        `json:"cycles"`
	Errors           int64         `json:"errors"`
	Timeouts         int64         `json:"timeouts"`
	WatchdogRestarts int64         `json:"watchdog_restarts"`
	Interval         time.Duration `json:"interval"`
	LastOutcome      load.Outcome  `json:"last_outcome"`
	LastCompletedAt  int64         `json:"last_completed_at"`
	PageHidden       bool          `json:"page_hidden"`
}

// Scheduler owns the polling loop for one session. Create with New,
// start with Run, observe with Stats. Not reusable after Run returns.
type Scheduler struct {
	run    Runner
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	ctrl chan ctrlMsg
	done chan struct{}

	running     atomic.Bool
	cycles      atomic.Uint64
	errs        atomic.Int64
	timeouts    atomic.Int64
	restarts    atomic.Int64
	intervalNs  atomic.Int64
	lastDoneMs  atomic.Int64
	hidden      atomic.Bool
	lastOutcome atomic.Pointer[load.Outcome]
}

// New builds a Scheduler. The Runner must not be nil.
func New(run Runner, cfg Config, logger *slog.Logger) *Scheduler {
	cfg.Defaults()
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		run:    run,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		ctrl:   make(chan ctrlMsg, 8),
		done:   make(chan struct{}),
	}
	s.intervalNs.Store(int64(cfg.Policy.Base))
	return s
}

// Run executes the loop until ctx is cancelled. The first cycle starts
// immediately. Blocks; callers run it in a goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	s.running.Store(true)
	defer s.running.Store(false)
	defer close(s.done)

	interval := s.cfg.Policy.Clamp(s.cfg.Policy.Base)
	s.intervalNs.Store(int64(interval))
	s.lastDoneMs.Store(s.now().UnixMilli())

	var (
		gen         uint64
		pending     bool
		started     time.Time
		cancelCycle context.CancelFunc
		hidden      bool
	)
	defer func() {
		if cancelCycle != nil {
			cancelCycle()
		}
	}()

	results := make(chan result, 1)

	cycle := time.NewTimer(0)
	defer cycle.Stop()
	timeout := time.NewTimer(time.Hour)
	timeout.Stop()
	defer timeout.Stop()
	watchdog := time.NewTicker(s.cfg.WatchdogInterval)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-cycle.C:
			if pending {
				continue
			}
			pending = true
			gen++
			started = s.now()
			cctx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
			cancelCycle = cancel
			timeout.Reset(s.cfg.CycleTimeout)
			go s.execute(ctx, cctx, gen, results)

		case r := <-results:
			if !pending || r.gen != gen {
				continue
			}
			pending = false
			timeout.Stop()
			if cancelCycle != nil {
				cancelCycle()
				cancelCycle = nil
			}
			interval = s.completed(r.res, s.now().Sub(started), interval)
			cycle.Reset(s.cfg.Policy.Delay(interval, hidden))

		case <-timeout.C:
			if !pending {
				continue
			}
			// Orphan the in-flight cycle: bump the generation so its
			// eventual result is discarded, and cancel its context.
			pending = false
			gen++
			if cancelCycle != nil {
				cancelCycle()
				cancelCycle = nil
			}
			s.timeouts.Add(1)
			s.logger.Warn("schedule: cycle timed out",
				"timeout", s.cfg.CycleTimeout,
				"cycles", s.cycles.Load())
			interval = s.completed(Result{Outcome: load.OutcomeTimeout}, s.cfg.CycleTimeout, interval)
			cycle.Reset(s.cfg.Policy.Delay(interval, hidden))

		case <-watchdog.C:
			stale := s.now().Sub(time.UnixMilli(s.lastDoneMs.Load()))
			if stale <= time.Duration(s.cfg.StallFactor)*interval {
				continue
			}
			s.restarts.Add(1)
			s.logger.Warn("schedule: watchdog restart",
				"stale", stale,
				"interval", interval)
			pending = false
			gen++
			timeout.Stop()
			if cancelCycle != nil {
				cancelCycle()
				cancelCycle = nil
			}
			s.lastDoneMs.Store(s.now().UnixMilli())
			cycle.Reset(s.cfg.RestartDelay)

		case m := <-s.ctrl:
			switch m.kind {
			case ctrlRunNow:
				if !pending {
					cycle.Reset(0)
				}
			case ctrlVisibility:
				hidden = !m.visible
				s.hidden.Store(hidden)
				s.logger.Debug("schedule: visibility changed", "hidden", hidden)
			case ctrlPolicy:
				s.cfg.Policy = m.policy
				interval = m.policy.Clamp(m.policy.Base)
				s.intervalNs.Store(int64(interval))
				if !pending {
					cycle.Reset(s.cfg.Policy.Delay(interval, hidden))
				}
			}
		}
	}
}

// execute runs one cycle off the loop goroutine. The send escapes on
// session ctx so an orphaned worker never leaks.
func (s *Scheduler) execute(ctx, cctx context.Context, gen uint64, results chan<- result) {
	res := s.run(cctx)
	select {
	case results <- result{gen: gen, res: res}:
	case <-ctx.Done():
	}
}

func (s *Scheduler) completed(r Result, elapsed time.Duration, cur time.Duration) time.Duration {
	s.cycles.Add(1)
	if r.Err != nil || r.Outcome == load.OutcomeError || r.Outcome == load.OutcomeTimeout {
		s.errs.Add(1)
	}
	out := r.Outcome
	s.lastOutcome.Store(&out)
	s.lastDoneMs.Store(s.now().UnixMilli())

	next := s.cfg.Policy.Next(cur, out, elapsed)
	s.intervalNs.Store(int64(next))
	if next != cur {
		s.logger.Debug("schedule: interval adjusted",
			"outcome", string(out),
			"from", cur,
			"to", next,
			"elapsed", elapsed)
	}
	return next
}

// RunNow asks for an immediate cycle. No-op while one is already
// running. Returns false once the loop has exited.
func (s *Scheduler) RunNow() bool {
	return s.send(ctrlMsg{kind: ctrlRunNow})
}

// SetVisible records page visibility; hidden pages poll slower.
func (s *Scheduler) SetVisible(visible bool) bool {
	return s.send(ctrlMsg{kind: ctrlVisibility, visible: visible})
}

// SetPolicy swaps the interval policy and resets the interval to the
// new base.
func (s *Scheduler) SetPolicy(p Policy) bool {
	p.Defaults()
	return s.send(ctrlMsg{kind: ctrlPolicy, policy: p})
}

func (s *Scheduler) send(m ctrlMsg) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.ctrl <- m:
		return true
	case <-s.done:
		return false
	}
}

// Done is closed when Run returns.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// Stats snapshots the loop counters.
func (s *Scheduler) Stats() Stats {
	st := Stats{
		Running:          s.running.Load(),
		Cycles:           s.cycles.Load(),
		Errors:           s.errs.Load(),
		Timeouts:         s.timeouts.Load(),
		WatchdogRestarts: s.restarts.Load(),
		Interval:         time.Duration(s.intervalNs.Load()),
		LastCompletedAt:  s.lastDoneMs.Load(),
		PageHidden:       s.hidden.Load(),
	}
	if p := s.lastOutcome.Load(); p != nil {
		st.LastOutcome = *p
	}
	return st
}
