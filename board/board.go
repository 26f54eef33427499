// CLAUDE:SUMMARY Main Service orchestrator: watch session lifecycle, cycle pipeline, scheduler control, journal wiring.
package board

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/loadwatch/board/internal/dedup"
	"github.com/hazyhaar/loadwatch/board/internal/detail"
	"github.com/hazyhaar/loadwatch/board/internal/extract"
	"github.com/hazyhaar/loadwatch/board/internal/normalize"
	"github.com/hazyhaar/loadwatch/board/internal/schedule"
	"github.com/hazyhaar/loadwatch/board/internal/score"
	"github.com/hazyhaar/loadwatch/board/internal/sink"
	"github.com/hazyhaar/loadwatch/board/internal/store"
	"github.com/hazyhaar/loadwatch/board/load"
	"github.com/hazyhaar/loadwatch/idgen"
	"github.com/hazyhaar/loadwatch/pagesource"
)

// normalizeBatch is how many candidates are normalized between
// cancellation checks.
const normalizeBatch = 8

// Service is the loadwatch orchestrator. One Service watches one board
// page; a watch session runs between Start and Stop. Create with New.
type Service struct {
	provider pagesource.Provider
	logger   *slog.Logger
	router   *sink.Router
	sinks    []sink.Sink
	st       *store.Store
	renderer *detail.Renderer
	newID    idgen.Generator
	loadID   func(origin, dest string, t time.Time) string
	now      func() time.Time

	mu        sync.Mutex
	cfg       *Config
	sched     *schedule.Scheduler
	cancel    context.CancelFunc
	sessionID string
	authed    bool

	// cacheMu serializes dedup access: the cycle worker owns the cache
	// during a cycle, but an orphaned worker can overlap its successor.
	cacheMu sync.Mutex
	cache   *dedup.Cache
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithSinks sets the delivery backends for emitted loads and cycle stats.
func WithSinks(sinks ...Sink) ServiceOption {
	return func(svc *Service) { svc.sinks = append(svc.sinks, sinks...) }
}

// WithStore attaches the SQLite journal. The caller owns the database
// handle and its schema (see ApplySchema).
func WithStore(db *sql.DB) ServiceOption {
	return func(svc *Service) { svc.st = store.NewStore(db) }
}

// WithClock overrides the time source. Use in tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(svc *Service) { svc.now = now }
}

// WithIDGenerator overrides the session ID generator.
func WithIDGenerator(gen idgen.Generator) ServiceOption {
	return func(svc *Service) { svc.newID = gen }
}

// WithLoadIDFunc overrides the synthetic load ID function used when a
// posting carries no usable identifier of its own.
func WithLoadIDFunc(fn func(origin, dest string, t time.Time) string) ServiceOption {
	return func(svc *Service) { svc.loadID = fn }
}

// New creates a Service. The provider supplies page snapshots; cfg must
// at least name the board URL.
func New(provider pagesource.Provider, cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: nil page provider", ErrInvalidConfig)
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Service{
		provider: provider,
		logger:   logger,
		renderer: detail.NewRenderer(),
		newID:    idgen.Prefixed("sess_", idgen.NanoID(12)),
		loadID:   idgen.SyntheticLoadID,
		now:      time.Now,
		cfg:      cfg,
		authed:   true,
		cache:    dedup.New(cfg.Dedup),
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.router = sink.NewRouter(logger, svc.sinks...)
	return svc, nil
}

// ApplySchema applies the journal schema to a database. Exported for
// callers that open the database themselves before WithStore.
func ApplySchema(db *sql.DB) error {
	return store.ApplySchema(db)
}

// --- Session lifecycle ---

// Start begins a watch session. The session runs until Stop, Close, or
// authentication loss; cancelling ctx does not end it. Old journal rows
// past the retention window are pruned on the way in.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sched != nil {
		return ErrAlreadyRunning
	}
	if !s.authed {
		return ErrNotAuthenticated
	}

	if s.st != nil && s.cfg.Store.Retention > 0 {
		cutoff := s.now().Add(-s.cfg.Store.Retention).UnixMilli()
		if n, err := s.st.PruneBefore(ctx, cutoff); err != nil {
			s.logger.Warn("board: journal prune failed", "error", err)
		} else if n > 0 {
			s.logger.Info("board: journal pruned", "rows", n)
		}
	}

	s.sessionID = s.newID()
	sess := s.sessionID

	var seq atomic.Uint64
	var sched *schedule.Scheduler
	sched = schedule.New(func(ctx context.Context) schedule.Result {
		return s.runCycle(ctx, sched, sess, seq.Add(1))
	}, s.cfg.Schedule, s.logger)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.sched = sched
	s.cancel = cancel
	go sched.Run(runCtx)

	s.logger.Info("board: watch session started",
		"session", sess, "url", s.cfg.Board.URL, "provider", s.cfg.Board.Provider)
	return nil
}

// Stop ends the watch session and clears the dedup cache, so the next
// session rediscovers everything still on the board.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Service) stopLocked() error {
	if s.sched == nil {
		return ErrNotRunning
	}
	s.cancel()
	<-s.sched.Done()
	s.sched = nil
	s.cancel = nil

	s.cacheMu.Lock()
	s.cache.Clear()
	s.cacheMu.Unlock()

	s.logger.Info("board: watch session stopped", "session", s.sessionID)
	return nil
}

// Close stops any running session, closes the sinks, and releases the
// page provider. The journal database belongs to the caller.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sched != nil {
		s.stopLocked()
	}
	if err := s.router.Close(); err != nil {
		s.logger.Warn("board: sink close failed", "error", err)
	}
	err := s.provider.Close()
	s.logger.Info("board: closed")
	return err
}

// RunCycleNow schedules an immediate cycle, skipping the current wait.
func (s *Service) RunCycleNow() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sched == nil || !s.sched.RunNow() {
		return ErrNotRunning
	}
	return nil
}

// SetPageVisible tells the scheduler whether the consumer is looking at
// the results. Hidden consumers poll at half rate.
func (s *Service) SetPageVisible(visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sched == nil || !s.sched.SetVisible(visible) {
		return ErrNotRunning
	}
	return nil
}

// SetAuthenticated records whether the board page session is live.
// Marking false stops a running watch session.
func (s *Service) SetAuthenticated(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authed = ok
	if !ok && s.sched != nil {
		s.logger.Warn("board: authentication lost, stopping session")
		s.stopLocked()
	}
}

// --- Configuration ---

// UpdateConfig replaces the active configuration. The dedup cache is
// preserved so known loads stay suppressed; the polling interval resets
// to the new base. Transport settings (board.url, provider) take effect
// on the next session.
func (s *Service) UpdateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg
	s.cacheMu.Lock()
	s.cache.SetConfig(cfg.Dedup)
	s.cacheMu.Unlock()
	if s.sched != nil {
		s.sched.SetPolicy(cfg.Schedule.Policy)
	}
	s.logger.Info("board: configuration updated")
	return nil
}

// UpdateFilters replaces only the scoring thresholds and filters,
// leaving the schedule and dedup state untouched.
func (s *Service) UpdateFilters(f FilterConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.cfg
	next.Score = f
	next.applyDefaults()
	if err := next.validate(); err != nil {
		return err
	}
	s.cfg = &next
	s.logger.Info("board: filters updated",
		"min_rpm", next.Score.MinRatePerMile,
		"max_deadhead_ratio", next.Score.MaxDeadheadRatio)
	return nil
}

// snapshotConfig returns the active configuration. Config pointers are
// swapped whole on update, never mutated, so the returned value is
// stable for the length of a cycle.
func (s *Service) snapshotConfig() *Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// --- Observation ---

// Status is a point-in-time view of the service.
type Status struct {
	Running       bool          `json:"running"`
	SessionID     string        `json:"session_id,omitempty"`
	Authenticated bool          `json:"authenticated"`
	URL           string        `json:"url"`
	Provider      string        `json:"provider"`
	TrackedLoads  int           `json:"tracked_loads"`
	Schedule      ScheduleStats `json:"schedule"`
}

// Status reports the current session state.
func (s *Service) Status() *Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &Status{
		Authenticated: s.authed,
		URL:           s.cfg.Board.URL,
		Provider:      s.cfg.Board.Provider,
	}
	if s.sched != nil {
		st.Running = true
		st.SessionID = s.sessionID
		st.Schedule = s.sched.Stats()
	}
	s.cacheMu.Lock()
	st.TrackedLoads = s.cache.Len()
	s.cacheMu.Unlock()
	return st
}

// RecentEmitted returns the latest journaled emissions, newest first.
// Nil without a journal.
func (s *Service) RecentEmitted(ctx context.Context, limit int) ([]*EmittedLoad, error) {
	if s.st == nil {
		return nil, nil
	}
	return s.st.RecentEmitted(ctx, limit)
}

// CycleHistory returns the latest journaled cycles, newest first.
// Nil without a journal.
func (s *Service) CycleHistory(ctx context.Context, limit int) ([]*CycleRecord, error) {
	if s.st == nil {
		return nil, nil
	}
	return s.st.CycleHistory(ctx, limit)
}

// JournalTotals returns aggregate journal counters. Nil without a journal.
func (s *Service) JournalTotals(ctx context.Context) (*Totals, error) {
	if s.st == nil {
		return nil, nil
	}
	return s.st.Totals(ctx)
}

// --- Cycle pipeline ---

// runCycle is one poll of the board: snapshot, extract, normalize,
// score, dedup, emit, journal. It runs on a scheduler worker goroutine;
// ctx carries the cycle deadline.
func (s *Service) runCycle(ctx context.Context, sched *schedule.Scheduler, sess string, cycleNo uint64) schedule.Result {
	started := s.now()
	cfg := s.snapshotConfig()

	doc, err := s.provider.Snapshot(ctx)
	if err != nil {
		err = fmt.Errorf("board: page snapshot: %w", err)
		s.finishCycle(ctx, sched, sess, cfg, &load.CycleStats{
			Cycle:   cycleNo,
			Outcome: load.OutcomeError,
		}, started)
		return schedule.Result{Outcome: load.OutcomeError, Err: err}
	}

	if sel := cfg.Board.LoggedOutSelector; sel != "" && doc.Root != nil && extract.First(doc.Root, sel) != nil {
		s.logger.Warn("board: logged-out marker matched, stopping session", "selector", sel)
		s.SetAuthenticated(false)
		return schedule.Result{Outcome: load.OutcomeError, Err: ErrNotAuthenticated}
	}

	if doc.Unchanged {
		s.finishCycle(ctx, sched, sess, cfg, &load.CycleStats{
			Cycle:   cycleNo,
			Outcome: load.OutcomeNoNew,
		}, started)
		return schedule.Result{Outcome: load.OutcomeNoNew}
	}

	cands := extract.Extract(doc.Root, cfg.Rules, s.logger)
	scanned := len(cands)

	var loads []*load.Load
	for start := 0; start < len(cands); start += normalizeBatch {
		if err := ctx.Err(); err != nil {
			return schedule.Result{Outcome: load.OutcomeError, Err: err}
		}
		for _, c := range cands[start:min(start+normalizeBatch, len(cands))] {
			if l, ok := normalize.Normalize(c, cfg.Normalize, s.now(), s.loadID); ok {
				loads = append(loads, l)
			}
		}
	}

	// Dedup and gate. Every normalized ID is remembered, profitable or
	// not, so a load that later fails the filters never re-triggers.
	type hit struct {
		l *load.Load
		v load.Verdict
	}
	var toEmit []hit
	var newCount, profitable int
	now := s.now()

	s.cacheMu.Lock()
	s.cache.Sweep(now)
	for _, l := range loads {
		seen := s.cache.Seen(l.ID, now)
		s.cache.Remember(l.ID, cycleNo, now)
		v := score.Evaluate(l, cfg.Score)
		if v.Profitable {
			profitable++
		}
		if seen {
			continue
		}
		newCount++
		if v.Profitable && score.PassesFilters(l, cfg.Score) {
			toEmit = append(toEmit, hit{l, v})
		}
	}
	s.cacheMu.Unlock()

	var emitted int
	for _, h := range toEmit {
		if err := ctx.Err(); err != nil {
			return schedule.Result{Outcome: load.OutcomeError, Err: err}
		}
		ev := &load.Event{
			Load:           *h.l,
			Verdict:        h.v,
			Points:         score.Points(h.l),
			DetailMarkdown: s.renderer.Render(h.l.SourceHTML, cfg.Board.URL),
			Cycle:          cycleNo,
			EmittedAt:      s.now().UnixMilli(),
		}
		if err := s.router.Emit(ctx, ev); err != nil {
			s.logger.Error("board: event delivery incomplete",
				"load_id", ev.Load.ID, "error", err)
		}
		if s.st != nil {
			if err := s.st.InsertEmitted(ctx, sess, ev); err != nil {
				s.logger.Warn("board: journal emission failed",
					"load_id", ev.Load.ID, "error", err)
			}
		}
		emitted++
		s.logger.Info("board: load emitted",
			"load_id", ev.Load.ID, "lane", ev.Load.Lane(),
			"rpm", ev.Verdict.RatePerMile, "priority", ev.Verdict.Priority,
			"points", ev.Points)
	}

	outcome := load.OutcomeNoCandidates
	switch {
	case emitted > 0:
		outcome = load.OutcomeProfitable
	case newCount > 0:
		outcome = load.OutcomeNewLoads
	case scanned > 0:
		outcome = load.OutcomeNoNew
	}

	s.finishCycle(ctx, sched, sess, cfg, &load.CycleStats{
		Cycle:      cycleNo,
		Scanned:    scanned,
		New:        newCount,
		Profitable: profitable,
		Emitted:    emitted,
		Outcome:    outcome,
	}, started)
	return schedule.Result{Outcome: outcome}
}

// finishCycle stamps timing onto the stats, predicts the interval the
// scheduler will choose next, and delivers the record to the stats
// sinks and the journal. Delivery failures are logged, never propagated.
func (s *Service) finishCycle(ctx context.Context, sched *schedule.Scheduler, sess string, cfg *Config, cs *load.CycleStats, started time.Time) {
	if ctx.Err() != nil {
		return
	}

	elapsed := s.now().Sub(started)
	cs.DurationMs = elapsed.Milliseconds()
	cs.At = s.now().UnixMilli()
	cs.IntervalMs = cfg.Schedule.Policy.Next(sched.Stats().Interval, cs.Outcome, elapsed).Milliseconds()

	if err := s.router.EmitStats(ctx, cs); err != nil {
		s.logger.Warn("board: stats delivery incomplete", "cycle", cs.Cycle, "error", err)
	}
	if s.st != nil {
		if err := s.st.InsertCycle(ctx, sess, cs); err != nil {
			s.logger.Warn("board: journal cycle failed", "cycle", cs.Cycle, "error", err)
		}
	}
}
