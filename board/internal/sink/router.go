package sink

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/loadwatch/board/load"
)

// Router fans out events to all configured sinks. One sink error does
// not block the others — errors are logged and the first encountered is
// returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

func (r *Router) Emit(ctx context.Context, ev *load.Event) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Emit(ctx, ev); err != nil {
			r.logger.Warn("sink: emit failed", "load_id", ev.Load.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) EmitStats(ctx context.Context, cs *load.CycleStats) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.EmitStats(ctx, cs); err != nil {
			r.logger.Warn("sink: emit stats failed", "cycle", cs.Cycle, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
