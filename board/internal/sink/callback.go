// CLAUDE:SUMMARY In-process callback sink delivering load events via Go function calls with zero serialization.
package sink

import (
	"context"

	"github.com/hazyhaar/loadwatch/board/load"
)

// EventFunc is called for each emitted load (in-process, zero
// serialisation).
type EventFunc func(ctx context.Context, ev *load.Event) error

// StatsFunc is called for each completed cycle.
type StatsFunc func(ctx context.Context, cs *load.CycleStats) error

// Callback delivers events via Go function calls. When the watcher and
// its consumer live in the same binary, events arrive as in-memory
// calls with zero serialisation overhead.
type Callback struct {
	onEvent EventFunc
	onStats StatsFunc
}

// NewCallback creates a Callback sink. Either handler may be nil.
func NewCallback(onEvent EventFunc, onStats StatsFunc) *Callback {
	return &Callback{onEvent: onEvent, onStats: onStats}
}

func (c *Callback) Emit(ctx context.Context, ev *load.Event) error {
	if c.onEvent != nil {
		return c.onEvent(ctx, ev)
	}
	return nil
}

func (c *Callback) EmitStats(ctx context.Context, cs *load.CycleStats) error {
	if c.onStats != nil {
		return c.onStats(ctx, cs)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
