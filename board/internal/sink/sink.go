// Package sink defines output backends for discovered loads.
package sink

import (
	"context"

	"github.com/hazyhaar/loadwatch/board/load"
)

// Sink is the output interface. Implementations deliver load events and
// cycle stats to different backends (stdout, webhook, Postgres,
// in-process callback).
type Sink interface {
	Emit(ctx context.Context, ev *load.Event) error
	EmitStats(ctx context.Context, cs *load.CycleStats) error
	Close() error
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
