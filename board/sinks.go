package board

import (
	"context"
	"io"
	"log/slog"

	"github.com/hazyhaar/loadwatch/board/internal/sink"
	"github.com/hazyhaar/loadwatch/board/load"
)

// Sink is the delivery interface for emitted loads and cycle stats.
type Sink = sink.Sink

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewPostgresSink creates a Postgres sink. It connects, applies the
// event schema, and delivers with idempotent inserts.
func NewPostgresSink(ctx context.Context, dsn string, maxConns int32) (Sink, error) {
	return sink.NewPostgres(ctx, dsn, maxConns)
}

// EventFunc is called for each emitted load.
type EventFunc = sink.EventFunc

// StatsFunc is called for each completed cycle.
type StatsFunc = sink.StatsFunc

// NewCallbackSink creates an in-process callback sink for embedding
// loadwatch in a larger program without serialisation.
func NewCallbackSink(
	onEvent func(ctx context.Context, ev *load.Event) error,
	onStats func(ctx context.Context, cs *load.CycleStats) error,
) Sink {
	return sink.NewCallback(onEvent, onStats)
}
