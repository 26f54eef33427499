// CLAUDE:SUMMARY Postgres sink for fleet-wide load feeds, deduplicated with ON CONFLICT DO NOTHING.
package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hazyhaar/loadwatch/board/load"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS loadwatch_events (
    load_id        TEXT NOT NULL,
    cycle          BIGINT NOT NULL,
    origin         TEXT NOT NULL DEFAULT '',
    destination    TEXT NOT NULL DEFAULT '',
    equipment      TEXT NOT NULL DEFAULT '',
    rate_usd       DOUBLE PRECISION NOT NULL DEFAULT 0,
    distance_miles DOUBLE PRECISION NOT NULL DEFAULT 0,
    deadhead_miles DOUBLE PRECISION NOT NULL DEFAULT 0,
    rate_per_mile  DOUBLE PRECISION NOT NULL DEFAULT 0,
    score          DOUBLE PRECISION NOT NULL DEFAULT 0,
    points         INTEGER NOT NULL DEFAULT 0,
    priority       TEXT NOT NULL DEFAULT '',
    detail_md      TEXT NOT NULL DEFAULT '',
    emitted_at     BIGINT NOT NULL,
    PRIMARY KEY (load_id, emitted_at)
);

CREATE TABLE IF NOT EXISTS loadwatch_cycles (
    id          BIGSERIAL PRIMARY KEY,
    cycle       BIGINT NOT NULL,
    scanned     INTEGER NOT NULL DEFAULT 0,
    new_loads   INTEGER NOT NULL DEFAULT 0,
    profitable  INTEGER NOT NULL DEFAULT 0,
    emitted     INTEGER NOT NULL DEFAULT 0,
    duration_ms BIGINT NOT NULL DEFAULT 0,
    outcome     TEXT NOT NULL DEFAULT '',
    interval_ms BIGINT NOT NULL DEFAULT 0,
    at          BIGINT NOT NULL
);
`

// Postgres delivers events to a shared Postgres database. Several
// watchers can feed the same table: re-emissions of the same load at
// the same instant collapse via ON CONFLICT DO NOTHING.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects, applies the schema, and returns the sink.
// maxConns <= 0 keeps the pool default.
func NewPostgres(ctx context.Context, dsn string, maxConns int32) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres sink: parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres sink: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres sink: apply schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Emit(ctx context.Context, ev *load.Event) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO loadwatch_events
		(load_id, cycle, origin, destination, equipment, rate_usd,
		 distance_miles, deadhead_miles, rate_per_mile, score, points,
		 priority, detail_md, emitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (load_id, emitted_at) DO NOTHING`,
		ev.Load.ID, ev.Cycle, ev.Load.OriginText, ev.Load.DestinationText,
		ev.Load.EquipmentType, ev.Load.RateUSD, ev.Load.DistanceMiles,
		ev.Load.DeadheadMiles, ev.Verdict.RatePerMile, ev.Verdict.Score,
		ev.Points, string(ev.Verdict.Priority), ev.DetailMarkdown, ev.EmittedAt,
	)
	return err
}

func (p *Postgres) EmitStats(ctx context.Context, cs *load.CycleStats) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO loadwatch_cycles
		(cycle, scanned, new_loads, profitable, emitted, duration_ms,
		 outcome, interval_ms, at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		cs.Cycle, cs.Scanned, cs.New, cs.Profitable, cs.Emitted,
		cs.DurationMs, string(cs.Outcome), cs.IntervalMs, cs.At,
	)
	return err
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
