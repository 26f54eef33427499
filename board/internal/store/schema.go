// CLAUDE:SUMMARY SQLite schema for the discovery journal: emitted loads and cycle history.
package store

import "database/sql"

// Schema is the journal schema. The journal is an audit trail, not the
// dedup authority: the in-memory cache decides what is new, the journal
// records what was found and when.
const Schema = `
-- Every load that passed scoring and filters and was emitted to sinks
CREATE TABLE IF NOT EXISTS emitted_loads (
    session        TEXT NOT NULL,
    load_id        TEXT NOT NULL,
    cycle          INTEGER NOT NULL,
    origin         TEXT NOT NULL DEFAULT '',
    destination    TEXT NOT NULL DEFAULT '',
    equipment      TEXT NOT NULL DEFAULT '',
    rate_usd       REAL NOT NULL DEFAULT 0,
    distance_miles REAL NOT NULL DEFAULT 0,
    deadhead_miles REAL NOT NULL DEFAULT 0,
    rate_per_mile  REAL NOT NULL DEFAULT 0,
    score          REAL NOT NULL DEFAULT 0,
    points         INTEGER NOT NULL DEFAULT 0,
    priority       TEXT NOT NULL DEFAULT '',
    detail_md      TEXT NOT NULL DEFAULT '',
    emitted_at     INTEGER NOT NULL,
    PRIMARY KEY (session, load_id, cycle)
);
CREATE INDEX IF NOT EXISTS idx_emitted_time ON emitted_loads(emitted_at DESC);

-- One row per completed discovery cycle
CREATE TABLE IF NOT EXISTS cycles (
    session     TEXT NOT NULL,
    cycle       INTEGER NOT NULL,
    scanned     INTEGER NOT NULL DEFAULT 0,
    new_loads   INTEGER NOT NULL DEFAULT 0,
    profitable  INTEGER NOT NULL DEFAULT 0,
    emitted     INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    outcome     TEXT NOT NULL DEFAULT '',
    interval_ms INTEGER NOT NULL DEFAULT 0,
    at          INTEGER NOT NULL,
    PRIMARY KEY (session, cycle)
);
CREATE INDEX IF NOT EXISTS idx_cycles_time ON cycles(at DESC);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
