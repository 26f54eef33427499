package observability

import "database/sql"

// Schema is the DDL for the heartbeat table. It lives in the journal
// database next to the cycle and emission tables.
const Schema = `
CREATE TABLE IF NOT EXISTS daemon_heartbeats (
    heartbeat_id TEXT PRIMARY KEY DEFAULT ('hb_' || hex(randomblob(16))),
    hostname TEXT NOT NULL,
    pid INTEGER NOT NULL,
    timestamp INTEGER NOT NULL,
    goroutines_count INTEGER,
    memory_alloc_mb REAL,
    memory_sys_mb REAL,
    gc_count INTEGER,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_heartbeats_timestamp
    ON daemon_heartbeats(timestamp DESC);
`

// Init applies the heartbeat schema to the given database.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
