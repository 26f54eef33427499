// Package store persists the discovery journal to SQLite.
//
// A Store is bound to one already-opened database; callers own the
// connection lifecycle. Writes happen on the cycle path, so every
// method takes a context and keeps its statement to a single round
// trip.
package store

import (
	"context"
	"database/sql"

	"github.com/hazyhaar/loadwatch/dbopen"
)

// Store wraps the journal database.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Totals are lifetime aggregates across all sessions.
type Totals struct {
	Sessions      int64 `json:"sessions"`
	Cycles        int64 `json:"cycles"`
	EmittedLoads  int64 `json:"emitted_loads"`
	LastEmittedAt int64 `json:"last_emitted_at"`
}

// Totals returns aggregate counters for the journal.
func (s *Store) Totals(ctx context.Context) (*Totals, error) {
	var t Totals
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT session), COUNT(*) FROM cycles`).Scan(&t.Sessions, &t.Cycles)
	if err != nil {
		return nil, err
	}
	err = s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(emitted_at), 0) FROM emitted_loads`).Scan(&t.EmittedLoads, &t.LastEmittedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// PruneBefore deletes journal rows older than cutoff (epoch ms) and
// returns how many rows were removed. Both tables prune in one
// transaction so a retention pass never half-applies.
func (s *Store) PruneBefore(ctx context.Context, cutoff int64) (int64, error) {
	var removed int64
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		removed = 0
		res, err := tx.ExecContext(ctx, `DELETE FROM emitted_loads WHERE emitted_at < ?`, cutoff)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil {
			removed += n
		}
		res, err = tx.ExecContext(ctx, `DELETE FROM cycles WHERE at < ?`, cutoff)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil {
			removed += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
