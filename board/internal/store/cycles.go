package store

import (
	"context"
	"fmt"

	"github.com/hazyhaar/loadwatch/board/load"
	"github.com/hazyhaar/loadwatch/dbopen"
)

// CycleRecord is one journaled cycle.
type CycleRecord struct {
	Session    string `json:"session"`
	Cycle      int64  `json:"cycle"`
	Scanned    int64  `json:"scanned"`
	NewLoads   int64  `json:"new_loads"`
	Profitable int64  `json:"profitable"`
	Emitted    int64  `json:"emitted"`
	DurationMs int64  `json:"duration_ms"`
	Outcome    string `json:"outcome"`
	IntervalMs int64  `json:"interval_ms"`
	At         int64  `json:"at"`
}

// InsertCycle journals one completed cycle.
func (s *Store) InsertCycle(ctx context.Context, session string, cs *load.CycleStats) error {
	if cs == nil {
		return fmt.Errorf("insert cycle: nil stats")
	}
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO cycles (session, cycle, scanned, new_loads, profitable,
		emitted, duration_ms, outcome, interval_ms, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session, cs.Cycle, cs.Scanned, cs.New, cs.Profitable,
		cs.Emitted, cs.DurationMs, string(cs.Outcome), cs.IntervalMs, cs.At,
	)
	return err
}

// CycleHistory returns the newest cycles across sessions.
func (s *Store) CycleHistory(ctx context.Context, limit int) ([]*CycleRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT session, cycle, scanned, new_loads, profitable, emitted,
		duration_ms, outcome, interval_ms, at
		FROM cycles ORDER BY at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*CycleRecord
	for rows.Next() {
		var c CycleRecord
		if err := rows.Scan(&c.Session, &c.Cycle, &c.Scanned, &c.NewLoads, &c.Profitable,
			&c.Emitted, &c.DurationMs, &c.Outcome, &c.IntervalMs, &c.At); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		result = append(result, &c)
	}
	return result, rows.Err()
}
