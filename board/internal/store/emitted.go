package store

import (
	"context"
	"fmt"

	"github.com/hazyhaar/loadwatch/board/load"
	"github.com/hazyhaar/loadwatch/dbopen"
)

// EmittedLoad is one journal row: a load that cleared scoring and
// filters and went out to the sinks.
type EmittedLoad struct {
	Session        string  `json:"session"`
	LoadID         string  `json:"load_id"`
	Cycle          int64   `json:"cycle"`
	Origin         string  `json:"origin"`
	Destination    string  `json:"destination"`
	Equipment      string  `json:"equipment"`
	RateUSD        float64 `json:"rate_usd"`
	DistanceMiles  float64 `json:"distance_miles"`
	DeadheadMiles  float64 `json:"deadhead_miles"`
	RatePerMile    float64 `json:"rate_per_mile"`
	Score          float64 `json:"score"`
	Points         int64   `json:"points"`
	Priority       string  `json:"priority"`
	DetailMarkdown string  `json:"detail_markdown,omitempty"`
	EmittedAt      int64   `json:"emitted_at"`
}

// InsertEmitted journals one emitted event. Writes retry on SQLITE_BUSY
// since the API may hold a read at the same moment.
func (s *Store) InsertEmitted(ctx context.Context, session string, ev *load.Event) error {
	if ev == nil {
		return fmt.Errorf("insert emitted: nil event")
	}
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO emitted_loads (session, load_id, cycle, origin, destination,
		equipment, rate_usd, distance_miles, deadhead_miles, rate_per_mile,
		score, points, priority, detail_md, emitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session, ev.Load.ID, ev.Cycle, ev.Load.OriginText, ev.Load.DestinationText,
		ev.Load.EquipmentType, ev.Load.RateUSD, ev.Load.DistanceMiles,
		ev.Load.DeadheadMiles, ev.Verdict.RatePerMile,
		ev.Verdict.Score, ev.Points, string(ev.Verdict.Priority),
		ev.DetailMarkdown, ev.EmittedAt,
	)
	return err
}

// RecentEmitted returns the newest emitted loads across sessions.
func (s *Store) RecentEmitted(ctx context.Context, limit int) ([]*EmittedLoad, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT session, load_id, cycle, origin, destination, equipment,
		rate_usd, distance_miles, deadhead_miles, rate_per_mile,
		score, points, priority, detail_md, emitted_at
		FROM emitted_loads ORDER BY emitted_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*EmittedLoad
	for rows.Next() {
		var e EmittedLoad
		if err := rows.Scan(&e.Session, &e.LoadID, &e.Cycle, &e.Origin, &e.Destination,
			&e.Equipment, &e.RateUSD, &e.DistanceMiles, &e.DeadheadMiles, &e.RatePerMile,
			&e.Score, &e.Points, &e.Priority, &e.DetailMarkdown, &e.EmittedAt); err != nil {
			return nil, fmt.Errorf("scan emitted load: %w", err)
		}
		result = append(result, &e)
	}
	return result, rows.Err()
}
