package store

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/loadwatch/board/load"
	"github.com/hazyhaar/loadwatch/dbopen"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if err := ApplySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

func sampleEvent(id string, cycle uint64, at int64) *load.Event {
	return &load.Event{
		Load: load.Load{
			ID:              id,
			OriginText:      "Atlanta, GA",
			DestinationText: "Charlotte, NC",
			EquipmentType:   "dry van",
			RateUSD:         720,
			DistanceMiles:   240,
			DeadheadMiles:   15,
		},
		Verdict: load.Verdict{
			RatePerMile:   2.82,
			DeadheadRatio: 0.0625,
			Score:         2.77,
			Profitable:    true,
			Priority:      load.PriorityMedium,
		},
		Points:         75,
		DetailMarkdown: "| lane | rate |",
		Cycle:          cycle,
		EmittedAt:      at,
	}
}

func TestApplySchema(t *testing.T) {
	// WHAT: Verify schema creates all tables without error.
	// WHY: Schema is the foundation — if it fails, nothing works.
	db := openTestDB(t)
	for _, table := range []string{"emitted_loads", "cycles"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestInsertAndRecentEmitted(t *testing.T) {
	// WHAT: Journal two emitted events and read them back newest first.
	// WHY: The recent-loads API and MCP tool both read this path.
	db := openTestDB(t)
	s := NewStore(db)
	ctx := context.Background()

	if err := s.InsertEmitted(ctx, "sess-1", sampleEvent("LB-1", 1, 1000)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.InsertEmitted(ctx, "sess-1", sampleEvent("LB-2", 2, 2000)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.RecentEmitted(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("count: got %d, want 2", len(got))
	}
	if got[0].LoadID != "LB-2" {
		t.Errorf("newest first: got %s, want LB-2", got[0].LoadID)
	}
	first := got[1]
	if first.Origin != "Atlanta, GA" || first.Destination != "Charlotte, NC" {
		t.Errorf("lane: got %q -> %q", first.Origin, first.Destination)
	}
	if first.RateUSD != 720 || first.Points != 75 {
		t.Errorf("rate/points: got %v/%v", first.RateUSD, first.Points)
	}
	if first.Priority != string(load.PriorityMedium) {
		t.Errorf("priority: got %q", first.Priority)
	}
}

func TestInsertEmittedNil(t *testing.T) {
	// WHAT: A nil event is rejected, not a panic.
	// WHY: Journal writes happen on the hot cycle path.
	db := openTestDB(t)
	s := NewStore(db)
	if err := s.InsertEmitted(context.Background(), "sess-1", nil); err == nil {
		t.Fatal("want error for nil event")
	}
}

func TestSameLoadAcrossSessions(t *testing.T) {
	// WHAT: The same load ID journals cleanly under different sessions.
	// WHY: The dedup cache clears between sessions; the journal must not
	// reject the re-discovery.
	db := openTestDB(t)
	s := NewStore(db)
	ctx := context.Background()

	if err := s.InsertEmitted(ctx, "sess-1", sampleEvent("LB-9", 1, 1000)); err != nil {
		t.Fatalf("first session: %v", err)
	}
	if err := s.InsertEmitted(ctx, "sess-2", sampleEvent("LB-9", 1, 2000)); err != nil {
		t.Fatalf("second session: %v", err)
	}

	got, _ := s.RecentEmitted(ctx, 10)
	if len(got) != 2 {
		t.Fatalf("count: got %d, want 2", len(got))
	}
}

func TestInsertAndListCycles(t *testing.T) {
	// WHAT: Journal cycles and read history newest first.
	// WHY: Interval tuning starts from this history.
	db := openTestDB(t)
	s := NewStore(db)
	ctx := context.Background()

	for i := uint64(1); i <= 3; i++ {
		cs := &load.CycleStats{
			Cycle:      i,
			Scanned:    10,
			New:        2,
			Emitted:    1,
			DurationMs: 120,
			Outcome:    load.OutcomeProfitable,
			IntervalMs: 3000,
			At:         int64(1000 * i),
		}
		if err := s.InsertCycle(ctx, "sess-1", cs); err != nil {
			t.Fatalf("insert cycle %d: %v", i, err)
		}
	}

	hist, err := s.CycleHistory(ctx, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("limit not applied: got %d rows", len(hist))
	}
	if hist[0].Cycle != 3 {
		t.Errorf("newest first: got cycle %d, want 3", hist[0].Cycle)
	}
	if hist[0].Outcome != string(load.OutcomeProfitable) {
		t.Errorf("outcome: got %q", hist[0].Outcome)
	}
}

func TestTotals(t *testing.T) {
	// WHAT: Totals aggregates sessions, cycles and emissions.
	// WHY: The stats API reports lifetime numbers from here.
	db := openTestDB(t)
	s := NewStore(db)
	ctx := context.Background()

	s.InsertCycle(ctx, "sess-1", &load.CycleStats{Cycle: 1, At: 1000})
	s.InsertCycle(ctx, "sess-1", &load.CycleStats{Cycle: 2, At: 2000})
	s.InsertCycle(ctx, "sess-2", &load.CycleStats{Cycle: 1, At: 3000})
	s.InsertEmitted(ctx, "sess-2", sampleEvent("LB-1", 1, 3500))

	got, err := s.Totals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if got.Sessions != 2 {
		t.Errorf("sessions: got %d, want 2", got.Sessions)
	}
	if got.Cycles != 3 {
		t.Errorf("cycles: got %d, want 3", got.Cycles)
	}
	if got.EmittedLoads != 1 {
		t.Errorf("emitted: got %d, want 1", got.EmittedLoads)
	}
	if got.LastEmittedAt != 3500 {
		t.Errorf("last emitted at: got %d, want 3500", got.LastEmittedAt)
	}
}

func TestPruneBefore(t *testing.T) {
	// WHAT: PruneBefore removes old rows from both tables and reports the
	// count.
	// WHY: The journal is unbounded otherwise; retention runs on session
	// start.
	db := openTestDB(t)
	s := NewStore(db)
	ctx := context.Background()

	s.InsertCycle(ctx, "sess-1", &load.CycleStats{Cycle: 1, At: 1000})
	s.InsertCycle(ctx, "sess-1", &load.CycleStats{Cycle: 2, At: 5000})
	s.InsertEmitted(ctx, "sess-1", sampleEvent("LB-old", 1, 1500))
	s.InsertEmitted(ctx, "sess-1", sampleEvent("LB-new", 2, 5500))

	removed, err := s.PruneBefore(ctx, 3000)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed: got %d, want 2", removed)
	}

	tot, _ := s.Totals(ctx)
	if tot.Cycles != 1 || tot.EmittedLoads != 1 {
		t.Errorf("after prune: %d cycles, %d emitted; want 1 and 1", tot.Cycles, tot.EmittedLoads)
	}
	recent, _ := s.RecentEmitted(ctx, 10)
	if len(recent) != 1 || recent[0].LoadID != "LB-new" {
		t.Errorf("surviving row: %+v", recent)
	}
}
