// CLAUDE:SUMMARY Re-exports load and journal types (Load, Verdict, Event, EmittedLoad) as the board public API.
// Package board watches a freight load board page and emits profitable
// loads as they appear.
//
// It polls the page through a pagesource.Provider, extracts candidate
// rows with a cascade of matchers, normalizes them into typed loads,
// scores each against the profitability gate, deduplicates within the
// session, and delivers new profitable loads to sinks (stdout, webhook,
// Postgres, callback). An adaptive scheduler tightens the polling
// interval when loads are moving and relaxes it on quiet pages.
package board

import (
	"github.com/hazyhaar/loadwatch/board/internal/extract"
	"github.com/hazyhaar/loadwatch/board/internal/schedule"
	"github.com/hazyhaar/loadwatch/board/internal/score"
	"github.com/hazyhaar/loadwatch/board/internal/store"
	"github.com/hazyhaar/loadwatch/board/load"
)

// Re-export leaf types for public API.
type (
	Load       = load.Load
	Verdict    = load.Verdict
	Event      = load.Event
	Outcome    = load.Outcome
	Priority   = load.Priority
	CycleStats = load.CycleStats

	Rule          = extract.Rule
	FilterConfig  = score.Config
	ScheduleStats = schedule.Stats

	EmittedLoad = store.EmittedLoad
	CycleRecord = store.CycleRecord
	Totals      = store.Totals
)
