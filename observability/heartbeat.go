// Package observability writes daemon liveness heartbeats into the
// journal database. A heartbeat row carries Go runtime stats, so an
// operator can tell a quiet board from a dead or wedged daemon and see
// memory or goroutine growth across a long watch.
//
// Call Init on the journal *sql.DB first, then start a HeartbeatWriter.
// Writes are best-effort: a failing insert is logged and the loop keeps
// beating.
package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// RuntimeMetrics captures Go process health at a point in time.
type RuntimeMetrics struct {
	GoroutinesCount int
	MemoryAllocMB   float64
	MemorySysMB     float64
	GCCount         uint32
}

// CollectRuntimeMetrics reads current Go runtime stats (~10µs overhead).
func CollectRuntimeMetrics() RuntimeMetrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return RuntimeMetrics{
		GoroutinesCount: runtime.NumGoroutine(),
		MemoryAllocMB:   float64(mem.Alloc) / 1024 / 1024,
		MemorySysMB:     float64(mem.Sys) / 1024 / 1024,
		GCCount:         mem.NumGC,
	}
}

// HeartbeatWriter writes periodic liveness rows to daemon_heartbeats.
type HeartbeatWriter struct {
	db       *sql.DB
	hostname string
	pid      int
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewHeartbeatWriter creates a writer. interval <= 0 defaults to 15s.
func NewHeartbeatWriter(db *sql.DB, interval time.Duration) *HeartbeatWriter {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &HeartbeatWriter{
		db:       db,
		hostname: hostname,
		pid:      os.Getpid(),
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the heartbeat goroutine. It writes one beat
// immediately, then repeats at the configured interval until Stop or
// context cancellation.
func (hw *HeartbeatWriter) Start(ctx context.Context) {
	go hw.loop(ctx)
}

// WriteHeartbeat writes a single row with current runtime metrics.
func (hw *HeartbeatWriter) WriteHeartbeat() error {
	m := CollectRuntimeMetrics()
	_, err := hw.db.Exec(`
		INSERT INTO daemon_heartbeats (
			hostname, pid, timestamp,
			goroutines_count, memory_alloc_mb, memory_sys_mb, gc_count
		) VALUES (?,?,?,?,?,?,?)`,
		hw.hostname, hw.pid, time.Now().Unix(),
		m.GoroutinesCount, m.MemoryAllocMB, m.MemorySysMB, m.GCCount)
	if err != nil {
		return fmt.Errorf("insert heartbeat: %w", err)
	}
	return nil
}

// Stop signals the heartbeat goroutine to exit and waits for it.
func (hw *HeartbeatWriter) Stop() {
	close(hw.stop)
	<-hw.done
}

func (hw *HeartbeatWriter) loop(ctx context.Context) {
	defer close(hw.done)
	ticker := time.NewTicker(hw.interval)
	defer ticker.Stop()

	// Immediate first heartbeat.
	if err := hw.WriteHeartbeat(); err != nil {
		slog.Error("heartbeat write failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-hw.stop:
			return
		case <-ticker.C:
			if err := hw.WriteHeartbeat(); err != nil {
				slog.Error("heartbeat write failed", "error", err)
			}
		}
	}
}

// HeartbeatStatus is the latest heartbeat, enriched with a staleness
// verdict so callers don't have to compute it themselves.
type HeartbeatStatus struct {
	Hostname        string         `json:"hostname"`
	PID             int            `json:"pid"`
	Timestamp       time.Time      `json:"timestamp"`
	GoroutinesCount int            `json:"goroutines_count"`
	MemoryAllocMB   float64        `json:"memory_alloc_mb"`
	MemorySysMB     float64        `json:"memory_sys_mb"`
	GCCount         int            `json:"gc_count"`
	Alive           bool           `json:"alive"`
	StaleSince      *time.Duration `json:"stale_since,omitempty"`
}

// LatestHeartbeat returns the most recent heartbeat row.
// stalenessThreshold controls the alive/stale boundary (typically 3x
// the heartbeat interval). Returns nil, nil when no heartbeat has been
// recorded yet.
func LatestHeartbeat(ctx context.Context, db *sql.DB, stalenessThreshold time.Duration) (*HeartbeatStatus, error) {
	row := db.QueryRowContext(ctx, `
		SELECT hostname, pid, timestamp,
		       goroutines_count, memory_alloc_mb, memory_sys_mb, gc_count
		FROM daemon_heartbeats
		ORDER BY timestamp DESC LIMIT 1`)

	var hs HeartbeatStatus
	var ts int64
	err := row.Scan(&hs.Hostname, &hs.PID, &ts,
		&hs.GoroutinesCount, &hs.MemoryAllocMB, &hs.MemorySysMB, &hs.GCCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest heartbeat: %w", err)
	}

	hs.Timestamp = time.Unix(ts, 0)
	age := time.Since(hs.Timestamp)
	if age <= stalenessThreshold {
		hs.Alive = true
	} else {
		stale := age - stalenessThreshold
		hs.StaleSince = &stale
	}
	return &hs, nil
}

// CleanupHeartbeats deletes rows older than the retention window and
// returns the count removed.
func CleanupHeartbeats(ctx context.Context, db *sql.DB, retention time.Duration) (int64, error) {
	threshold := time.Now().Add(-retention).Unix()
	result, err := db.ExecContext(ctx, "DELETE FROM daemon_heartbeats WHERE timestamp < ?", threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup heartbeats: %w", err)
	}
	return result.RowsAffected()
}
