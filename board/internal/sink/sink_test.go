package sink

// WHAT: fan-out routing, JSON line framing, and webhook retry behavior.
// WHY: sinks are the delivery edge — a failing backend must never cost
// the operator an emitted load on the other backends.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/loadwatch/board/load"
)

func testEvent(id string) *load.Event {
	return &load.Event{
		Load: load.Load{
			ID:              id,
			OriginText:      "Atlanta, GA",
			DestinationText: "Charlotte, NC",
			RateUSD:         720,
			DistanceMiles:   240,
		},
		Verdict:   load.Verdict{RatePerMile: 2.82, Profitable: true, Priority: load.PriorityMedium},
		Points:    75,
		Cycle:     4,
		EmittedAt: 1708700000000,
	}
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type failing struct{ err error }

func (f *failing) Emit(context.Context, *load.Event) error           { return f.err }
func (f *failing) EmitStats(context.Context, *load.CycleStats) error { return f.err }
func (f *failing) Close() error                                      { return f.err }

func TestRouterDeliversPastFailingSink(t *testing.T) {
	var delivered atomic.Int64
	ok := NewCallback(func(ctx context.Context, ev *load.Event) error {
		delivered.Add(1)
		return nil
	}, nil)
	boom := &failing{err: errors.New("backend down")}

	r := NewRouter(quiet(), boom, ok)
	err := r.Emit(context.Background(), testEvent("LB-1"))
	if err == nil {
		t.Fatal("router should surface the first sink error")
	}
	if delivered.Load() != 1 {
		t.Fatalf("healthy sink skipped: delivered = %d", delivered.Load())
	}
}

func TestRouterStatsFanOut(t *testing.T) {
	var got atomic.Int64
	a := NewCallback(nil, func(ctx context.Context, cs *load.CycleStats) error {
		got.Add(1)
		return nil
	})
	b := NewCallback(nil, func(ctx context.Context, cs *load.CycleStats) error {
		got.Add(1)
		return nil
	})
	r := NewRouter(quiet(), a, b)
	if err := r.EmitStats(context.Background(), &load.CycleStats{Cycle: 1}); err != nil {
		t.Fatalf("emit stats: %v", err)
	}
	if got.Load() != 2 {
		t.Fatalf("fan-out count = %d, want 2", got.Load())
	}
}

func TestStdoutEnvelopes(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)
	ctx := context.Background()

	if err := s.Emit(ctx, testEvent("LB-7")); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if err := s.EmitStats(ctx, &load.CycleStats{Cycle: 4, Outcome: load.OutcomeProfitable}); err != nil {
		t.Fatalf("emit stats: %v", err)
	}

	dec := json.NewDecoder(&buf)
	var first struct {
		Type string     `json:"type"`
		Data load.Event `json:"data"`
	}
	if err := dec.Decode(&first); err != nil {
		t.Fatalf("decode first line: %v", err)
	}
	if first.Type != "load" || first.Data.Load.ID != "LB-7" {
		t.Fatalf("first line: type=%q id=%q", first.Type, first.Data.Load.ID)
	}
	var second struct {
		Type string          `json:"type"`
		Data load.CycleStats `json:"data"`
	}
	if err := dec.Decode(&second); err != nil {
		t.Fatalf("decode second line: %v", err)
	}
	if second.Type != "cycle" || second.Data.Outcome != load.OutcomeProfitable {
		t.Fatalf("second line: type=%q outcome=%q", second.Type, second.Data.Outcome)
	}
}

func TestCallbackNilHandlers(t *testing.T) {
	c := NewCallback(nil, nil)
	if err := c.Emit(context.Background(), testEvent("LB-1")); err != nil {
		t.Fatalf("nil event handler: %v", err)
	}
	if err := c.EmitStats(context.Background(), &load.CycleStats{}); err != nil {
		t.Fatalf("nil stats handler: %v", err)
	}
}

func TestWebhookRetriesUntilSuccess(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "not yet", http.StatusBadGateway)
			return
		}
		var env struct {
			Type string     `json:"type"`
			Data load.Event `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			t.Errorf("decode: %v", err)
		}
		if env.Type != "load" || env.Data.Load.ID != "LB-3" {
			t.Errorf("envelope: type=%q id=%q", env.Type, env.Data.Load.ID)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL,
		WithWebhookRetries(3),
		WithWebhookBackoff(5*time.Millisecond),
		WithWebhookLogger(quiet()))
	if err := w.Emit(context.Background(), testEvent("LB-3")); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("attempts = %d, want 3", hits.Load())
	}
}

func TestWebhookExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL,
		WithWebhookRetries(2),
		WithWebhookBackoff(time.Millisecond),
		WithWebhookLogger(quiet()))
	err := w.Emit(context.Background(), testEvent("LB-4"))
	if err == nil {
		t.Fatal("want error after exhausted retries")
	}
}

func TestWebhookStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusInternalServerError)
	}))
	defer srv.Close()

	// Long backoff: the cancel must cut the wait short.
	w := NewWebhook(srv.URL,
		WithWebhookRetries(5),
		WithWebhookBackoff(time.Minute),
		WithWebhookLogger(quiet()))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := w.Emit(ctx, testEvent("LB-5"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("cancel did not interrupt the backoff wait")
	}
}
