// CLAUDE:SUMMARY Writes load events as JSON lines to an io.Writer (defaults to stdout).
package sink

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/loadwatch/board/load"
)

// Stdout writes JSON lines to an io.Writer (default os.Stdout).
type Stdout struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{w: w, enc: json.NewEncoder(w)}
}

func (s *Stdout) Emit(_ context.Context, ev *load.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(envelope{Type: "load", Data: ev})
}

func (s *Stdout) EmitStats(_ context.Context, cs *load.CycleStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(envelope{Type: "cycle", Data: cs})
}

func (s *Stdout) Close() error { return nil }
