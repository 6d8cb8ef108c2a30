package s4_committee

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Trace appends one JSON object per event to a JSONL file.
// A Trace with no path discards everything.
type Trace struct {
	mu   sync.Mutex
	path string
}

// NewTrace creates a trace writing to path ("" disables tracing)
func NewTrace(path string) *Trace {
	return &Trace{path: path}
}

// Enabled reports whether events are written
func (t *Trace) Enabled() bool {
	return t != nil && t.path != ""
}

// Log writes event with payload fields. The file is opened per event so
// concurrent runs never hold it across a run.
func (t *Trace) Log(event string, payload map[string]interface{}) error {
	if !t.Enabled() {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("trace dir: %w", err)
	}
	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	w := zerolog.New(f)
	w.Log().
		Str("ts", time.Now().UTC().Format(time.RFC3339Nano)).
		Str("event", event).
		Fields(payload).
		Send()
	return nil
}
