// Package telemetry appends structured JSONL events for offline inspection.
// Emission is best effort: failures are reported on stderr and never reach
// the caller.
package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDir is the events directory used when Config.Dir is empty.
const DefaultDir = ".agent"

type Config struct {
	// Enabled turns emission on. A disabled emitter writes nothing.
	Enabled bool
	// Dir receives events.jsonl. Defaults to DefaultDir.
	Dir string
	// LocalFeatures additionally records text features of human input.
	LocalFeatures bool
}

// Emitter writes one JSON object per line to <Dir>/events.jsonl. A nil
// *Emitter is valid and disabled. Emit is safe for concurrent use.
type Emitter struct {
	cfg    Config
	errOut io.Writer
	mu     sync.Mutex
}

func New(cfg Config) *Emitter {
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir
	}
	return &Emitter{cfg: cfg, errOut: os.Stderr}
}

// Enabled reports whether events are written.
func (e *Emitter) Enabled() bool {
	return e != nil && e.cfg.Enabled
}

// Path returns the events file location.
func (e *Emitter) Path() string {
	if e == nil {
		return ""
	}
	return filepath.Join(e.cfg.Dir, "events.jsonl")
}

// Emit writes a single event augmented with RFC3339Nano time and the event name.
// The caller's map is not modified.
func (e *Emitter) Emit(name string, fields map[string]any) {
	if !e.Enabled() {
		return
	}

	m := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		m[k] = v
	}
	m["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	m["event"] = name

	b, err := json.Marshal(m)
	if err != nil {
		fmt.Fprintf(e.errOut, "telemetry: marshal: %v\n", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := os.MkdirAll(e.cfg.Dir, 0o755); err != nil {
		fmt.Fprintf(e.errOut, "telemetry: mkdir %s: %v\n", e.cfg.Dir, err)
		return
	}
	path := e.Path()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(e.errOut, "telemetry: open %s: %v\n", path, err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(b, '\n')); err != nil {
		fmt.Fprintf(e.errOut, "telemetry: write %s: %v\n", path, err)
	}
}

// NewTurnID returns a fresh identifier for correlating a turn's events.
func NewTurnID() string {
	return "turn-" + uuid.NewString()
}
