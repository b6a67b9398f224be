// Package executor runs the tool uses of one model turn concurrently and
// collects their results in invocation order.
package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/petasbytes/turnloop/internal/telemetry"
	"github.com/petasbytes/turnloop/memory"
	"github.com/petasbytes/turnloop/tools"
)

// SentinelNotFound is the result content for a name with no registered tool.
const SentinelNotFound = "<tool-not-found>"

// NoOutput stands in for a successful result with nothing to say. The
// Messages API rejects empty text content.
const NoOutput = "(no output)"

type Executor struct {
	Telemetry *telemetry.Emitter
	Log       *slog.Logger
}

// Execute runs uses with a zero Executor.
func Execute(ctx context.Context, uses []memory.Block, reg *tools.Registry) []memory.Block {
	return (&Executor{}).Execute(ctx, uses, reg)
}

// Execute starts every handler at once and returns when all have resolved.
// Result i answers uses[i]. Failures become error results; nothing here
// aborts the turn.
func (e *Executor) Execute(ctx context.Context, uses []memory.Block, reg *tools.Registry) []memory.Block {
	results := make([]memory.Block, len(uses))
	var wg sync.WaitGroup
	for i, use := range uses {
		wg.Add(1)
		go func(idx int, use memory.Block) {
			defer wg.Done()
			results[idx] = e.run(ctx, use, reg)
		}(i, use)
	}
	wg.Wait()
	return results
}

func (e *Executor) run(ctx context.Context, use memory.Block, reg *tools.Registry) (result memory.Block) {
	start := time.Now()
	def, ok := reg.Lookup(use.Name)
	if !ok {
		e.emit(ctx, use, start, 0, "tool not found")
		return memory.NewToolResult(use.ID, SentinelNotFound, true)
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger().Error("tool panicked", "tool", use.Name, "id", use.ID, "panic", r)
			e.emit(ctx, use, start, 0, "tool panic")
			result = memory.NewToolResult(use.ID, fmt.Sprintf("tool %s panicked: %v", use.Name, r), true)
		}
	}()

	v, err := def.Function(ctx, use.Input)
	if err != nil {
		// Telemetry gets a generic string; the detailed message goes to the model.
		e.emit(ctx, use, start, 0, "tool error")
		msg := err.Error()
		if msg == "" {
			msg = fmt.Sprintf("tool %s failed", use.Name)
		}
		return memory.NewToolResult(use.ID, msg, true)
	}
	out, err := tools.Stringify(v)
	if err != nil {
		e.emit(ctx, use, start, 0, "tool result not serializable")
		return memory.NewToolResult(use.ID, err.Error(), true)
	}
	e.emit(ctx, use, start, len(out), "")
	if strings.TrimSpace(out) == "" {
		out = NoOutput
	}
	return memory.NewToolResult(use.ID, out, false)
}

func (e *Executor) logger() *slog.Logger {
	if e.Log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e.Log
}

func (e *Executor) emit(ctx context.Context, use memory.Block, start time.Time, outSize int, errStr string) {
	if !e.Telemetry.Enabled() {
		return
	}
	turnID, _ := telemetry.TurnIDFromContext(ctx)
	fields := map[string]any{
		"tool_name":   use.Name,
		"tool_use_id": use.ID,
		"duration_ms": time.Since(start).Milliseconds(),
		"input_size":  len(use.Input),
		"output_size": outSize,
		"turn_id":     turnID,
		"error":       nil,
	}
	if errStr != "" {
		fields["error"] = errStr
	}
	e.Telemetry.Emit("tool_exec", fields)
}
