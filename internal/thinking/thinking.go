// Package thinking provides the think tool: a single tool-less completion
// that reasons over a problem with the workspace's top-level guide and
// source files as context.
package thinking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/petasbytes/turnloop/internal/completion"
	"github.com/petasbytes/turnloop/internal/fsops"
	"github.com/petasbytes/turnloop/internal/provider"
	"github.com/petasbytes/turnloop/internal/runner"
	"github.com/petasbytes/turnloop/internal/telemetry"
	"github.com/petasbytes/turnloop/memory"
	"github.com/petasbytes/turnloop/tools"
)

const Name = "think"

const (
	defaultMaxTokens = 8000
	// maxContextBytes caps the file context; files past the cap are left out.
	maxContextBytes = 256 << 10
	// prefill opens the reasoning section. Assistant prefill may not end in
	// whitespace.
	prefill  = "<think>"
	closeTag = "</think>"
	done     = "Thinking process completed"
)

// ContextPatterns select the top-level files sent as context, matched
// against the base name with path.Match.
var ContextPatterns = []string{"*CLAUDE.md", "*.go"}

const description = `A thinking tool that helps to brainstorm, write creatively, code, program, plan and debug.
Really good for hard problems that cannot be solved in a single pass.

Usage:
Provide a clear problem statement. The workspace's top-level CLAUDE.md and Go files are attached as context.`

type Input struct {
	Prompt string `json:"prompt" jsonschema_description:"The problem or task to think about"`
}

type Result struct {
	Thinking string `json:"thinking"`
	Summary  string `json:"summary"`
}

type Deps struct {
	Completer runner.Completer
	// Sandbox supplies the file context. Nil sends the prompt alone.
	Sandbox   *fsops.Sandbox
	Telemetry *telemetry.Emitter
	Log       *slog.Logger
	// Model defaults to provider.LargeModel.
	Model     anthropic.Model
	MaxTokens int64
}

func Definition(d Deps) tools.ToolDefinition {
	if d.Model == "" {
		d.Model = provider.LargeModel
	}
	if d.MaxTokens <= 0 {
		d.MaxTokens = defaultMaxTokens
	}
	if d.Log == nil {
		d.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return tools.ToolDefinition{
		Name:        Name,
		Description: description,
		InputSchema: tools.GenerateSchema[Input](),
		Function: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var in Input
			if err := tools.Decode(raw, &in); err != nil {
				return nil, err
			}
			return think(ctx, d, in.Prompt)
		},
	}
}

func think(ctx context.Context, d Deps, prompt string) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("prompt is required")
	}
	files, fileCtx := contextFiles(d.Sandbox, d.Log)

	turnID, _ := telemetry.TurnIDFromContext(ctx)
	start := time.Now()
	resp, err := d.Completer.Complete(ctx, completion.Request{
		Model:     d.Model,
		MaxTokens: d.MaxTokens,
		Messages: []memory.Message{
			memory.NewUserMessage(memory.NewText(fmt.Sprintf("<context>%s</context>\n\n%s", fileCtx, prompt))),
			memory.NewAssistantMessage(memory.NewText(prefill)),
		},
	})
	fields := map[string]any{
		"parent_turn_id": turnID,
		"context_files":  files,
		"duration_ms":    time.Since(start).Milliseconds(),
		"error":          nil,
	}
	if err != nil {
		fields["error"] = "think error"
		d.Telemetry.Emit("think", fields)
		return nil, err
	}
	d.Telemetry.Emit("think", fields)

	reasoning, answer := Split(resp.Text())
	d.Log.Debug("think finished", "reasoning_bytes", len(reasoning), "answer_bytes", len(answer))
	out := answer
	if out == "" {
		out = reasoning
	}
	return &Result{Thinking: out, Summary: done}, nil
}

// Split separates a reply continuing the prefill into its reasoning and the
// answer after the closing tag. Both are trimmed; answer is empty when the
// tag is missing.
func Split(reply string) (reasoning, answer string) {
	reasoning, answer, _ = strings.Cut(reply, closeTag)
	return strings.TrimSpace(reasoning), strings.TrimSpace(answer)
}

// contextFiles renders the matching top-level files as <file> elements and
// returns how many were included. Unreadable files are inlined as an error
// note so the model knows they exist.
func contextFiles(sb *fsops.Sandbox, log *slog.Logger) (int, string) {
	if sb == nil {
		return 0, ""
	}
	names, err := sb.ListDir("")
	if err != nil {
		log.Warn("think context listing failed", "err", err)
		return 0, ""
	}
	var (
		b strings.Builder
		n int
	)
	for _, name := range names {
		if strings.HasSuffix(name, "/") || !matches(name) {
			continue
		}
		content, err := sb.ReadFile(name)
		if err != nil {
			content = fmt.Sprintf("[Error reading file: %v]", err)
		}
		elem := fmt.Sprintf("<file name='%s'>%s</file>", name, content)
		if b.Len()+len(elem)+1 > maxContextBytes {
			log.Debug("think context cap reached", "skipped", name)
			continue
		}
		if n > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(elem)
		n++
	}
	return n, b.String()
}

func matches(name string) bool {
	for _, p := range ContextPatterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}
