// Package subagent provides the agent tool: a nested conversation with a
// narrowed, read-only toolset that answers one search-style question.
package subagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/petasbytes/turnloop/internal/metrics"
	"github.com/petasbytes/turnloop/internal/provider"
	"github.com/petasbytes/turnloop/internal/runner"
	"github.com/petasbytes/turnloop/internal/telemetry"
	"github.com/petasbytes/turnloop/tools"
)

const Name = "agent"

// ReadOnlyTools are the tools a sub-agent may use, when present in the base
// registry.
var ReadOnlyTools = []string{"glob", "grep", "list_files", "read_file"}

const (
	defaultMaxTokens = 1024
	defaultMaxTurns  = 20
	noTextOutput     = "Agent completed the task, but no text response."
)

const description = `Launch a new agent that has access to read-only search tools.
When you are searching for a keyword or file and are not confident that you will find the right match on the first try, use this tool to perform the search for you. For example:

- If you are searching for a keyword like "config" or "logger", this tool is appropriate
- If you want to read a specific file path, use read_file or glob instead
- If you are searching for a specific class definition, use glob

Usage notes:
1. Launch multiple agents concurrently to maximize performance
2. The agent returns a single message
3. Each invocation is stateless
4. The agent's outputs should be trusted`

const systemPrompt = `You are a coding agent. Given the user's prompt, use available tools to answer concisely. Notes:
1. Be direct, one-word answers preferred. Avoid explanations.
2. Share relevant file names and code snippets.
3. Use paths relative to the working directory.`

type Input struct {
	Prompt string `json:"prompt" jsonschema_description:"The task for the agent to perform"`
}

type Result struct {
	Summary string `json:"summary"`
	Output  string `json:"output"`
}

type Deps struct {
	Completer runner.Completer
	// Tools is the registry the read-only subset is taken from.
	Tools     *tools.Registry
	Telemetry *telemetry.Emitter
	Log       *slog.Logger
	// Model defaults to provider.SmallModel.
	Model anthropic.Model
	// WorkDir is reported to the nested model as its working directory.
	WorkDir string
}

// Budget bounds recursion. Depth is the nesting level of the agent being
// defined; at MaxDepth the tool refuses. MaxTurns caps each nested run.
type Budget struct {
	Depth    int
	MaxDepth int
	MaxTurns int
}

func (b Budget) withDefaults() Budget {
	if b.MaxDepth <= 0 {
		b.MaxDepth = 1
	}
	if b.MaxTurns <= 0 {
		b.MaxTurns = defaultMaxTurns
	}
	return b
}

// ErrDepthExceeded is returned when an agent at the maximum depth is invoked.
var ErrDepthExceeded = errors.New("subagent: maximum agent depth reached")

// Definition returns the agent tool. The nested registry includes another
// agent tool only while Depth+1 is below MaxDepth.
func Definition(d Deps, b Budget) tools.ToolDefinition {
	b = b.withDefaults()
	if d.Model == "" {
		d.Model = provider.SmallModel
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
			return run(ctx, d, b, in.Prompt)
		},
	}
}

func run(ctx context.Context, d Deps, b Budget, prompt string) (*Result, error) {
	if b.Depth >= b.MaxDepth {
		return nil, fmt.Errorf("%w (%d)", ErrDepthExceeded, b.MaxDepth)
	}
	if prompt == "" {
		return nil, errors.New("prompt is required")
	}
	reg, err := nestedRegistry(d, b)
	if err != nil {
		return nil, err
	}

	parentTurn, _ := telemetry.TurnIDFromContext(ctx)
	start := time.Now()
	nested := &runner.Runner{
		Completer: d.Completer,
		Tools:     reg,
		Telemetry: d.Telemetry,
		Log:       d.Log.With("subagent_depth", b.Depth+1),
		Exit:      func(int) {},
	}
	tr, err := nested.RunTranscript(ctx, runner.Options{
		Prompt:    prompt,
		System:    []string{systemPrompt, envInfo(d.WorkDir)},
		Model:     d.Model,
		MaxTokens: defaultMaxTokens,
		MaxTurns:  b.MaxTurns,
	})
	elapsed := time.Since(start)

	fields := map[string]any{
		"parent_turn_id": parentTurn,
		"depth":          b.Depth + 1,
		"duration_ms":    elapsed.Milliseconds(),
		"error":          nil,
	}
	if tr != nil {
		fields["turns"] = tr.Turns
		fields["tool_uses"] = tr.ToolUses
	}
	if err != nil {
		fields["error"] = "subagent error"
		d.Telemetry.Emit("subagent", fields)
		return nil, err
	}
	d.Telemetry.Emit("subagent", fields)

	output := ""
	if tr.Final != nil {
		output = tr.Final.Text()
	}
	res := &Result{Summary: summary(tr.ToolUses, output, elapsed), Output: output}
	if res.Output == "" {
		res.Output = noTextOutput
	}
	d.Log.Info("subagent finished", "summary", res.Summary)
	return res, nil
}

func nestedRegistry(d Deps, b Budget) (*tools.Registry, error) {
	var names []string
	for _, n := range ReadOnlyTools {
		if _, ok := d.Tools.Lookup(n); ok {
			names = append(names, n)
		}
	}
	reg, err := d.Tools.Subset(names...)
	if err != nil {
		return nil, err
	}
	if b.Depth+1 < b.MaxDepth {
		next := b
		next.Depth++
		return reg.With(Definition(d, next))
	}
	return reg, nil
}

// summary formats "Done (N tool uses · T tokens · D.Ds)". T is estimated from
// the output's word count.
func summary(toolUses int, output string, elapsed time.Duration) string {
	noun := "tool uses"
	if toolUses == 1 {
		noun = "tool use"
	}
	tokens := metrics.CountFeatures(output).EstimateTokens()
	return fmt.Sprintf("Done (%d %s · %d tokens · %.1fs)", toolUses, noun, tokens, elapsed.Seconds())
}

func envInfo(workDir string) string {
	if workDir == "" {
		workDir, _ = os.Getwd()
	}
	git := "No"
	if fi, err := os.Stat(filepath.Join(workDir, ".git")); err == nil && fi.IsDir() {
		git = "Yes"
	}
	return fmt.Sprintf("Here is useful environment information:\n<env>\nWorking directory: %s\nIs directory a git repo: %s\nPlatform: %s\nToday's date: %s\n</env>",
		workDir, git, runtime.GOOS, time.Now().Format("2006-01-02"))
}
