package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/petasbytes/turnloop/internal/completion"
	"github.com/petasbytes/turnloop/internal/executor"
	"github.com/petasbytes/turnloop/internal/telemetry"
	"github.com/petasbytes/turnloop/internal/trace"
	"github.com/petasbytes/turnloop/internal/windowing"
	"github.com/petasbytes/turnloop/memory"
	"github.com/petasbytes/turnloop/tools"
)

var (
	ErrNoPrompt  = errors.New("runner: no prompt and not interactive")
	ErrTurnLimit = errors.New("runner: turn limit reached")
)

// DefaultQuitToken ends an interactive conversation.
const DefaultQuitToken = "/quit"

// Completer is satisfied by *completion.Client.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (*completion.Response, error)
}

type Runner struct {
	Completer Completer
	Tools     *tools.Registry
	// Executor defaults to one built from Telemetry and Log.
	Executor  *executor.Executor
	Trace     *trace.Renderer
	Telemetry *telemetry.Emitter
	Log       *slog.Logger
	Input     InputSource
	// Exit terminates the process. Defaults to os.Exit.
	Exit      func(code int)
	QuitToken string
}

type Options struct {
	Prompt    string
	System    []string
	Model     anthropic.Model
	MaxTokens int64
	// Interactive solicits human input whenever the model stops using tools.
	Interactive bool
	// ExitOnCompletion calls Exit(0) after the final answer of a
	// non-interactive run.
	ExitOnCompletion bool
	// TokenBudget > 0 sends only the newest pair-safe window of history
	// that fits the heuristic estimate.
	TokenBudget int
	// MaxTurns > 0 bounds the number of completion calls.
	MaxTurns int
}

// Transcript is the full record of one Run.
type Transcript struct {
	Final    *completion.Response
	Messages []memory.Message
	Turns    int
	ToolUses int
	Usage    completion.Usage
}

// Run drives the conversation and returns the final model response. In
// interactive mode it returns only on quit, input EOF or error.
func (r *Runner) Run(ctx context.Context, opts Options) (*completion.Response, error) {
	t, err := r.RunTranscript(ctx, opts)
	if t == nil {
		return nil, err
	}
	return t.Final, err
}

// RunTranscript is Run that also reports the history and counters.
func (r *Runner) RunTranscript(ctx context.Context, opts Options) (*Transcript, error) {
	log := r.logger()
	history := memory.NewHistory()
	t := &Transcript{}
	done := func(err error) (*Transcript, error) {
		t.Messages = history.Messages()
		return t, err
	}

	prompt := opts.Prompt
	if prompt == "" {
		if !opts.Interactive {
			return nil, ErrNoPrompt
		}
		line, quit, err := r.nextHuman(ctx)
		if err != nil {
			return done(err)
		}
		if quit {
			r.exit(0)
			return done(nil)
		}
		prompt = line
	}
	history.Append(memory.NewUserMessage(memory.NewText(prompt)))

	for {
		if opts.MaxTurns > 0 && t.Turns >= opts.MaxTurns {
			return done(fmt.Errorf("%w after %d turns", ErrTurnLimit, t.Turns))
		}
		t.Turns++
		turnID := telemetry.NewTurnID()
		tctx := telemetry.WithTurnID(ctx, turnID)

		resp, err := r.complete(tctx, history, opts)
		if err != nil {
			return done(err)
		}
		t.Final = resp
		t.Usage.InputTokens += resp.Usage.InputTokens
		t.Usage.OutputTokens += resp.Usage.OutputTokens
		t.Usage.CacheReadTokens += resp.Usage.CacheReadTokens

		reply := resp.Message()
		if len(reply.Content) > 0 {
			history.Append(reply)
			r.Trace.Message(reply)
		} else {
			// An empty assistant message may not be sent back to the API.
			log.Warn("empty model reply left out of history", "turn_id", turnID, "stop_reason", resp.StopReason)
		}

		uses := reply.ToolUses()
		log.Debug("turn complete", "turn_id", turnID, "tool_uses", len(uses), "history", history.Len())

		if len(uses) == 0 {
			if !opts.Interactive {
				if opts.ExitOnCompletion {
					r.exit(0)
				}
				return done(nil)
			}
			line, quit, err := r.nextHuman(ctx)
			if err != nil {
				return done(err)
			}
			if quit {
				r.exit(0)
				return done(nil)
			}
			history.Append(memory.NewUserMessage(memory.NewText(line)))
			continue
		}

		t.ToolUses += len(uses)
		results := r.executor().Execute(tctx, uses, r.Tools)
		merged := memory.NewUserMessage(results...)
		r.Trace.Message(merged)
		history.Append(merged)
	}
}

func (r *Runner) complete(ctx context.Context, history *memory.History, opts Options) (*completion.Response, error) {
	msgs := history.Messages()
	if opts.TokenBudget > 0 {
		window, stats, err := windowing.Window(msgs, opts.TokenBudget)
		r.emitWindow(ctx, opts, stats)
		if err != nil {
			return nil, err
		}
		msgs = window
	}
	resp, err := r.Completer.Complete(ctx, completion.Request{
		System:    opts.System,
		Tools:     r.Tools.Definitions(),
		Messages:  msgs,
		Model:     opts.Model,
		MaxTokens: opts.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}
	return resp, nil
}

func (r *Runner) emitWindow(ctx context.Context, opts Options, stats windowing.Stats) {
	for _, ex := range stats.Exclusions {
		r.logger().Debug("window: unpaired tool_use", "index", ex.Index, "reason", ex.Reason)
	}
	turnID, _ := telemetry.TurnIDFromContext(ctx)
	r.Telemetry.Emit("window_prepared", map[string]any{
		"turn_id":            turnID,
		"model":              string(opts.Model),
		"budget":             stats.Budget,
		"total_estimated":    stats.Total,
		"included_groups":    stats.IncludedGroups,
		"skipped_groups":     stats.SkippedGroups,
		"over_budget_newest": stats.OverBudgetNewest,
	})
}

// nextHuman reads the next non-empty human line. quit is set on the quit
// token, on input EOF, or when there is no input source.
func (r *Runner) nextHuman(ctx context.Context) (line string, quit bool, err error) {
	if r.Input == nil {
		return "", true, nil
	}
	for {
		line, err := r.Input.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			return "", true, nil
		}
		if err != nil {
			return "", false, err
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == r.quitToken() {
			return "", true, nil
		}
		if trimmed == "" {
			continue
		}
		fctx, _ := telemetry.EnsureTurnID(ctx)
		r.Telemetry.EmitLocalFeatures(fctx, line)
		return line, false, nil
	}
}

func (r *Runner) quitToken() string {
	if r.QuitToken == "" {
		return DefaultQuitToken
	}
	return r.QuitToken
}

func (r *Runner) exit(code int) {
	if r.Exit == nil {
		os.Exit(code)
	}
	r.Exit(code)
}

func (r *Runner) executor() *executor.Executor {
	if r.Executor != nil {
		return r.Executor
	}
	return &executor.Executor{Telemetry: r.Telemetry, Log: r.Log}
}

func (r *Runner) logger() *slog.Logger {
	if r.Log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.Log
}
