package runner_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petasbytes/turnloop/internal/completion"
	"github.com/petasbytes/turnloop/internal/executor"
	"github.com/petasbytes/turnloop/internal/runner"
	"github.com/petasbytes/turnloop/memory"
	"github.com/petasbytes/turnloop/tools"
)

type reply struct {
	resp *completion.Response
	err  error
}

// scripted answers requests from a fixed list, repeating the last entry.
type scripted struct {
	mu      sync.Mutex
	replies []reply
	reqs    []completion.Request
}

func (s *scripted) Complete(_ context.Context, req completion.Request) (*completion.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	i := len(s.reqs) - 1
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	return s.replies[i].resp, s.replies[i].err
}

func (s *scripted) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reqs)
}

func text(s string) reply {
	return reply{resp: &completion.Response{Role: memory.RoleAssistant, Content: []memory.Block{memory.NewText(s)}}}
}

func uses(blocks ...memory.Block) reply {
	return reply{resp: &completion.Response{
		Role:    memory.RoleAssistant,
		Content: blocks,
		Usage:   completion.Usage{InputTokens: 10, OutputTokens: 2},
	}}
}

func call(id, name string) memory.Block {
	return memory.NewToolUse(id, name, json.RawMessage(`{}`))
}

func sleeper(name string, d time.Duration, out string) tools.ToolDefinition {
	return tools.ToolDefinition{Name: name, Function: func(context.Context, json.RawMessage) (any, error) {
		time.Sleep(d)
		return out, nil
	}}
}

// lines is an InputSource over a fixed list; it reports EOF when exhausted.
type lines struct {
	queue []string
	reads int
}

func (l *lines) ReadLine(context.Context) (string, error) {
	l.reads++
	if len(l.queue) == 0 {
		return "", errEOF
	}
	s := l.queue[0]
	l.queue = l.queue[1:]
	return s, nil
}

type exitRecorder struct{ codes []int }

func (e *exitRecorder) exit(code int) { e.codes = append(e.codes, code) }

func TestRun_NoToolUsesMakesExactlyOneCall(t *testing.T) {
	c := &scripted{replies: []reply{text("done")}}
	r := &runner.Runner{Completer: c, Tools: tools.MustRegistry()}

	resp, err := r.Run(context.Background(), runner.Options{Prompt: "hi", System: []string{"sys"}, Model: "m", MaxTokens: 99})
	require.NoError(t, err)
	require.Equal(t, "done", resp.Text())
	require.Equal(t, 1, c.calls())

	req := c.reqs[0]
	require.Equal(t, []string{"sys"}, req.System)
	require.Equal(t, int64(99), req.MaxTokens)
	require.Equal(t, []memory.Message{memory.NewUserMessage(memory.NewText("hi"))}, req.Messages)
}

func TestRun_MergesToolResultsInInvocationOrder(t *testing.T) {
	c := &scripted{replies: []reply{
		uses(memory.NewText("working"), call("ua", "A"), call("ub", "B")),
		text("final"),
	}}
	reg := tools.MustRegistry(
		sleeper("A", 50*time.Millisecond, "x"),
		sleeper("B", 10*time.Millisecond, "y"),
	)
	r := &runner.Runner{Completer: c, Tools: reg}

	tr, err := r.RunTranscript(context.Background(), runner.Options{Prompt: "go"})
	require.NoError(t, err)
	require.Equal(t, 2, c.calls())
	require.Equal(t, 2, tr.Turns)
	require.Equal(t, 2, tr.ToolUses)

	second := c.reqs[1].Messages
	require.Len(t, second, 3)
	require.Equal(t, memory.RoleAssistant, second[1].Role)
	require.Equal(t, memory.NewUserMessage(
		memory.NewToolResult("ua", "x", false),
		memory.NewToolResult("ub", "y", false),
	), second[2])
	require.Len(t, tr.Messages, 4)
	require.Equal(t, "final", tr.Messages[3].Text())
}

func TestRun_ToolsAreAdvertised(t *testing.T) {
	c := &scripted{replies: []reply{text("ok")}}
	reg := tools.MustRegistry(sleeper("A", 0, ""), sleeper("B", 0, ""))
	r := &runner.Runner{Completer: c, Tools: reg}

	_, err := r.Run(context.Background(), runner.Options{Prompt: "p"})
	require.NoError(t, err)
	names := []string{}
	for _, d := range c.reqs[0].Tools {
		names = append(names, d.Name)
	}
	require.Equal(t, []string{"A", "B"}, names)
}

func TestRun_UnknownToolDoesNotAbort(t *testing.T) {
	c := &scripted{replies: []reply{uses(call("u1", "nope")), text("recovered")}}
	r := &runner.Runner{Completer: c, Tools: tools.MustRegistry()}

	resp, err := r.Run(context.Background(), runner.Options{Prompt: "p"})
	require.NoError(t, err)
	require.Equal(t, "recovered", resp.Text())
	results := c.reqs[1].Messages[2].Content
	require.Equal(t, memory.NewToolResult("u1", executor.SentinelNotFound, true), results[0])
}

func TestRun_CompletionErrorIsFatal(t *testing.T) {
	svcErr := &completion.ServiceError{Status: 500, Message: "boom"}
	c := &scripted{replies: []reply{uses(call("u1", "A")), {err: svcErr}, text("never")}}
	r := &runner.Runner{Completer: c, Tools: tools.MustRegistry(sleeper("A", 0, "ok"))}

	_, err := r.Run(context.Background(), runner.Options{Prompt: "p"})
	var se *completion.ServiceError
	require.True(t, errors.As(err, &se), "got %v", err)
	require.Equal(t, 2, c.calls())
}

func TestRun_NoPromptNonInteractive(t *testing.T) {
	c := &scripted{replies: []reply{text("x")}}
	r := &runner.Runner{Completer: c}

	_, err := r.Run(context.Background(), runner.Options{})
	require.ErrorIs(t, err, runner.ErrNoPrompt)
	require.Zero(t, c.calls())
}

func TestRun_ExitOnCompletion(t *testing.T) {
	c := &scripted{replies: []reply{text("bye")}}
	ex := &exitRecorder{}
	r := &runner.Runner{Completer: c, Exit: ex.exit}

	resp, err := r.Run(context.Background(), runner.Options{Prompt: "p", ExitOnCompletion: true})
	require.NoError(t, err)
	require.Equal(t, "bye", resp.Text())
	require.Equal(t, []int{0}, ex.codes)
}

func TestRun_InteractiveQuitTokenStopsWithoutAnotherCall(t *testing.T) {
	c := &scripted{replies: []reply{text("first"), text("second")}}
	ex := &exitRecorder{}
	in := &lines{queue: []string{"", "  /quit  ", "unused"}}
	r := &runner.Runner{Completer: c, Input: in, Exit: ex.exit}

	_, err := r.Run(context.Background(), runner.Options{Prompt: "hello", Interactive: true})
	require.NoError(t, err)
	require.Equal(t, 1, c.calls())
	require.Equal(t, []int{0}, ex.codes)
	require.Equal(t, 2, in.reads, "blank lines are skipped")
}

func TestRun_InteractiveConversation(t *testing.T) {
	c := &scripted{replies: []reply{text("a1"), text("a2")}}
	ex := &exitRecorder{}
	in := &lines{queue: []string{"q1", "q2", "bye"}}
	r := &runner.Runner{Completer: c, Input: in, Exit: ex.exit, QuitToken: "bye"}

	_, err := r.Run(context.Background(), runner.Options{Interactive: true})
	require.NoError(t, err)
	require.Equal(t, 2, c.calls())

	last := c.reqs[1].Messages
	require.Len(t, last, 3)
	require.Equal(t, "q1", last[0].Text())
	require.Equal(t, "a1", last[1].Text())
	require.Equal(t, "q2", last[2].Text())
	require.Equal(t, []int{0}, ex.codes)
}

func TestRun_EmptyReplyIsNotSentBack(t *testing.T) {
	empty := reply{resp: &completion.Response{Role: memory.RoleAssistant, StopReason: "end_turn"}}
	c := &scripted{replies: []reply{empty, text("a2")}}
	ex := &exitRecorder{}
	in := &lines{queue: []string{"q1", "q2", "/quit"}}
	r := &runner.Runner{Completer: c, Input: in, Exit: ex.exit}

	tr, err := r.RunTranscript(context.Background(), runner.Options{Interactive: true})
	require.NoError(t, err)
	require.Equal(t, 2, c.calls())

	for _, m := range c.reqs[1].Messages {
		require.NotEmpty(t, m.Content, "request carries an empty message")
	}
	require.Len(t, c.reqs[1].Messages, 2)
	require.Equal(t, []memory.Role{memory.RoleUser, memory.RoleUser}, []memory.Role{
		c.reqs[1].Messages[0].Role, c.reqs[1].Messages[1].Role,
	})
	require.Len(t, tr.Messages, 3)
	require.Equal(t, "a2", tr.Messages[2].Text())
}

func TestRun_InteractiveEOFQuits(t *testing.T) {
	c := &scripted{replies: []reply{text("x")}}
	ex := &exitRecorder{}
	r := &runner.Runner{Completer: c, Input: &lines{}, Exit: ex.exit}

	_, err := r.Run(context.Background(), runner.Options{Interactive: true})
	require.NoError(t, err)
	require.Zero(t, c.calls())
	require.Equal(t, []int{0}, ex.codes)
}

func TestRun_TurnLimit(t *testing.T) {
	c := &scripted{replies: []reply{uses(call("u", "A"))}}
	r := &runner.Runner{Completer: c, Tools: tools.MustRegistry(sleeper("A", 0, "again"))}

	tr, err := r.RunTranscript(context.Background(), runner.Options{Prompt: "loop", MaxTurns: 3})
	require.ErrorIs(t, err, runner.ErrTurnLimit)
	require.Equal(t, 3, c.calls())
	require.Equal(t, 3, tr.ToolUses)
	require.Equal(t, int64(30), tr.Usage.InputTokens)
}

func TestRun_TokenBudgetSendsNewestPairOnly(t *testing.T) {
	// "old" costs 7; the tool pair costs 12 (use: name 1 + input 2 + 4, result 1 + 4).
	c := &scripted{replies: []reply{uses(call("a", "A")), text("done")}}
	r := &runner.Runner{Completer: c, Tools: tools.MustRegistry(sleeper("A", 0, "r"))}

	_, err := r.Run(context.Background(), runner.Options{Prompt: "old", TokenBudget: 12})
	require.NoError(t, err)
	require.Len(t, c.reqs[0].Messages, 1)

	second := c.reqs[1].Messages
	require.Len(t, second, 2)
	require.Equal(t, memory.RoleAssistant, second[0].Role)
	require.Equal(t, "a", second[0].Content[0].ID)
	require.Equal(t, "a", second[1].Content[0].ToolUseID)
}

func TestRun_TokenBudgetOverflowFailsBeforeCalling(t *testing.T) {
	c := &scripted{replies: []reply{text("x")}}
	r := &runner.Runner{Completer: c}

	_, err := r.Run(context.Background(), runner.Options{Prompt: strings.Repeat("z", 50), TokenBudget: 10})
	require.Error(t, err)
	require.Zero(t, c.calls())
}
