package thinking_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petasbytes/turnloop/internal/completion"
	"github.com/petasbytes/turnloop/internal/fsops"
	"github.com/petasbytes/turnloop/internal/provider"
	"github.com/petasbytes/turnloop/internal/thinking"
	"github.com/petasbytes/turnloop/memory"
)

type recorder struct {
	reply string
	err   error
	reqs  []completion.Request
}

func (r *recorder) Complete(_ context.Context, req completion.Request) (*completion.Response, error) {
	r.reqs = append(r.reqs, req)
	if r.err != nil {
		return nil, r.err
	}
	return &completion.Response{Role: memory.RoleAssistant, Content: []memory.Block{memory.NewText(r.reply)}}, nil
}

func workspace(t *testing.T, files map[string]string) *fsops.Sandbox {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	sb, err := fsops.New(dir, dir)
	require.NoError(t, err)
	return sb
}

func invoke(t *testing.T, d thinking.Deps, prompt string) (*thinking.Result, error) {
	t.Helper()
	in, err := json.Marshal(thinking.Input{Prompt: prompt})
	require.NoError(t, err)
	v, err := thinking.Definition(d).Function(context.Background(), in)
	if err != nil {
		return nil, err
	}
	return v.(*thinking.Result), nil
}

func TestThink_SendsContextAndPrefill(t *testing.T) {
	sb := workspace(t, map[string]string{
		"CLAUDE.md":   "use tabs",
		"main.go":     "package main",
		"notes.txt":   "not context",
		"pkg/deep.go": "package pkg",
	})
	c := &recorder{reply: "weigh options\n</think>\n\nUse a map."}

	res, err := invoke(t, thinking.Deps{Completer: c, Sandbox: sb}, "how should I index?")
	require.NoError(t, err)
	require.Equal(t, "Use a map.", res.Thinking)
	require.Equal(t, "Thinking process completed", res.Summary)

	require.Len(t, c.reqs, 1)
	req := c.reqs[0]
	require.Equal(t, provider.LargeModel, req.Model)
	require.Equal(t, int64(8000), req.MaxTokens)
	require.Empty(t, req.Tools)
	require.Len(t, req.Messages, 2)

	user := req.Messages[0]
	require.Equal(t, memory.RoleUser, user.Role)
	require.Equal(t,
		"<context><file name='CLAUDE.md'>use tabs</file>\n<file name='main.go'>package main</file></context>\n\nhow should I index?",
		user.Text())

	pre := req.Messages[1]
	require.Equal(t, memory.RoleAssistant, pre.Role)
	require.Equal(t, "<think>", pre.Text())
	require.Equal(t, strings.TrimRight(pre.Text(), " \t\n"), pre.Text(), "prefill may not end in whitespace")
}

func TestThink_FallsBackToReasoningWithoutCloseTag(t *testing.T) {
	c := &recorder{reply: "  still reasoning when tokens ran out  "}
	res, err := invoke(t, thinking.Deps{Completer: c}, "plan it")
	require.NoError(t, err)
	require.Equal(t, "still reasoning when tokens ran out", res.Thinking)
	require.Equal(t, "<context></context>\n\nplan it", c.reqs[0].Messages[0].Text())
}

func TestThink_UnreadableFileIsNoted(t *testing.T) {
	sb := workspace(t, map[string]string{"blob.go": "\x7fELF\x02\x01\x01\x00\x00\x00"})
	c := &recorder{reply: "</think>ok"}

	_, err := invoke(t, thinking.Deps{Completer: c, Sandbox: sb}, "why?")
	require.NoError(t, err)
	require.Contains(t, c.reqs[0].Messages[0].Text(), "<file name='blob.go'>[Error reading file:")
}

func TestThink_Errors(t *testing.T) {
	c := &recorder{}
	_, err := invoke(t, thinking.Deps{Completer: c}, "   ")
	require.ErrorContains(t, err, "prompt is required")
	require.Empty(t, c.reqs, "blank prompt must not reach the model")

	boom := errors.New("overloaded")
	_, err = invoke(t, thinking.Deps{Completer: &recorder{err: boom}}, "x")
	require.ErrorIs(t, err, boom)
}

func TestSplit(t *testing.T) {
	cases := []struct {
		in, reasoning, answer string
	}{
		{"a</think>b", "a", "b"},
		{"\n a \n</think>\n b \n", "a", "b"},
		{"only reasoning", "only reasoning", ""},
		{"</think>", "", ""},
		{"x</think>y</think>z", "x", "y</think>z"},
	}
	for _, tc := range cases {
		r, a := thinking.Split(tc.in)
		require.Equal(t, tc.reasoning, r, tc.in)
		require.Equal(t, tc.answer, a, tc.in)
	}
}
