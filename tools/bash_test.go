package tools_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petasbytes/turnloop/internal/shell"
	"github.com/petasbytes/turnloop/tools"
)

type fakeRunner struct {
	res     shell.Result
	err     error
	command string
	timeout time.Duration
}

func (f *fakeRunner) Exec(_ context.Context, command string, timeout time.Duration) (shell.Result, error) {
	f.command, f.timeout = command, timeout
	return f.res, f.err
}

func TestBash_FormatsOutput(t *testing.T) {
	cases := []struct {
		name string
		res  shell.Result
		want string
	}{
		{"stdout only", shell.Result{Stdout: "hi\n"}, "hi\n"},
		{"stderr appended", shell.Result{Stdout: "a", Stderr: "warn\n"}, "a\nwarn\n"},
		{"nonzero exit", shell.Result{Stderr: "boom\n", ExitCode: 2}, "boom\nExit code 2"},
		{"silent failure", shell.Result{ExitCode: 1}, "Exit code 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &fakeRunner{res: tc.res}
			out, err := call(t, tools.Bash(r), tools.BashInput{Command: "x"})
			require.NoError(t, err)
			require.Equal(t, tc.want, out)
		})
	}
}

func TestBash_TimeoutDefaultsAndCap(t *testing.T) {
	cases := []struct {
		name string
		ms   int
		want time.Duration
	}{
		{"default", 0, 2 * time.Minute},
		{"negative", -5, 2 * time.Minute},
		{"explicit", 1500, 1500 * time.Millisecond},
		{"one day", 24 * 60 * 60 * 1000, 10 * time.Minute},
		{"max int", math.MaxInt, 10 * time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &fakeRunner{}
			_, err := call(t, tools.Bash(r), tools.BashInput{Command: "ls", TimeoutMS: tc.ms})
			require.NoError(t, err)
			require.Equal(t, tc.want, r.timeout)
		})
	}
}

func TestBash_Errors(t *testing.T) {
	_, err := call(t, tools.Bash(&fakeRunner{}), tools.BashInput{Command: "   "})
	require.Error(t, err, "empty command")

	r := &fakeRunner{err: shell.ErrTimeout}
	_, err = call(t, tools.Bash(r), tools.BashInput{Command: "sleep 9"})
	require.ErrorIs(t, err, shell.ErrTimeout)
}
