package shell_test

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petasbytes/turnloop/internal/shell"
)

func startShell(t *testing.T) *shell.Shell {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	sh, err := shell.Start(shell.Config{
		Path:         "bash",
		Dir:          t.TempDir(),
		TempDir:      t.TempDir(),
		PollInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sh.Close() })
	return sh
}

func TestExec_CapturesStreamsAndExitCode(t *testing.T) {
	sh := startShell(t)

	res, err := sh.Exec(context.Background(), "echo out; echo err >&2; false", 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, "out\n", res.Stdout)
	require.Equal(t, "err\n", res.Stderr)
	require.Equal(t, 1, res.ExitCode)
	require.False(t, res.Exited)
}

func TestExec_StatePersistsAcrossCommands(t *testing.T) {
	sh := startShell(t)
	ctx := context.Background()
	sub := t.TempDir()

	_, err := sh.Exec(ctx, "cd "+sub+" && export GREETING=hello", 5*time.Second)
	require.NoError(t, err)

	res, err := sh.Exec(ctx, `pwd; echo "$GREETING"`, 5*time.Second)
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(sub)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, []string{sub, want}, lines[0])
	require.Equal(t, "hello", lines[1])
	require.Equal(t, lines[0], res.Cwd)
}

func TestExec_SyntaxErrorDoesNotWedgeShell(t *testing.T) {
	sh := startShell(t)
	ctx := context.Background()

	res, err := sh.Exec(ctx, `echo "unterminated`, 5*time.Second)
	require.NoError(t, err)
	require.NotZero(t, res.ExitCode)

	res, err = sh.Exec(ctx, "echo ok", 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, "ok\n", res.Stdout)
}

func TestExec_TimeoutThenRecovers(t *testing.T) {
	sh := startShell(t)
	ctx := context.Background()

	_, err := sh.Exec(ctx, "sleep 5", 50*time.Millisecond)
	require.ErrorIs(t, err, shell.ErrTimeout)

	res, err := sh.Exec(ctx, "echo again", 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, "again\n", res.Stdout)
}

func TestExec_ContextCancel(t *testing.T) {
	sh := startShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := sh.Exec(ctx, "sleep 5", time.Minute)
	require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestExec_ExitRestartsShell(t *testing.T) {
	sh := startShell(t)
	ctx := context.Background()

	res, err := sh.Exec(ctx, "exit 3", 5*time.Second)
	require.NoError(t, err)
	require.True(t, res.Exited)
	require.Equal(t, 3, res.ExitCode)

	res, err = sh.Exec(ctx, "echo back", 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, "back\n", res.Stdout)
}

func TestExec_SensitiveEnvironmentWithheld(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("TURNLOOP_VISIBLE", "yes")
	sh := startShell(t)

	res, err := sh.Exec(context.Background(), `echo "${ANTHROPIC_API_KEY:-unset} $TURNLOOP_VISIBLE"`, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, "unset yes\n", res.Stdout)
}

func TestExec_AfterClose(t *testing.T) {
	sh := startShell(t)
	require.NoError(t, sh.Close())

	_, err := sh.Exec(context.Background(), "true", time.Second)
	require.ErrorIs(t, err, shell.ErrClosed)
}
