package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/petasbytes/turnloop/internal/shell"
)

// CommandRunner executes one shell command. *shell.Shell satisfies it.
type CommandRunner interface {
	Exec(ctx context.Context, command string, timeout time.Duration) (shell.Result, error)
}

type BashInput struct {
	Command   string `json:"command" jsonschema_description:"The command to execute."`
	TimeoutMS int    `json:"timeout_ms,omitempty" jsonschema_description:"Optional timeout in milliseconds (default 120000, max 600000)."`
}

const (
	defaultBashTimeout = 2 * time.Minute
	maxBashTimeout     = 10 * time.Minute
	maxBashOutputRunes = 30_000
)

// Bash returns the bash tool. The shell persists between calls, so the
// working directory and exported variables carry over.
func Bash(sh CommandRunner) ToolDefinition {
	return ToolDefinition{
		Name:        "bash",
		Description: "Run a command in a persistent bash shell. Working directory and environment persist between calls. Output is truncated past 30000 characters.",
		InputSchema: GenerateSchema[BashInput](),
		Function: func(ctx context.Context, input json.RawMessage) (any, error) {
			var in BashInput
			if err := Decode(input, &in); err != nil {
				return nil, err
			}
			if strings.TrimSpace(in.Command) == "" {
				return nil, errors.New("command is required")
			}
			res, err := sh.Exec(ctx, in.Command, bashTimeout(in.TimeoutMS))
			if err != nil {
				return nil, err
			}
			return formatShellResult(res), nil
		},
	}
}

func bashTimeout(ms int) time.Duration {
	if ms <= 0 {
		return defaultBashTimeout
	}
	if ms >= int(maxBashTimeout/time.Millisecond) {
		return maxBashTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

func formatShellResult(res shell.Result) string {
	stdout, _ := clampRunes(res.Stdout, maxBashOutputRunes)
	stderr, _ := clampRunes(res.Stderr, maxBashOutputRunes)

	var b strings.Builder
	b.WriteString(stdout)
	if stderr != "" {
		if b.Len() > 0 && !strings.HasSuffix(stdout, "\n") {
			b.WriteByte('\n')
		}
		b.WriteString(stderr)
	}
	if res.ExitCode != 0 {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "Exit code %d", res.ExitCode)
	}
	if res.Exited {
		b.WriteString("\n(shell exited; a new shell will be started)")
	}
	return b.String()
}
