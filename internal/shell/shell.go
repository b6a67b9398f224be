// Package shell runs commands in one long-lived shell process so working
// directory and exported variables persist between commands.
//
// Each command is written to a script file and sourced by the shell with its
// stdout and stderr redirected to per-command artifact files. When the
// command finishes the shell writes the exit status to a temporary file and
// renames it into place; the rename is the completion signal. Exec polls for
// that file at a fixed interval with a bounded number of attempts.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	ErrTimeout = errors.New("shell: command timed out")
	ErrClosed  = errors.New("shell: closed")
)

type Config struct {
	// Path is the shell binary. Defaults to /bin/bash.
	Path string
	// Dir is the initial working directory. Defaults to the process cwd.
	Dir string
	// TempDir is where artifact directories are created. Defaults to os.TempDir().
	TempDir string
	// PollInterval is the delay between completion checks. Defaults to 10ms.
	PollInterval time.Duration
	// DefaultTimeout applies when Exec is called with timeout <= 0. Defaults to 2m.
	DefaultTimeout time.Duration
	// Env is appended to the filtered parent environment.
	Env []string
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = "/bin/bash"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Millisecond
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 2 * time.Minute
	}
	return c
}

type Result struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	// Cwd is the shell's working directory after the command.
	Cwd string `json:"cwd,omitempty"`
	// Exited is set when the command terminated the shell itself (e.g. exit).
	// The next Exec starts a fresh shell in the last known directory.
	Exited bool `json:"exited,omitempty"`
}

// Shell is safe for concurrent use; commands run one at a time.
type Shell struct {
	cfg       Config
	artifacts string

	mu     sync.Mutex
	proc   *exec.Cmd
	stdin  io.WriteCloser
	done   chan struct{}
	cwd    string
	seq    int
	closed bool
}

// Start spawns the shell and creates its artifact directory.
func Start(cfg Config) (*Shell, error) {
	cfg = cfg.withDefaults()
	art, err := os.MkdirTemp(cfg.TempDir, "turnloop-shell-")
	if err != nil {
		return nil, fmt.Errorf("shell: artifacts dir: %w", err)
	}
	s := &Shell{cfg: cfg, artifacts: art, cwd: cfg.Dir}
	if err := s.spawn(); err != nil {
		_ = os.RemoveAll(art)
		return nil, err
	}
	return s, nil
}

func (s *Shell) spawn() error {
	cmd := exec.Command(s.cfg.Path)
	cmd.Dir = s.cwd
	cmd.Env = append(filterEnvironment(os.Environ()), s.cfg.Env...)
	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("shell: stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("shell: start %s: %w", s.cfg.Path, err)
	}
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	s.proc, s.stdin, s.done = cmd, stdin, done
	return nil
}

func (s *Shell) exited() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

type artifacts struct {
	script, stdout, stderr, cwd, tmp, status string
}

func (s *Shell) artifactsFor(n int) artifacts {
	p := func(kind string) string {
		return filepath.Join(s.artifacts, kind+"-"+strconv.Itoa(n))
	}
	return artifacts{
		script: p("cmd") + ".sh",
		stdout: p("stdout"),
		stderr: p("stderr"),
		cwd:    p("cwd"),
		tmp:    p("status") + ".tmp",
		status: p("status"),
	}
}

func (a artifacts) remove() {
	for _, f := range []string{a.script, a.stdout, a.stderr, a.cwd, a.tmp, a.status} {
		_ = os.Remove(f)
	}
}

// Exec runs command and waits for its completion sentinel. On timeout or
// context cancellation the shell is killed and restarted on the next call.
func (s *Shell) Exec(ctx context.Context, command string, timeout time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Result{}, ErrClosed
	}
	if s.exited() {
		if err := s.spawn(); err != nil {
			return Result{}, err
		}
	}
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}

	s.seq++
	a := s.artifactsFor(s.seq)
	defer a.remove()

	if err := os.WriteFile(a.script, []byte(command+"\n"), 0o600); err != nil {
		return Result{}, fmt.Errorf("shell: write script: %w", err)
	}
	wrapper := fmt.Sprintf(". %s </dev/null >%s 2>%s\n__turnloop_rc=$?\npwd >%s\necho $__turnloop_rc >%s && mv %s %s\n",
		quote(a.script), quote(a.stdout), quote(a.stderr), quote(a.cwd), quote(a.tmp), quote(a.tmp), quote(a.status))
	if _, err := io.WriteString(s.stdin, wrapper); err != nil {
		s.kill()
		return Result{}, fmt.Errorf("shell: write: %w", err)
	}

	switch err := s.waitFor(ctx, a.status, timeout); {
	case err == nil:
		return s.collect(a), nil
	case errors.Is(err, errShellExited):
		res := s.collect(a)
		res.ExitCode = s.proc.ProcessState.ExitCode()
		res.Exited = true
		return res, nil
	default:
		s.kill()
		return Result{}, err
	}
}

var errShellExited = errors.New("shell exited")

// waitFor polls for the status file. The number of polls is bounded by
// timeout / PollInterval.
func (s *Shell) waitFor(ctx context.Context, status string, timeout time.Duration) error {
	polls := int(timeout / s.cfg.PollInterval)
	if polls < 1 {
		polls = 1
	}
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for i := 0; i < polls; i++ {
		if fileExists(status) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			if fileExists(status) {
				return nil
			}
			return errShellExited
		case <-ticker.C:
		}
	}
	if fileExists(status) {
		return nil
	}
	return ErrTimeout
}

func (s *Shell) collect(a artifacts) Result {
	res := Result{
		Stdout: readString(a.stdout),
		Stderr: readString(a.stderr),
	}
	if code, err := strconv.Atoi(strings.TrimSpace(readString(a.status))); err == nil {
		res.ExitCode = code
	}
	if cwd := strings.TrimSpace(readString(a.cwd)); cwd != "" {
		s.cwd = cwd
	}
	res.Cwd = s.cwd
	return res
}

func (s *Shell) kill() {
	if s.proc == nil || s.proc.Process == nil {
		return
	}
	killProcessGroup(s.proc)
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
	}
}

// Close ends the shell and removes its artifacts.
func (s *Shell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.exited() {
		_ = s.stdin.Close()
		select {
		case <-s.done:
		case <-time.After(2 * time.Second):
			s.kill()
		}
	}
	return os.RemoveAll(s.artifacts)
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func readString(p string) string {
	b, err := os.ReadFile(p)
	if err != nil {
		return ""
	}
	return string(b)
}

// quote single-quotes s for a POSIX shell.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
