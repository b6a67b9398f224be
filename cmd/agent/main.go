package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/petasbytes/turnloop/internal/completion"
	"github.com/petasbytes/turnloop/internal/config"
	"github.com/petasbytes/turnloop/internal/fsops"
	"github.com/petasbytes/turnloop/internal/provider"
	"github.com/petasbytes/turnloop/internal/runner"
	"github.com/petasbytes/turnloop/internal/shell"
	"github.com/petasbytes/turnloop/internal/subagent"
	"github.com/petasbytes/turnloop/internal/telemetry"
	"github.com/petasbytes/turnloop/internal/thinking"
	"github.com/petasbytes/turnloop/internal/trace"
	"github.com/petasbytes/turnloop/tools"
)

const defaultSystem = `You are a coding assistant operating on a local workspace through tools.
Paths are relative to the workspace root. Prefer the agent tool for open-ended searches and read files before editing them.`

func main() {
	os.Exit(run())
}

func run() int {
	var (
		prompt      = flag.String("p", "", "Initial prompt")
		interactive = flag.Bool("i", false, "Interactive mode: read further input from stdin")
		exitOnDone  = flag.Bool("exit", false, "Exit the process after the final answer (non-interactive)")
		configPath  = flag.String("config", "", "Path to a YAML config file")
		model       = flag.String("model", "", "Model override")
		maxTurns    = flag.Int("max-turns", -1, "Maximum completion calls per run (0 = unbounded)")
		budget      = flag.Int("budget", -1, "Token budget for the send window (0 = send full history)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *model != "" {
		cfg.Model = *model
	}
	if *maxTurns >= 0 {
		cfg.MaxTurns = *maxTurns
	}
	if *budget >= 0 {
		cfg.TokenBudget = *budget
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sb, err := fsops.New(cfg.ReadRoot, cfg.WriteRoot)
	if err != nil {
		log.Error("sandbox", "err", err)
		return 1
	}

	var sh *shell.Shell
	if !cfg.NoShell {
		sh, err = shell.Start(shell.Config{Dir: sb.WriteRoot(), TempDir: cfg.ShellTmp})
		if err != nil {
			log.Error("shell", "err", err)
			return 1
		}
		defer sh.Close()
	}
	exit := func(code int) {
		if sh != nil {
			_ = sh.Close()
		}
		os.Exit(code)
	}

	tel := telemetry.New(cfg.TelemetryConfig())
	api := provider.NewAnthropicClient(provider.Options{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL})
	comp := completion.New(api, completion.Config{
		LargeModel: anthropic.Model(cfg.LargeModel),
		Telemetry:  tel,
		Log:        log,
	})

	reg, err := buildRegistry(cfg, sb, sh, comp, tel, log)
	if err != nil {
		log.Error("tools", "err", err)
		return 1
	}

	color := cfg.Color
	youPrompt := "You: "
	if color {
		youPrompt = "\u001b[94mYou\u001b[0m: "
	}
	r := &runner.Runner{
		Completer: comp,
		Tools:     reg,
		Trace:     trace.New(os.Stdout, color),
		Telemetry: tel,
		Log:       log,
		Input:     runner.NewLineReader(os.Stdin, os.Stdout, youPrompt),
		Exit:      exit,
		QuitToken: cfg.QuitToken,
	}

	system := cfg.System
	if len(system) == 0 {
		system = []string{defaultSystem}
	}
	if *interactive {
		fmt.Printf("Chat with Claude (%s to quit)\n", cfg.QuitToken)
	}
	_, err = r.Run(ctx, runner.Options{
		Prompt:           *prompt,
		System:           system,
		Model:            anthropic.Model(cfg.Model),
		MaxTokens:        cfg.MaxTokens,
		Interactive:      *interactive,
		ExitOnCompletion: *exitOnDone,
		TokenBudget:      cfg.TokenBudget,
		MaxTurns:         cfg.MaxTurns,
	})
	switch {
	case err == nil:
		return 0
	case errors.Is(err, runner.ErrNoPrompt):
		fmt.Fprintln(os.Stderr, "no prompt given; pass -p or -i")
		flag.Usage()
		return 2
	case errors.Is(err, context.Canceled):
		log.Info("interrupted")
		return 130
	default:
		log.Error("run failed", "err", err)
		return 1
	}
}

func buildRegistry(cfg config.Config, sb *fsops.Sandbox, sh *shell.Shell, comp *completion.Client, tel *telemetry.Emitter, log *slog.Logger) (*tools.Registry, error) {
	var cmds tools.CommandRunner
	if sh != nil {
		cmds = sh
	}
	base, err := tools.Default(sb, cmds)
	if err != nil {
		return nil, err
	}
	reg := base
	if cfg.ThinkTool {
		reg, err = reg.With(thinking.Definition(thinking.Deps{
			Completer: comp,
			Sandbox:   sb,
			Telemetry: tel,
			Log:       log,
			Model:     anthropic.Model(cfg.LargeModel),
		}))
		if err != nil {
			return nil, err
		}
	}
	if cfg.SubagentDepth == 0 {
		return reg, nil
	}
	return reg.With(subagent.Definition(subagent.Deps{
		Completer: comp,
		Tools:     base,
		Telemetry: tel,
		Log:       log,
		Model:     anthropic.Model(cfg.SmallModel),
		WorkDir:   sb.ReadRoot(),
	}, subagent.Budget{
		MaxDepth: cfg.SubagentDepth,
		MaxTurns: cfg.SubagentMaxTurns,
	}))
}
