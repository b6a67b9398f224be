package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petasbytes/turnloop/internal/config"
	"github.com/petasbytes/turnloop/internal/provider"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("", map[string]string{})
	require.NoError(t, err)
	require.Equal(t, config.Default(), cfg)
	require.Equal(t, string(provider.LargeModel), cfg.Model)
	require.Equal(t, "/quit", cfg.QuitToken)
	require.Equal(t, 1, cfg.SubagentDepth)
	require.True(t, cfg.ThinkTool)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turnloop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model: claude-from-file
max_tokens: 2048
token_budget: 5000
system:
  - You are terse.
  - Prefer Go.
read_root: /srv/code
log_level: debug
`), 0o644))

	cfg, err := config.Load(path, map[string]string{
		"ANTHROPIC_API_KEY": "sk-test",
		"AGT_MODEL":         "claude-from-env",
		"AGT_OBSERVE_JSON":  "1",
		"AGT_MAX_TURNS":     "7",
		"AGT_NO_SHELL":      "true",
		"AGT_THINK_TOOL":    "false",
		"AGT_READ_ROOT":     "",
	})
	require.NoError(t, err)
	require.Equal(t, "sk-test", cfg.APIKey)
	require.Equal(t, "claude-from-env", cfg.Model, "environment overrides file")
	require.Equal(t, int64(2048), cfg.MaxTokens)
	require.Equal(t, 5000, cfg.TokenBudget)
	require.Equal(t, 7, cfg.MaxTurns)
	require.Equal(t, []string{"You are terse.", "Prefer Go."}, cfg.System)
	require.Equal(t, "/srv/code", cfg.ReadRoot, "empty variables keep the file value")
	require.True(t, cfg.NoShell)
	require.False(t, cfg.ThinkTool, "environment can switch the think tool off")
	require.True(t, cfg.ObserveJSON)
	require.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	require.True(t, cfg.TelemetryConfig().Enabled)
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), map[string]string{})
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("max_tokens: [oops"), 0o644))
	_, err = config.Load(bad, map[string]string{})
	require.Error(t, err)

	_, err = config.Load("", map[string]string{"AGT_TOKEN_BUDGET": "lots", "AGT_OBSERVE_JSON": "maybe"})
	require.ErrorContains(t, err, "TokenBudget")
	require.ErrorContains(t, err, "ObserveJSON")
}

func TestValidate(t *testing.T) {
	cfg := config.Default()
	err := cfg.Validate()
	require.ErrorContains(t, err, "ANTHROPIC_API_KEY")

	cfg.APIKey = "k"
	require.NoError(t, cfg.Validate())

	cfg.MaxTokens = 0
	cfg.TokenBudget = -1
	cfg.LogLevel = "loud"
	cfg.QuitToken = " "
	cfg.SubagentDepth = -2
	err = cfg.Validate()
	require.ErrorContains(t, err, "max_tokens")
	require.ErrorContains(t, err, "token_budget")
	require.ErrorContains(t, err, "log_level")
	require.ErrorContains(t, err, "quit_token")
	require.ErrorContains(t, err, "subagent_depth must not be negative, got -2")
	require.NotContains(t, err.Error(), "ANTHROPIC_API_KEY")
}
