// Package config assembles run configuration from an optional YAML file and
// the environment. Environment values override the file; command-line flags
// are applied by the caller afterwards.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/petasbytes/turnloop/internal/provider"
	"github.com/petasbytes/turnloop/internal/runner"
	"github.com/petasbytes/turnloop/internal/telemetry"
)

type Config struct {
	// APIKey is only read from the environment.
	APIKey  string `yaml:"-" env:"ANTHROPIC_API_KEY" validate:"required"`
	BaseURL string `yaml:"base_url" env:"ANTHROPIC_BASE_URL" validate:"omitempty,url"`

	Model      string `yaml:"model" env:"AGT_MODEL" validate:"required"`
	LargeModel string `yaml:"large_model" env:"AGT_LARGE_MODEL" validate:"required"`
	SmallModel string `yaml:"small_model" env:"AGT_SMALL_MODEL" validate:"required"`
	MaxTokens  int64  `yaml:"max_tokens" env:"AGT_MAX_TOKENS" validate:"gt=0"`

	TokenBudget int      `yaml:"token_budget" env:"AGT_TOKEN_BUDGET" validate:"gte=0"`
	MaxTurns    int      `yaml:"max_turns" env:"AGT_MAX_TURNS" validate:"gte=0"`
	System      []string `yaml:"system"`
	QuitToken   string   `yaml:"quit_token" env:"AGT_QUIT_TOKEN" validate:"notblank"`

	ReadRoot  string `yaml:"read_root" env:"AGT_READ_ROOT"`
	WriteRoot string `yaml:"write_root" env:"AGT_WRITE_ROOT"`
	ShellTmp  string `yaml:"shell_tmp" env:"AGT_SHELL_TMP"`
	NoShell   bool   `yaml:"no_shell" env:"AGT_NO_SHELL"`

	SubagentDepth    int  `yaml:"subagent_depth" env:"AGT_SUBAGENT_DEPTH" validate:"gte=0"`
	SubagentMaxTurns int  `yaml:"subagent_max_turns" env:"AGT_SUBAGENT_MAX_TURNS" validate:"gte=0"`
	ThinkTool        bool `yaml:"think_tool" env:"AGT_THINK_TOOL"`

	ObserveJSON   bool   `yaml:"observe_json" env:"AGT_OBSERVE_JSON"`
	LocalFeatures bool   `yaml:"local_features" env:"AGT_LOCAL_FEATURES"`
	TelemetryDir  string `yaml:"telemetry_dir" env:"AGT_TELEMETRY_DIR"`

	LogLevel string `yaml:"log_level" env:"AGT_LOG_LEVEL" validate:"loglevel"`
	Color    bool   `yaml:"color" env:"AGT_COLOR"`
}

func Default() Config {
	return Config{
		Model:            string(provider.DefaultModel),
		LargeModel:       string(provider.LargeModel),
		SmallModel:       string(provider.SmallModel),
		MaxTokens:        1024,
		QuitToken:        runner.DefaultQuitToken,
		SubagentDepth:    1,
		SubagentMaxTurns: 20,
		ThinkTool:        true,
		TelemetryDir:     telemetry.DefaultDir,
		LogLevel:         "info",
		Color:            true,
	}
}

// Load starts from Default, applies the YAML file at path when path is
// non-empty, then the variables in environ. A nil environ means the process
// environment. Unset or empty variables leave the earlier value in place.
func Load(path string, environ map[string]string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if environ == nil {
		environ = processEnv()
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func processEnv() map[string]string {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}

// Validate fails fast on settings that would only surface later as a
// failed request. Every violation is reported, keyed by its file or
// environment name.
func (c Config) Validate() error {
	err := validate().Struct(c)
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err
	}
	errs := make([]error, 0, len(fields))
	for _, fe := range fields {
		errs = append(errs, fieldError(fe))
	}
	return errors.Join(errs...)
}

func fieldError(fe validator.FieldError) error {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		if name == "ANTHROPIC_API_KEY" {
			return errors.New("missing ANTHROPIC_API_KEY; export it before running")
		}
		return fmt.Errorf("%s must not be empty", name)
	case "notblank":
		return fmt.Errorf("%s must not be blank", name)
	case "gt":
		return fmt.Errorf("%s must be greater than %s, got %v", name, fe.Param(), fe.Value())
	case "gte":
		return fmt.Errorf("%s must not be negative, got %v", name, fe.Value())
	case "loglevel":
		return fmt.Errorf("invalid %s %q", name, fe.Value())
	}
	return fmt.Errorf("%s failed %s validation", name, fe.Tag())
}

var validate = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields under the name an operator would set them by.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name, _, _ := strings.Cut(f.Tag.Get("yaml"), ","); name != "" && name != "-" {
			return name
		}
		name, _, _ := strings.Cut(f.Tag.Get("env"), ",")
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		_, err := parseLevel(fl.Field().String())
		return err == nil
	})
	return v
})

// SlogLevel returns the configured log level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", s)
	}
	return lvl, nil
}

// TelemetryConfig maps the observability settings onto telemetry.Config.
func (c Config) TelemetryConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:       c.ObserveJSON,
		Dir:           c.TelemetryDir,
		LocalFeatures: c.LocalFeatures,
	}
}
