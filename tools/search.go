package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/petasbytes/turnloop/internal/fsops"
)

const (
	maxGlobResults = 100
	maxGrepResults = 100
)

type GlobInput struct {
	Pattern string `json:"pattern" jsonschema_description:"Glob pattern relative to path, e.g. **/*.go or src/*.ts. ** matches any number of directories."`
	Path    string `json:"path,omitempty" jsonschema_description:"Relative directory to search from (defaults to the workspace root)."`
}

type GrepInput struct {
	Pattern string `json:"pattern" jsonschema_description:"Regular expression to search file contents for. Lookarounds and backreferences are supported."`
	Path    string `json:"path,omitempty" jsonschema_description:"Relative directory to search (defaults to the workspace root)."`
	Include string `json:"include,omitempty" jsonschema_description:"Only search files whose base name matches this glob, e.g. *.go"`
}

// Glob returns the glob tool: fast file-name pattern matching.
func Glob(sb *fsops.Sandbox) ToolDefinition {
	return ToolDefinition{
		Name:        "glob",
		Description: "Find files by name pattern within the workspace. Returns matching relative paths, sorted. Use this when you know what a file is called but not where it is.",
		InputSchema: GenerateSchema[GlobInput](),
		Function: func(_ context.Context, input json.RawMessage) (any, error) {
			var in GlobInput
			if err := Decode(input, &in); err != nil {
				return nil, err
			}
			paths, err := sb.Glob(in.Pattern, in.Path, maxGlobResults)
			truncated := errors.Is(err, fsops.ErrLimit)
			if err != nil && !truncated {
				return nil, err
			}
			if len(paths) == 0 {
				return "No files found", nil
			}
			out := strings.Join(paths, "\n")
			if truncated {
				out += fmt.Sprintf("\n(results truncated at %d; narrow the pattern)", maxGlobResults)
			}
			return out, nil
		},
	}
}

// Grep returns the grep tool: regular-expression content search.
func Grep(sb *fsops.Sandbox) ToolDefinition {
	return ToolDefinition{
		Name:        "grep",
		Description: "Search file contents within the workspace using a regular expression. Returns path:line: text for each matching line.",
		InputSchema: GenerateSchema[GrepInput](),
		Function: func(_ context.Context, input json.RawMessage) (any, error) {
			var in GrepInput
			if err := Decode(input, &in); err != nil {
				return nil, err
			}
			if in.Pattern == "" {
				return nil, errors.New("pattern is required")
			}
			matches, err := sb.Grep(in.Pattern, in.Path, in.Include, maxGrepResults)
			truncated := errors.Is(err, fsops.ErrLimit)
			if err != nil && !truncated {
				return nil, err
			}
			if len(matches) == 0 {
				return "No matches found", nil
			}
			var b strings.Builder
			for _, m := range matches {
				b.WriteString(m.String())
				b.WriteByte('\n')
			}
			if truncated {
				fmt.Fprintf(&b, "(results truncated at %d; narrow the pattern)\n", maxGrepResults)
			}
			return b.String(), nil
		},
	}
}
