package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/petasbytes/turnloop/internal/fsops"
)

type ReadFileInput struct {
	Path   string `json:"path" jsonschema_description:"File path relative to the workspace root."`
	Offset int    `json:"offset,omitempty" jsonschema_description:"First line to return, counting from 0."`
	Limit  int    `json:"limit,omitempty" jsonschema_description:"Number of lines to return (default 200)."`
}

const (
	defaultReadFileLimit = 200
	truncationSentinel   = "-- truncated; use offset/limit to fetch more --\n"
	maxLineRunes         = 2000   // per-line clamp
	overallRuneCap       = 12_000 // cap after join
)

// ReadFile returns the read_file tool. Results are paginated by line and
// clamped; a trailing sentinel marks any truncation.
func ReadFile(sb *fsops.Sandbox) ToolDefinition {
	return ToolDefinition{
		Name:        "read_file",
		Description: "Read a text file from the workspace by relative path, a page of lines at a time. Long lines and large pages are clamped and marked as truncated.",
		InputSchema: GenerateSchema[ReadFileInput](),
		Function: func(_ context.Context, input json.RawMessage) (any, error) {
			var in ReadFileInput
			if err := Decode(input, &in); err != nil {
				return nil, err
			}
			content, err := sb.ReadFile(in.Path)
			if err != nil {
				return nil, err
			}
			return paginate(content, in.Offset, in.Limit), nil
		},
	}
}

func paginate(content string, offset, limit int) string {
	if limit <= 0 {
		limit = defaultReadFileLimit
	}
	lines := strings.Split(content, "\n")
	start := min(max(offset, 0), len(lines))
	end := start + min(limit, len(lines)-start)

	var b strings.Builder
	truncated := end < len(lines)
	for i, line := range lines[start:end] {
		if i > 0 {
			b.WriteByte('\n')
		}
		clamped, cut := clampRunes(line, maxLineRunes)
		truncated = truncated || cut
		b.WriteString(clamped)
	}

	out, cut := clampRunes(b.String(), overallRuneCap)
	if !truncated && !cut {
		return out
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out + truncationSentinel
}

// clampRunes cuts s to at most n runes and reports whether it did.
func clampRunes(s string, n int) (string, bool) {
	r := []rune(s)
	if len(r) <= n {
		return s, false
	}
	return string(r[:n]), true
}
