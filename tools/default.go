package tools

import "github.com/petasbytes/turnloop/internal/fsops"

// Default assembles the operator toolset. The bash tool is included only
// when sh is non-nil.
func Default(sb *fsops.Sandbox, sh CommandRunner, extra ...ToolDefinition) (*Registry, error) {
	defs := []ToolDefinition{
		ReadFile(sb),
		ListFiles(sb),
		EditFile(sb),
		Glob(sb),
		Grep(sb),
	}
	if sh != nil {
		defs = append(defs, Bash(sh))
	}
	return NewRegistry(append(defs, extra...)...)
}
