package tools_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petasbytes/turnloop/internal/fsops"
	"github.com/petasbytes/turnloop/tools"
)

// newSandbox creates a temp workspace populated with files (relative path
// to content) and returns a sandbox rooted there.
func newSandbox(t *testing.T, files map[string]string) (*fsops.Sandbox, string) {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	sb, err := fsops.New(dir, dir)
	require.NoError(t, err)
	return sb, dir
}

// call marshals in and invokes the tool, stringifying its result.
func call(t *testing.T, def tools.ToolDefinition, in any) (string, error) {
	t.Helper()
	b, err := json.Marshal(in)
	require.NoError(t, err)
	v, err := def.Function(context.Background(), b)
	if err != nil {
		return "", err
	}
	s, err := tools.Stringify(v)
	require.NoError(t, err)
	return s, nil
}
