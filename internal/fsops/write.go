package fsops

import (
	"os"
	"path/filepath"

	"github.com/petasbytes/turnloop/internal/safety"
)

// WriteFile writes content to a relative path under the write root, creating
// parent directories as needed.
func (s *Sandbox) WriteFile(relPath, content string) error {
	absPath, err := safety.ValidateWritePath(s.writeRoot, relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(absPath, []byte(content), 0o644)
}
