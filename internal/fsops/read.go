package fsops

import (
	"os"

	"github.com/petasbytes/turnloop/internal/safety"
)

// ReadFile reads a file addressed by a relative path under the read root.
// Policy violations come back as safety.ToolError.
func (s *Sandbox) ReadFile(relPath string) (string, error) {
	absPath, err := safety.ValidateRelPath(s.readRoot, relPath)
	if err != nil {
		return "", err
	}

	fi, err := os.Stat(absPath)
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		return "", safety.ToolError{Code: safety.CodeNotAFile, Message: "path is a directory"}
	}

	b, err := os.ReadFile(absPath)
	if err != nil {
		return "", err
	}
	if !isText(b) {
		return "", safety.ToolError{Code: safety.CodeNotText, Message: "file does not look like text"}
	}
	return string(b), nil
}
