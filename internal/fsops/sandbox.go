// Package fsops implements filesystem operations confined to a sandbox root.
// All paths are relative to the sandbox and validated through safety.
package fsops

import (
	"github.com/petasbytes/turnloop/internal/safety"
)

// Sandbox holds resolved absolute read and write roots.
type Sandbox struct {
	readRoot  string
	writeRoot string
}

// New resolves the roots once. Empty readRoot means the working directory;
// empty writeRoot means readRoot.
func New(readRoot, writeRoot string) (*Sandbox, error) {
	r, w, err := safety.InitSandboxRoot(readRoot, writeRoot)
	if err != nil {
		return nil, err
	}
	return &Sandbox{readRoot: r, writeRoot: w}, nil
}

func (s *Sandbox) ReadRoot() string  { return s.readRoot }
func (s *Sandbox) WriteRoot() string { return s.writeRoot }
