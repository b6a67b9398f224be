package fsops

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/petasbytes/turnloop/internal/safety"
)

// ErrLimit is returned by walking operations that stopped at their entry cap.
// Results gathered so far are still returned alongside it.
var ErrLimit = errors.New("fsops: entry limit reached")

// ListDir returns the entries of a directory, directories suffixed by "/".
func (s *Sandbox) ListDir(relDir string) ([]string, error) {
	if relDir == "" {
		relDir = "."
	}
	absDir, err := safety.ValidateRelPath(s.readRoot, relDir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Walk lists everything below relDir recursively as slash-separated paths
// relative to relDir. Denied directories (.git, .agent) are skipped. At most
// limit entries are returned when limit > 0.
func (s *Sandbox) Walk(relDir string, limit int) ([]string, error) {
	if relDir == "" {
		relDir = "."
	}
	absDir, err := safety.ValidateRelPath(s.readRoot, relDir)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(absDir)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, safety.ToolError{Code: safety.CodeNotADir, Message: "path is not a directory"}
	}

	var out []string
	err = filepath.WalkDir(absDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped rather than failing the listing.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if p == absDir {
			return nil
		}
		if d.IsDir() && (d.Name() == ".git" || d.Name() == ".agent") {
			return fs.SkipDir
		}
		rel, err := filepath.Rel(absDir, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			rel += "/"
		}
		if limit > 0 && len(out) >= limit {
			return ErrLimit
		}
		out = append(out, rel)
		return nil
	})
	sort.Strings(out)
	if errors.Is(err, ErrLimit) {
		return out, ErrLimit
	}
	return out, err
}
