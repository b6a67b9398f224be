package fsops

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"

	"github.com/petasbytes/turnloop/internal/safety"
)

const (
	maxGrepFileBytes = 1 << 20
	maxGrepLineRunes = 500
	// grepLineTimeout bounds backtracking on a single line.
	grepLineTimeout = time.Second
)

// Match is a single grep hit. Path is relative to the sandbox read root.
type Match struct {
	Path string
	Line int
	Text string
}

func (m Match) String() string {
	return fmt.Sprintf("%s:%d: %s", m.Path, m.Line, m.Text)
}

// Glob returns files under relDir whose slash-separated path relative to
// relDir matches pattern. Segments follow path.Match; a "**" segment matches
// zero or more directories. Results are relative to the read root and sorted.
func (s *Sandbox) Glob(pattern, relDir string, limit int) ([]string, error) {
	if pattern == "" {
		return nil, errors.New("glob: empty pattern")
	}
	pat := strings.Split(path.Clean(filepath.ToSlash(pattern)), "/")
	for _, seg := range pat {
		if _, err := path.Match(seg, ""); err != nil {
			return nil, fmt.Errorf("glob: %w", err)
		}
	}

	var out []string
	err := s.walkFiles(relDir, func(rel string, _ string) error {
		if !matchSegments(pat, strings.Split(rel, "/")) {
			return nil
		}
		if limit > 0 && len(out) >= limit {
			return ErrLimit
		}
		out = append(out, joinRel(relDir, rel))
		return nil
	})
	sort.Strings(out)
	if errors.Is(err, ErrLimit) {
		return out, ErrLimit
	}
	return out, err
}

// Grep searches text files under relDir for lines matching the regular
// expression, which may use backtracking constructs such as lookarounds and
// backreferences. include, when set, filters files by base name (path.Match).
// Binary and oversized files are skipped.
func (s *Sandbox) Grep(pattern, relDir, include string, limit int) ([]Match, error) {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("grep: %w", err)
	}
	re.MatchTimeout = grepLineTimeout
	if include != "" {
		if _, err := path.Match(include, ""); err != nil {
			return nil, fmt.Errorf("grep: include: %w", err)
		}
	}

	var out []Match
	err = s.walkFiles(relDir, func(rel, abs string) error {
		if include != "" {
			if ok, _ := path.Match(include, path.Base(rel)); !ok {
				return nil
			}
		}
		data, err := readText(abs)
		if err != nil || data == nil {
			return nil
		}
		sc := bufio.NewScanner(bytes.NewReader(data))
		sc.Buffer(make([]byte, 0, 64*1024), maxGrepFileBytes)
		for n := 1; sc.Scan(); n++ {
			line := sc.Text()
			if ok, err := re.MatchString(line); err != nil || !ok {
				continue
			}
			if limit > 0 && len(out) >= limit {
				return ErrLimit
			}
			out = append(out, Match{Path: joinRel(relDir, rel), Line: n, Text: truncateRunes(line, maxGrepLineRunes)})
		}
		return nil
	})
	if errors.Is(err, ErrLimit) {
		return out, ErrLimit
	}
	return out, err
}

// walkFiles calls fn for every regular file below relDir with its path
// relative to relDir and its absolute path.
func (s *Sandbox) walkFiles(relDir string, fn func(rel, abs string) error) error {
	if relDir == "" {
		relDir = "."
	}
	absDir, err := safety.ValidateRelPath(s.readRoot, relDir)
	if err != nil {
		return err
	}
	fi, err := os.Stat(absDir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return safety.ToolError{Code: safety.CodeNotADir, Message: "path is not a directory"}
	}
	return filepath.WalkDir(absDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != absDir && (d.Name() == ".git" || d.Name() == ".agent") {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(absDir, p)
		if err != nil {
			return nil
		}
		return fn(filepath.ToSlash(rel), p)
	})
}

func matchSegments(pat, name []string) bool {
	if len(pat) == 0 {
		return len(name) == 0
	}
	if pat[0] == "**" {
		for i := 0; i <= len(name); i++ {
			if matchSegments(pat[1:], name[i:]) {
				return true
			}
		}
		return false
	}
	if len(name) == 0 {
		return false
	}
	if ok, _ := path.Match(pat[0], name[0]); !ok {
		return false
	}
	return matchSegments(pat[1:], name[1:])
}

// readText returns nil data for files that look binary or are too large.
func readText(abs string) ([]byte, error) {
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if fi.Size() > maxGrepFileBytes {
		return nil, nil
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	if !isText(data) {
		return nil, nil
	}
	return data, nil
}

func joinRel(relDir, rel string) string {
	if relDir == "" || relDir == "." {
		return rel
	}
	return path.Join(filepath.ToSlash(relDir), rel)
}

// truncateRunes cuts s after n runes without splitting a multibyte sequence.
func truncateRunes(s string, n int) string {
	if len(s) <= n || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for j := range s {
		if i == n {
			return s[:j]
		}
		i++
	}
	return s
}
