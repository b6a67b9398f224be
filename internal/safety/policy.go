package safety

import "path/filepath"

// protectedBasenames may not be written at any depth.
var protectedBasenames = map[string]struct{}{
	"go.mod": {},
	"go.sum": {},
}

// ValidateWritePath applies the same boundary rules as ValidateRelPath and
// additionally blocks writes under .git/ and .agent/ and to protected files
// such as go.mod. Violations return a ToolError with CodeDeniedWrite.
func ValidateWritePath(absRoot, relPath string) (string, error) {
	candidate, rel, err := resolve(absRoot, relPath)
	if err != nil {
		return "", err
	}
	if underDenied(rel) {
		return "", ToolError{Code: CodeDeniedWrite, Message: "writes under .git/ or .agent/ are not allowed"}
	}
	if _, ok := protectedBasenames[filepath.Base(rel)]; ok {
		return "", ToolError{Code: CodeDeniedWrite, Message: "writes to " + filepath.Base(rel) + " are not allowed"}
	}
	return candidate, nil
}
