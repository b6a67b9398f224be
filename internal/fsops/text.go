package fsops

import "github.com/gabriel-vasile/mimetype"

// sniffBytes is how much of a file content detection looks at.
const sniffBytes = 8000

// isText reports whether data sniffs as some text format. Every text type
// mimetype knows descends from text/plain.
func isText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	if len(data) > sniffBytes {
		data = data[:sniffBytes]
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
