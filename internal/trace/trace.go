// Package trace prints a human-readable transcript of the conversation.
// Rendering is best effort: write failures and panics are swallowed and the
// inputs are never modified.
package trace

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/petasbytes/turnloop/memory"
)

const (
	ansiReset = "\x1b[0m"
	ansiRole  = "\x1b[36m"
	ansiTool  = "\x1b[32m"
	ansiID    = "\x1b[34m"
)

type Renderer struct {
	w     io.Writer
	color bool
}

// New returns a renderer writing to w. A nil w discards output.
func New(w io.Writer, color bool) *Renderer {
	if w == nil {
		w = io.Discard
	}
	return &Renderer{w: w, color: color}
}

// Messages renders each message in order.
func (r *Renderer) Messages(msgs []memory.Message) {
	for _, m := range msgs {
		r.Message(m)
	}
}

// Message prints the role line followed by each block.
func (r *Renderer) Message(m memory.Message) {
	if r == nil {
		return
	}
	defer swallow()
	r.printf("%s\n", r.paint(ansiRole, "> "+string(m.Role)))
	for _, b := range m.Content {
		r.block(b)
	}
	r.printf("\n")
}

// Block renders a single content block.
func (r *Renderer) Block(b memory.Block) {
	if r == nil {
		return
	}
	defer swallow()
	r.block(b)
}

func (r *Renderer) block(b memory.Block) {
	switch b.Type {
	case memory.BlockText:
		r.printf("%s\n\n", b.Text)
	case memory.BlockToolUse:
		input := b.Input
		if len(input) == 0 || !json.Valid(input) {
			input = json.RawMessage(`{}`)
		}
		r.printf("%s: %s\n", r.paint(ansiTool, "> "+b.Name), input)
	case memory.BlockToolResult:
		r.printf("%s: %s\n", r.paint(ansiID, "> "+b.ToolUseID), b.Content)
	}
}

func (r *Renderer) paint(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + ansiReset
}

func (r *Renderer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.w, format, args...)
}

func swallow() { _ = recover() }
