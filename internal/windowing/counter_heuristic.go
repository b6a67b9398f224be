package windowing

import (
	"unicode/utf8"

	"github.com/petasbytes/turnloop/memory"
)

// TokenCounter estimates input-token cost for messages or groups.
type TokenCounter interface {
	CountMessage(m memory.Message) int
	CountGroup(g Group, all []memory.Message) int
}

// HeuristicCounter is the default deterministic estimator.
// Rules:
//   - text blocks: rune count of the text
//   - tool_result blocks: rune count of the content
//   - tool_use blocks: rune count of the name plus the raw input
//
// Every block adds a small fixed overhead for framing.
type HeuristicCounter struct{}

// Changing this requires updating the counter tests.
const blockOverhead = 4

func (HeuristicCounter) CountMessage(m memory.Message) int {
	total := 0
	for _, b := range m.Content {
		total += countBlock(b)
	}
	return total
}

func (h HeuristicCounter) CountGroup(g Group, all []memory.Message) int {
	total := 0
	for i := g.Start; i < g.End && i < len(all); i++ {
		total += h.CountMessage(all[i])
	}
	return total
}

func countBlock(b memory.Block) int {
	switch b.Type {
	case memory.BlockText:
		return utf8.RuneCountInString(b.Text) + blockOverhead
	case memory.BlockToolResult:
		return utf8.RuneCountInString(b.Content) + blockOverhead
	case memory.BlockToolUse:
		return utf8.RuneCountInString(b.Name) + utf8.RuneCount(b.Input) + blockOverhead
	}
	return blockOverhead
}
