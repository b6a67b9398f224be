package windowing_test

import (
	"github.com/petasbytes/turnloop/internal/windowing"
	"github.com/petasbytes/turnloop/memory"
)

func text(s string) memory.Block { return memory.NewText(s) }

// use is a tool_use with no name or input: it costs only the block overhead.
func use(id string) memory.Block { return memory.Block{Type: memory.BlockToolUse, ID: id} }

func result(id, content string) memory.Block { return memory.NewToolResult(id, content, false) }

func failed(id string) memory.Block { return memory.NewToolResult(id, "", true) }

func asst(blocks ...memory.Block) memory.Message { return memory.NewAssistantMessage(blocks...) }

func user(blocks ...memory.Block) memory.Message { return memory.NewUserMessage(blocks...) }

func pair(start int) windowing.Group {
	return windowing.Group{Kind: windowing.GroupPair, Start: start, End: start + 2}
}

// singles returns n consecutive singleton groups starting at index 0.
func singles(n int) []windowing.Group {
	out := make([]windowing.Group, n)
	for i := range out {
		out[i] = windowing.Group{Kind: windowing.GroupSingleton, Start: i, End: i + 1}
	}
	return out
}
