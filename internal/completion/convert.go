package completion

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/petasbytes/turnloop/memory"
)

func toMessageParams(msgs []memory.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageParam(m))
	}
	return out
}

func toMessageParam(m memory.Message) anthropic.MessageParam {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Content))
	for _, b := range m.Content {
		switch b.Type {
		case memory.BlockText:
			// Empty text blocks are rejected by the API.
			if b.Text == "" {
				continue
			}
			blocks = append(blocks, anthropic.NewTextBlock(b.Text))
		case memory.BlockToolUse:
			input := b.Input
			if len(input) == 0 {
				input = json.RawMessage(`{}`)
			}
			blocks = append(blocks, anthropic.ContentBlockParamUnion{OfToolUse: &anthropic.ToolUseBlockParam{
				ID:    b.ID,
				Name:  b.Name,
				Input: input,
			}})
		case memory.BlockToolResult:
			blocks = append(blocks, toolResult(b))
		}
	}
	if m.Role == memory.RoleAssistant {
		return anthropic.NewAssistantMessage(blocks...)
	}
	return anthropic.NewUserMessage(blocks...)
}

// toolResult omits content entirely when there is none: a result still has
// to answer its tool_use, but an empty text block would fail the request.
func toolResult(b memory.Block) anthropic.ContentBlockParamUnion {
	if b.Content == "" {
		return anthropic.ContentBlockParamUnion{OfToolResult: &anthropic.ToolResultBlockParam{
			ToolUseID: b.ToolUseID,
			IsError:   anthropic.Bool(b.IsError),
		}}
	}
	return anthropic.NewToolResultBlock(b.ToolUseID, b.Content, b.IsError)
}
