package windowing

import "github.com/petasbytes/turnloop/memory"

// GroupKind denotes the atomic unit type when preparing a send window.
type GroupKind int

const (
	GroupSingleton GroupKind = iota
	GroupPair
)

// Group describes a contiguous span of messages [Start, End) in the original slice.
type Group struct {
	Kind  GroupKind
	Start int // inclusive
	End   int // exclusive
}

// Exclusion records why an assistant tool_use message could not be paired.
type Exclusion struct {
	Index  int
	Reason string
}

// GroupBlocks groups messages into atomic units that preserve tool-use pairs.
// Invariants:
//   - A pair is exactly two adjacent messages: assistant(tool_use+...) then user(tool_result...).
//   - In the user message, all tool_result blocks come first; text (if any) comes after.
//   - Every tool_use id in the assistant message appears among the leading
//     tool_result ids of the next user message, and no result id is extra.
//   - tool_result blocks with is_error=true are treated the same for grouping.
func GroupBlocks(msgs []memory.Message) []Group {
	groups, _ := groupBlocks(msgs)
	return groups
}

func groupBlocks(msgs []memory.Message) ([]Group, []Exclusion) {
	groups := make([]Group, 0, len(msgs))
	var excluded []Exclusion
	for i := 0; i < len(msgs); {
		m := msgs[i]
		if m.Role == memory.RoleAssistant {
			useIDs := collectToolUseIDs(m)
			if len(useIDs) > 0 {
				reason := pairReason(msgs, i, useIDs)
				if reason == "" {
					groups = append(groups, Group{Kind: GroupPair, Start: i, End: i + 2})
					i += 2
					continue
				}
				excluded = append(excluded, Exclusion{Index: i, Reason: reason})
			}
		}
		groups = append(groups, Group{Kind: GroupSingleton, Start: i, End: i + 1})
		i++
	}
	return groups, excluded
}

// pairReason returns "" when msgs[i] and msgs[i+1] form a valid pair, or a
// reason code otherwise.
func pairReason(msgs []memory.Message, i int, useIDs map[string]struct{}) string {
	if i+1 >= len(msgs) || msgs[i+1].Role != memory.RoleUser {
		return "not_followed_by_user"
	}
	valid, resultIDs := leadingToolResultIDs(msgs[i+1])
	switch {
	case !valid:
		return "ordering_invalid"
	case !coversAll(resultIDs, useIDs):
		return "missing_results"
	case !coversAll(useIDs, resultIDs):
		return "extra_results"
	}
	return ""
}

func collectToolUseIDs(m memory.Message) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, b := range m.Content {
		if b.Type == memory.BlockToolUse && b.ID != "" {
			ids[b.ID] = struct{}{}
		}
	}
	return ids
}

// leadingToolResultIDs returns the ids of the leading tool_result segment of
// a user message. valid is false when a tool_result follows any other block.
func leadingToolResultIDs(m memory.Message) (valid bool, resultIDs map[string]struct{}) {
	resultIDs = make(map[string]struct{})
	seenNonResult := false
	for _, b := range m.Content {
		if b.Type == memory.BlockToolResult {
			if seenNonResult {
				return false, resultIDs
			}
			if b.ToolUseID != "" {
				resultIDs[b.ToolUseID] = struct{}{}
			}
			continue
		}
		seenNonResult = true
	}
	return true, resultIDs
}

// coversAll checks that every id in required is present in have.
func coversAll(have, required map[string]struct{}) bool {
	for id := range required {
		if _, ok := have[id]; !ok {
			return false
		}
	}
	return true
}
