package windowing

import (
	"errors"
	"fmt"

	"github.com/petasbytes/turnloop/memory"
)

// ErrNewestOverBudget means the newest group alone does not fit. Raising the
// budget or tightening tool output caps are the only remedies.
var ErrNewestOverBudget = errors.New("windowing: newest group exceeds token budget")

// Stats summarizes the result of window preparation.
//
// Fields:
//   - Total: estimated tokens for included groups only.
//   - Budget: the input token budget used.
//   - IncludedGroups: number of groups included.
//   - SkippedGroups: total groups minus IncludedGroups.
//   - OverBudgetNewest: true when the newest single group alone exceeds Budget.
//   - Exclusions: tool_use messages that could not be paired, with reason codes.
type Stats struct {
	Total            int
	Budget           int
	IncludedGroups   int
	SkippedGroups    int
	OverBudgetNewest bool
	Exclusions       []Exclusion
}

// PrepareSendWindow returns a subslice of msgs (oldest→newest) that fits within
// budget using the TokenCounter, without splitting groups.
//
// Rules:
//   - Include whole groups scanning newest→oldest while total ≤ budget.
//   - If the newest group alone exceeds budget, return an empty window and set OverBudgetNewest.
//   - If budget ≤ 0, return an empty window (OverBudgetNewest set when any groups exist).
func PrepareSendWindow(msgs []memory.Message, budget int, c TokenCounter) ([]memory.Message, Stats) {
	if len(msgs) == 0 {
		return nil, Stats{Budget: budget}
	}

	groups, excluded := groupBlocks(msgs)
	stats := Stats{Budget: budget, SkippedGroups: len(groups), Exclusions: excluded}

	if budget <= 0 {
		stats.OverBudgetNewest = len(groups) > 0
		return nil, stats
	}

	startIdx := len(groups)
	for gi := len(groups) - 1; gi >= 0; gi-- {
		cost := c.CountGroup(groups[gi], msgs)
		if stats.IncludedGroups == 0 && cost > budget {
			stats.OverBudgetNewest = true
			return nil, stats
		}
		if stats.Total+cost > budget {
			break
		}
		stats.Total += cost
		stats.IncludedGroups++
		startIdx = gi
	}
	stats.SkippedGroups = len(groups) - stats.IncludedGroups

	return msgs[groups[startIdx].Start:], stats
}

// Window is PrepareSendWindow with the heuristic counter, failing with
// ErrNewestOverBudget instead of returning an empty window.
func Window(msgs []memory.Message, budget int) ([]memory.Message, Stats, error) {
	window, stats := PrepareSendWindow(msgs, budget, HeuristicCounter{})
	if stats.OverBudgetNewest {
		return nil, stats, fmt.Errorf("%w (budget %d)", ErrNewestOverBudget, budget)
	}
	return window, stats, nil
}
