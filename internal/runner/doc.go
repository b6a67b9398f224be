// Package runner drives a conversation: it sends the history to the model,
// dispatches any tool uses the reply contains, and loops until the model
// answers without tools.
//
// Invariants:
//   - history is append-only and owned by the single goroutine running Run
//   - every tool_use in a model reply is answered by exactly one tool_result,
//     and all results of one reply are merged into one user message in
//     invocation order before the next request
//   - a failed tool never aborts the loop; a failed completion always does
//
// Flow:
//
//	user(text) -> assistant(tool_use...) -> user(tool_result...) -> assistant(text)
package runner
