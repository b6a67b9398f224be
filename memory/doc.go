// Package memory holds the in-process conversation model.
//
// Model:
//   - Message: role (user | assistant) plus an ordered list of content blocks.
//   - Block: tagged variant of text, tool_use and tool_result.
//   - History: append-only; owned by a single writer for the lifetime of a run.
//
// Nothing here is written to disk. History is discarded when the run ends.
package memory
