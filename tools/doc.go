// Package tools defines the tool contract and the reference tool set.
//
// Includes:
//   - ToolDefinition: name, description, JSON input schema, handler.
//   - GenerateSchema[T](): derive a JSON Schema from a Go input struct.
//   - Registry: exact-name lookup, registration order preserved.
//   - File tools over a sandbox: read_file, list_files, edit_file, glob, grep.
//   - bash, backed by a persistent shell.
//
// Handlers must not share mutable state between calls and must always return;
// timeouts are the handler's own responsibility.
package tools
