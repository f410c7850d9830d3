// Package mcp serves the AUK tools over the Model Context Protocol.
//
// A host calls the tools with tools/call. The tools configured for
// human-in-the-loop do not run: the result is the action request as JSON,
// marked with `"_meta": {"interrupt": true}`, and the host renders it
// to the human and continues the conversation with the human response.
package mcp
