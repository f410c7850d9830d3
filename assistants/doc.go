// Package assistants provides the tool-calling runtime for LLM agents.
// An Assistant sends the chat to the model, executes the requested tools in parallel,
// and stops with *hitl.Interrupt when a tool call requires a human decision.
package assistants
