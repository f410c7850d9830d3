// Package tools defines the Tool interface for LLM agents: name, description,
// parameters schema and the call entry point. Func builds a typed tool from a
// request struct and a run function, and InterruptOnConfig declares which
// tools need a human decision before their result is accepted.
package tools
