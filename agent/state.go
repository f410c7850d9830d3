package agent

import (
	"github.com/effective-security/auk/hitl"
	"github.com/effective-security/auk/pkg/llms"
)

// State flows through the agent graph
type State struct {
	ChatID string `json:"chatId" yaml:"chat_id"`
	// Input is the human message of the turn, it is empty on resume
	Input string `json:"input,omitempty" yaml:"input,omitempty"`
	// Messages are passed to the assistant after the Input,
	// on resume these are the tool results of the human decisions.
	// After the turn these are the messages produced by the run.
	Messages []llms.Message `json:"messages,omitempty" yaml:"-"`
	// Output is the final answer of the turn
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
	// Interrupt is set when the turn waits for human decisions
	Interrupt *hitl.Interrupt `json:"interrupt,omitempty" yaml:"interrupt,omitempty"`
}

// Interrupted returns true if the turn waits for human decisions
func (s *State) Interrupted() bool {
	return s != nil && s.Interrupt != nil
}
