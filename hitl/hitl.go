// Package hitl pauses the agent on configured tool calls until a human
// decides how to proceed, and turns the decisions into tool results.
package hitl

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auk/pkg/llms"
	"github.com/effective-security/auk/tools"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/auk", "hitl")

var (
	// ErrDecisionNotAllowed is returned when the decision type is not allowed for the tool
	ErrDecisionNotAllowed = errors.New("decision type is not allowed")
	// ErrDecisionMismatch is returned when decisions do not match the action requests
	ErrDecisionMismatch = errors.New("decisions do not match the action requests")
	// ErrInterruptNotFound is returned when there is no pending interrupt
	ErrInterruptNotFound = errors.New("interrupt not found")
)

// RejectedPrefix starts the tool result of a rejected call
const RejectedPrefix = "rejected by user: "

// Decision is the human decision on an action request
type Decision struct {
	Type    tools.DecisionType `json:"type" yaml:"type"`
	Message string             `json:"message,omitempty" yaml:"message,omitempty"`
	// EditedArgs replace the tool arguments for the edit decision
	EditedArgs map[string]any `json:"editedArgs,omitempty" yaml:"edited_args,omitempty"`
}

// Respond returns the respond decision
func Respond(message string) Decision {
	return Decision{Type: tools.DecisionRespond, Message: message}
}

// Approve returns the approve decision
func Approve() Decision {
	return Decision{Type: tools.DecisionApprove}
}

// Edit returns the edit decision
func Edit(args map[string]any) Decision {
	return Decision{Type: tools.DecisionEdit, EditedArgs: args}
}

// Reject returns the reject decision
func Reject(message string) Decision {
	return Decision{Type: tools.DecisionReject, Message: message}
}

// ActionRequest is a tool call waiting for a human decision
type ActionRequest struct {
	ID               string               `json:"id" yaml:"id"`
	ToolCallID       string               `json:"toolCallId" yaml:"tool_call_id"`
	Name             string               `json:"name" yaml:"name"`
	Args             json.RawMessage      `json:"args" yaml:"-"`
	Description      string               `json:"description" yaml:"description"`
	AllowedDecisions []tools.DecisionType `json:"allowedDecisions" yaml:"allowed_decisions"`
}

// Input returns the tool input of the request
func (r *ActionRequest) Input() string {
	var s string
	if json.Unmarshal(r.Args, &s) == nil {
		return s
	}
	return string(r.Args)
}

// Allows returns true if the decision type is allowed
func (r *ActionRequest) Allows(d tools.DecisionType) bool {
	return tools.InterruptOnConfig{AllowedDecisions: r.AllowedDecisions}.Allows(d)
}

// InterruptRequired is returned by a guarded tool,
// the runtime collects the requests into Interrupt
type InterruptRequired struct {
	Request ActionRequest
}

func (e *InterruptRequired) Error() string {
	return fmt.Sprintf("tool %s requires a human decision", e.Request.Name)
}

// Interrupt is returned when the run is paused for human decisions
type Interrupt struct {
	ID       string          `json:"id" yaml:"id"`
	ChatID   string          `json:"chatId" yaml:"chat_id"`
	Requests []ActionRequest `json:"actionRequests" yaml:"action_requests"`
	// Messages produced by the run before the pause
	// that are not persisted in the chat history
	Messages []llms.Message `json:"-" yaml:"-"`
}

// NewInterrupt returns the interrupt with a new ID
func NewInterrupt(chatID string, requests ...ActionRequest) *Interrupt {
	return &Interrupt{
		ID:       uuid.NewString(),
		ChatID:   chatID,
		Requests: requests,
	}
}

func (i *Interrupt) Error() string {
	return fmt.Sprintf("interrupted: %d action(s) pending human decision", len(i.Requests))
}

// AsInterrupt returns the interrupt from the error chain
func AsInterrupt(err error) (*Interrupt, bool) {
	var in *Interrupt
	if errors.As(err, &in) {
		return in, true
	}
	return nil, false
}

// Checkpoint is the persisted pending interrupt
type Checkpoint struct {
	Interrupt *Interrupt     `json:"interrupt"`
	Messages  []llms.Message `json:"messages,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// NewCheckpoint returns the checkpoint for the interrupt
func NewCheckpoint(in *Interrupt) *Checkpoint {
	return &Checkpoint{
		Interrupt: in,
		Messages:  in.Messages,
		CreatedAt: time.Now().UTC(),
	}
}

// Restore returns the interrupt with the pending messages
func (c *Checkpoint) Restore() *Interrupt {
	in := *c.Interrupt
	in.Messages = c.Messages
	return &in
}
