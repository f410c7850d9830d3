package assistants

import "github.com/cockroachdb/errors"

const (
	// DefaultMaxRetries is the number of LLM calls on empty response
	DefaultMaxRetries = 3
	// DefaultMaxMessages limits the messages sent to LLM in one call
	DefaultMaxMessages = 100
	// DefaultMaxToolCalls limits the tool calls in one run
	DefaultMaxToolCalls = 20
	// DefaultMaxContentSize limits the bytes sent to LLM in one call
	DefaultMaxContentSize = 1024 * 1024
	// MaxNotFoundTools is the number of consecutive calls of unknown tools
	MaxNotFoundTools = 3
)

var (
	// ErrNoToolsProvided is returned when the LLM requests a tool call but the assistant has no tools
	ErrNoToolsProvided = errors.New("no tools provided")
	// ErrToolNotFound is returned when the LLM keeps calling unknown tools
	ErrToolNotFound = errors.New("tool not found")
	// ErrMaxMessagesExceeded is returned when the chat exceeds the messages or content size limit
	ErrMaxMessagesExceeded = errors.New("the messages limit is exceeded")
	// ErrMaxToolCallsExceeded is returned when the run exceeds the tool calls limit
	ErrMaxToolCallsExceeded = errors.New("the tool calls limit is exceeded")
	// ErrEmptyResponse is returned when the LLM keeps returning no choices
	ErrEmptyResponse = errors.New("LLM returned empty response")
	// ErrInvalidFunctionCall is returned for a tool call without a function
	ErrInvalidFunctionCall = errors.New("invalid function call")
)
