package chatmodel

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

var (
	// ErrFailedUnmarshalInput is returned to the LLM when tool arguments do not match the schema.
	ErrFailedUnmarshalInput = errors.New("failed to unmarshal input: check the schema and try again")
	// ErrFailedUnmarshalOutput is returned when the LLM response does not match the output format.
	ErrFailedUnmarshalOutput = errors.New("failed to unmarshal output")
	// ErrInvalidChatContext is returned when the context has no ChatContext.
	ErrInvalidChatContext = errors.New("invalid chat context")
)

// ContentProvider is an interface for objects that can provide content
// for the chat history.
type ContentProvider interface {
	GetContent() string
}

// OutputParser is an interface for parsing the output of an LLM call.
type OutputParser[T any] interface {
	// Parse parses the output of an LLM call.
	// If the response does not match the format, it should return ErrFailedUnmarshalOutput error.
	Parse(text string) (*T, error)
	// GetFormatInstructions returns a string describing the format of the output.
	GetFormatInstructions() string
	// Type returns the string type key uniquely identifying this class of parser
	Type() string
}

type Stringer interface {
	String() string
}

// Stringify returns the text form of the value for the chat history.
func Stringify(s any) string {
	if v, ok := s.(Stringer); ok {
		return v.String()
	}
	if v, ok := s.(ContentProvider); ok {
		return v.GetContent()
	}
	if v, ok := s.(string); ok {
		return v
	}
	bs, _ := json.Marshal(s)
	return string(bs)
}

// FewShotExample is a prompt and completion pair added to the chat before the input
type FewShotExample struct {
	Prompt     string `json:"prompt" yaml:"prompt"`
	Completion string `json:"completion" yaml:"completion"`
}

type FewShotExamples []FewShotExample
