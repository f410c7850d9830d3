package llms

import (
	"context"

	"github.com/effective-security/auk/pkg/schema"
	"github.com/invopop/jsonschema"
)

// CallOption is a function that configures a CallOptions.
type CallOption func(*CallOptions)

// CallOptions of a single GenerateContent call, zero values are left to the provider.
type CallOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
	StopWords   []string
	// StreamingFunc receives the content deltas, an error stops the stream
	StreamingFunc func(ctx context.Context, chunk []byte) error

	// Tools offered to the model, the HITL tools included
	Tools []Tool
	// ToolChoice is "none", "auto" or a *ToolChoice naming one function
	ToolChoice any

	// Metadata is passed to the provider as is
	Metadata map[string]any

	// ResponseFormat requests structured output, nil means plain text
	ResponseFormat *schema.ResponseFormat
}

// Tool offered to the model, Type is always "function"
type Tool struct {
	Type     string              `json:"type"`
	Function *FunctionDefinition `json:"function,omitempty"`
}

// FunctionDefinition describes a tool to the model
type FunctionDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
	// Strict requests schema-exact arguments, OpenAI only
	Strict bool `json:"strict,omitempty"`
}

// ToolChoice forces the model to call the named function
type ToolChoice struct {
	Type     string             `json:"type"`
	Function *FunctionReference `json:"function,omitempty"`
}

type FunctionReference struct {
	Name string `json:"name"`
}

// ForceTool returns the ToolChoice calling the named function
func ForceTool(name string) *ToolChoice {
	return &ToolChoice{Type: "function", Function: &FunctionReference{Name: name}}
}

// WithModel specifies which model name to use.
func WithModel(model string) CallOption {
	return func(o *CallOptions) {
		o.Model = model
	}
}

// WithMaxTokens specifies the max number of tokens to generate.
func WithMaxTokens(maxTokens int) CallOption {
	return func(o *CallOptions) {
		o.MaxTokens = maxTokens
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) CallOption {
	return func(o *CallOptions) {
		o.Temperature = temperature
	}
}

// WithStopWords specifies a list of words to stop generation on.
func WithStopWords(stopWords []string) CallOption {
	return func(o *CallOptions) {
		o.StopWords = stopWords
	}
}

// WithStreamingFunc specifies the streaming function to use.
func WithStreamingFunc(streamingFunc func(ctx context.Context, chunk []byte) error) CallOption {
	return func(o *CallOptions) {
		o.StreamingFunc = streamingFunc
	}
}

// WithTopP sets the nucleus sampling probability.
func WithTopP(topP float64) CallOption {
	return func(o *CallOptions) {
		o.TopP = topP
	}
}

// WithToolChoice sets "none", "auto" or a *ToolChoice.
func WithToolChoice(choice any) CallOption {
	return func(o *CallOptions) {
		o.ToolChoice = choice
	}
}

// WithTools sets the tools offered to the model.
func WithTools(tools []Tool) CallOption {
	return func(o *CallOptions) {
		o.Tools = tools
	}
}

// WithMetadata sets the provider specific metadata.
func WithMetadata(metadata map[string]any) CallOption {
	return func(o *CallOptions) {
		o.Metadata = metadata
	}
}

// WithResponseFormat requests structured output.
func WithResponseFormat(responseFormat *schema.ResponseFormat) CallOption {
	return func(o *CallOptions) {
		o.ResponseFormat = responseFormat
	}
}

// NewCallOptions applies the options over the defaults.
func NewCallOptions(options ...CallOption) *CallOptions {
	opts := &CallOptions{}
	for _, opt := range options {
		opt(opts)
	}
	return opts
}
