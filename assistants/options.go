package assistants

import (
	"context"
	"maps"
	"slices"

	"github.com/effective-security/auk/chatmodel"
	"github.com/effective-security/auk/encoding"
	"github.com/effective-security/auk/pkg/llms"
	"github.com/effective-security/auk/pkg/schema"
	"github.com/effective-security/auk/store"
)

// Option is a function that can be used to modify the behavior of the Assistant Config.
type Option func(*Config)

type Config struct {
	// Model is the model to use in an LLM call.
	Model    string
	modelSet bool

	// MaxTokens is the maximum number of tokens to generate to use in an LLM call.
	MaxTokens    int
	maxTokensSet bool

	// Temperature is the temperature for sampling to use in an LLM call, between 0 and 1.
	Temperature    float64
	temperatureSet bool

	// StopWords is a list of words to stop on to use in an LLM call.
	StopWords    []string
	stopWordsSet bool

	// TopP is the cumulative probability for top-p sampling in an LLM call.
	TopP    float64
	toppSet bool

	// Tools is a list of tool definitions added to the assistant tools.
	Tools    []llms.Tool
	toolsSet bool

	// ToolChoice is the choice of tool to use, it can either be "none", "auto" (the default behavior), or a specific tool as described in the ToolChoice type.
	ToolChoice    any
	toolChoiceSet bool

	// ResponseFormat is the structured output format, when supported by the provider.
	ResponseFormat *schema.ResponseFormat

	// Metadata is passed to the provider.
	Metadata map[string]any

	// StreamingFunc is a function to be called for each chunk of a streaming response.
	// Return an error to stop streaming early.
	StreamingFunc func(ctx context.Context, chunk []byte) error

	//
	// Below are the options for the Assistant, not related to LLM call
	//

	// CallbackHandler receives the assistant and tool events.
	CallbackHandler Callback

	// Store is the chat history, by default the history is not kept.
	Store store.MessageStore

	// MaxMessages limits the messages in one LLM call.
	MaxMessages int
	// MaxToolCalls limits the tool calls in one run.
	MaxToolCalls int
	// MaxLength limits the content size in bytes of one LLM call.
	MaxLength int

	PromptInput        map[string]any
	Examples           chatmodel.FewShotExamples
	Mode               encoding.Mode
	SkipMessageHistory bool
	// SkipToolHistory does not add the tool calls and responses to the history,
	// interrupted runs always keep the pending tool calls.
	SkipToolHistory bool
	// IsGeneric adds the messages as Generic role with the assistant name,
	// used when the assistant is called as a tool by another assistant.
	IsGeneric bool
}

func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		Mode:         encoding.ModeDefault,
		MaxMessages:  DefaultMaxMessages,
		MaxToolCalls: DefaultMaxToolCalls,
		MaxLength:    DefaultMaxContentSize,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Apply returns a copy of the config with the options applied.
func (c *Config) Apply(opts ...Option) *Config {
	cfg := *c
	cfg.StopWords = slices.Clone(c.StopWords)
	cfg.Tools = slices.Clone(c.Tools)
	cfg.Examples = slices.Clone(c.Examples)
	cfg.PromptInput = maps.Clone(c.PromptInput)
	cfg.Metadata = maps.Clone(c.Metadata)
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithMode is an option that allows to specify the encoding mode.
func WithMode(mode encoding.Mode) Option {
	return func(o *Config) {
		o.Mode = mode
	}
}

// WithExamples is an option that allows to specify the few-shot examples for the system prompt.
func WithExamples(examples chatmodel.FewShotExamples) Option {
	return func(o *Config) {
		o.Examples = examples
	}
}

// WithStore sets the chat history store.
func WithStore(s store.MessageStore) Option {
	return func(o *Config) {
		o.Store = s
	}
}

// WithSkipMessageHistory is an option that allows to skip adding Assistant messages to History.
func WithSkipMessageHistory(skip bool) Option {
	return func(o *Config) {
		o.SkipMessageHistory = skip
	}
}

// WithSkipToolHistory is an option that allows to skip adding tool calls to History.
func WithSkipToolHistory(skip bool) Option {
	return func(o *Config) {
		o.SkipToolHistory = skip
	}
}

// WithGeneric is an option to add the messages as Generic role.
func WithGeneric(generic bool) Option {
	return func(o *Config) {
		o.IsGeneric = generic
	}
}

// WithMaxMessages limits the messages in one LLM call.
func WithMaxMessages(maxMessages int) Option {
	return func(o *Config) {
		o.MaxMessages = maxMessages
	}
}

// WithMaxToolCalls limits the tool calls in one run.
func WithMaxToolCalls(maxToolCalls int) Option {
	return func(o *Config) {
		o.MaxToolCalls = maxToolCalls
	}
}

// WithMaxLength limits the content size of one LLM call.
func WithMaxLength(maxLength int) Option {
	return func(o *Config) {
		o.MaxLength = maxLength
	}
}

// WithPromptInput is an option that allows the user to specify the system prompt input.
func WithPromptInput(input map[string]any) Option {
	return func(o *Config) {
		o.PromptInput = input
	}
}

// WithModel is an option for LLM.Call.
func WithModel(model string) Option {
	return func(o *Config) {
		o.Model = model
		o.modelSet = true
	}
}

// WithMaxTokens is an option for LLM.Call.
func WithMaxTokens(maxTokens int) Option {
	return func(o *Config) {
		o.MaxTokens = maxTokens
		o.maxTokensSet = true
	}
}

// WithTemperature is an option for LLM.Call.
func WithTemperature(temperature float64) Option {
	return func(o *Config) {
		o.Temperature = temperature
		o.temperatureSet = true
	}
}

// WithStreamingFunc is an option for LLM.Call that allows streaming responses.
func WithStreamingFunc(streamingFunc func(ctx context.Context, chunk []byte) error) Option {
	return func(o *Config) {
		o.StreamingFunc = streamingFunc
	}
}

// WithTopP	will add an option to use top-p sampling for LLM.Call.
func WithTopP(topP float64) Option {
	return func(o *Config) {
		o.TopP = topP
		o.toppSet = true
	}
}

// WithStopWords is an option for setting the stop words for LLM.Call.
func WithStopWords(stopWords []string) Option {
	return func(o *Config) {
		o.StopWords = stopWords
		o.stopWordsSet = true
	}
}

// WithCallback allows setting a custom Callback Handler.
func WithCallback(callbackHandler Callback) Option {
	return func(o *Config) {
		o.CallbackHandler = callbackHandler
	}
}

// WithResponseFormat sets the structured output format.
func WithResponseFormat(rf *schema.ResponseFormat) Option {
	return func(o *Config) {
		o.ResponseFormat = rf
	}
}

// WithMetadata sets the metadata for LLM.Call.
func WithMetadata(metadata map[string]any) Option {
	return func(o *Config) {
		o.Metadata = metadata
	}
}

// WithTools is an option for LLM.Call, the tools with the same name are replaced.
func WithTools(list []llms.Tool) Option {
	return func(o *Config) {
		for _, t := range list {
			o.addTool(t)
		}
		o.toolsSet = true
	}
}

// WithTool is an option for LLM.Call.
func WithTool(tool llms.Tool) Option {
	return WithTools([]llms.Tool{tool})
}

// WithToolChoice is an option for LLM.Call.
func WithToolChoice(choice any) Option {
	return func(o *Config) {
		o.ToolChoice = choice
		o.toolChoiceSet = true
	}
}

func toolName(t llms.Tool) string {
	if t.Function != nil {
		return t.Function.Name
	}
	return t.Type
}

func (c *Config) addTool(t llms.Tool) {
	name := toolName(t)
	for i := range c.Tools {
		if toolName(c.Tools[i]) == name {
			c.Tools[i] = t
			return
		}
	}
	c.Tools = append(c.Tools, t)
}

// GetCallOptions returns the LLM call options of the config
func (c *Config) GetCallOptions(options ...Option) []llms.CallOption {
	cfg := c.Apply(options...)

	var opts []llms.CallOption
	if cfg.modelSet {
		opts = append(opts, llms.WithModel(cfg.Model))
	}
	if cfg.maxTokensSet {
		opts = append(opts, llms.WithMaxTokens(cfg.MaxTokens))
	}
	if cfg.temperatureSet {
		opts = append(opts, llms.WithTemperature(cfg.Temperature))
	}
	if cfg.stopWordsSet {
		opts = append(opts, llms.WithStopWords(cfg.StopWords))
	}
	if cfg.toppSet {
		opts = append(opts, llms.WithTopP(cfg.TopP))
	}
	if cfg.toolsSet {
		opts = append(opts, llms.WithTools(cfg.Tools))
	}
	if cfg.toolChoiceSet {
		opts = append(opts, llms.WithToolChoice(cfg.ToolChoice))
	}
	if cfg.ResponseFormat != nil {
		opts = append(opts, llms.WithResponseFormat(cfg.ResponseFormat))
	}
	if len(cfg.Metadata) > 0 {
		opts = append(opts, llms.WithMetadata(cfg.Metadata))
	}
	if cfg.StreamingFunc != nil {
		opts = append(opts, llms.WithStreamingFunc(cfg.StreamingFunc))
	}
	return opts
}
