package assistants

import (
	"context"
	"fmt"
	"strings"

	"github.com/effective-security/auk/hitl"
	"github.com/effective-security/auk/pkg/llms"
	"github.com/effective-security/auk/pkg/prompts"
	"github.com/effective-security/auk/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/auk", "assistants")

//go:generate mockgen -destination=../mocks/mockllms/llm_mock.gen.go -package mockllms github.com/effective-security/auk/pkg/llms Model

type IAssistant interface {
	// Name returns the name of the Assistant.
	Name() string
	// Description returns the description of the Assistant, to be used in the prompt of other Assistants or LLMs.
	// Should not exceed LLM model limit.
	Description() string
	// FormatPrompt returns the system prompt formatted with the values.
	FormatPrompt(values map[string]any) (prompts.PromptValue, error)
	GetPromptInputVariables() []string
	// Call runs the assistant, *hitl.Interrupt is returned when a tool call
	// requires a human decision.
	Call(ctx context.Context, input *CallInput) (*llms.ContentResponse, error)
}

type TypeableAssistant[O any] interface {
	IAssistant
	// Run executes the assistant and parses the final answer into optionalOutputType.
	Run(ctx context.Context, input *CallInput, optionalOutputType *O) (*llms.ContentResponse, error)
}

// CallInput is the input of an assistant call
type CallInput struct {
	// Input is the human message, it may be empty when resuming
	Input string
	// Messages are appended to the chat after the Input,
	// on resume these are the tool responses with the human decisions
	Messages []llms.Message
	// PromptInputs are the values for the system prompt template
	PromptInputs map[string]any
	// Options override the assistant config for the call
	Options []Option
}

// ProvidePromptInputsFunc returns extra values for the system prompt
type ProvidePromptInputsFunc func(ctx context.Context, input string) (map[string]any, error)

type Callback interface {
	OnAssistantStart(ctx context.Context, a IAssistant, input string)
	OnAssistantEnd(ctx context.Context, a IAssistant, input string, resp *llms.ContentResponse, messages []llms.Message)
	OnAssistantError(ctx context.Context, a IAssistant, input string, err error, messages []llms.Message)
	OnAssistantInterrupt(ctx context.Context, a IAssistant, in *hitl.Interrupt)
	OnAssistantLLMCallStart(ctx context.Context, a IAssistant, llm llms.Model, payload []llms.Message)
	OnAssistantLLMCallEnd(ctx context.Context, a IAssistant, llm llms.Model, resp *llms.ContentResponse)
	OnAssistantLLMParseError(ctx context.Context, a IAssistant, input string, response string, err error)
	OnToolStart(ctx context.Context, tool tools.ITool, assistantName, input string)
	OnToolEnd(ctx context.Context, tool tools.ITool, assistantName, input string, output string)
	OnToolError(ctx context.Context, tool tools.ITool, assistantName, input string, err error)
	OnToolNotFound(ctx context.Context, a IAssistant, tool string)
}

func GetDescriptions(list ...IAssistant) string {
	var ts strings.Builder
	for _, item := range list {
		ts.WriteString(fmt.Sprintf("- `%s`: %s\n", item.Name(), item.Description()))
	}
	return ts.String()
}

func MapAssistants(list ...IAssistant) map[string]IAssistant {
	if len(list) == 0 {
		return nil
	}
	m := make(map[string]IAssistant, len(list))
	for _, a := range list {
		m[a.Name()] = a
	}
	return m
}
