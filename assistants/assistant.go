package assistants

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auk/chatmodel"
	"github.com/effective-security/auk/encoding"
	"github.com/effective-security/auk/hitl"
	"github.com/effective-security/auk/pkg/llms"
	"github.com/effective-security/auk/pkg/llmutils"
	"github.com/effective-security/auk/pkg/metricskey"
	"github.com/effective-security/auk/pkg/prompts"
	"github.com/effective-security/auk/pkg/schema"
	"github.com/effective-security/auk/tools"
	xslices "github.com/effective-security/x/slices"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
)

// Assistant is the chat assistant.
// It manages the history, builds the system prompt,
// and runs the tool calls requested by the language model.
type Assistant[O any] struct {
	LLM          llms.Model
	OutputParser chatmodel.OutputParser[O]

	toolsByName map[string]tools.ITool
	toolsNames  []string
	tools       []tools.ITool
	llmToolDefs []llms.Tool

	cfg         *Config
	name        string
	description string
	sysprompt   prompts.FormatPrompter
	onPrompt    ProvidePromptInputsFunc
	inputParser func(string) (string, error)

	lock        sync.Mutex
	runMessages []llms.Message
}

var _ TypeableAssistant[chatmodel.String] = (*Assistant[chatmodel.String])(nil)

// NewAssistant returns a new Assistant
func NewAssistant[O any](
	llmModel llms.Model,
	sysprompt prompts.FormatPrompter,
	options ...Option) *Assistant[O] {
	ret := &Assistant[O]{
		cfg:         NewConfig(options...),
		LLM:         llmModel,
		sysprompt:   sysprompt,
		name:        "Generic Assistant",
		description: "An AI assistant that can perform various tasks.",
	}

	var output O
	parser, err := encoding.NewTypedOutputParser(output, ret.cfg.Mode)
	if err != nil {
		logger.KV(xlog.ERROR,
			"status", "failed_to_create_output_parser",
			"mode", ret.cfg.Mode,
			"err", err.Error(),
		)
	} else {
		ret.OutputParser = parser
	}

	prov := llmModel.GetProviderType()
	strict := ret.cfg.Mode == encoding.ModeJSONSchemaStrict && prov.Supports(llms.CapabilityJSONSchemaStrict)
	jsonSchema := (ret.cfg.Mode == encoding.ModeJSONSchema || ret.cfg.Mode == encoding.ModeJSONSchemaStrict) &&
		prov.Supports(llms.CapabilityJSONSchema)
	if jsonSchema && ret.cfg.ResponseFormat == nil {
		rf, err := schema.NewResponseFormat(reflect.TypeOf(output), strict)
		if err != nil {
			logger.KV(xlog.ERROR,
				"status", "failed_to_create_response_format",
				"err", err.Error(),
			)
		}
		ret.cfg.ResponseFormat = rf
	}

	return ret
}

// WithOutputParser sets the output parser.
func (a *Assistant[O]) WithOutputParser(outputParser chatmodel.OutputParser[O]) *Assistant[O] {
	a.OutputParser = outputParser
	return a
}

// WithInputParser sets the input parser for the Assistant.
func (a *Assistant[O]) WithInputParser(inputParser func(string) (string, error)) *Assistant[O] {
	a.inputParser = inputParser
	return a
}

// WithPromptInputProvider sets the callback to provide extra values for the system prompt.
func (a *Assistant[O]) WithPromptInputProvider(cb ProvidePromptInputsFunc) *Assistant[O] {
	a.onPrompt = cb
	return a
}

// GetCallConfig returns a copy of the config with the options applied.
func (a *Assistant[O]) GetCallConfig(opts ...Option) *Config {
	return a.cfg.Apply(opts...)
}

// WithName sets the name of the Assistant, when used in a prompt of another Assistants or LLMs.
func (a *Assistant[O]) WithName(name string) *Assistant[O] {
	a.name = name
	return a
}

// WithDescription sets the description of the Assistant, to be used in the prompt of other Assistants or LLMs.
func (a *Assistant[O]) WithDescription(description string) *Assistant[O] {
	a.description = description
	return a
}

func (a *Assistant[O]) Name() string {
	return a.name
}

func (a *Assistant[O]) Description() string {
	return a.description
}

func (a *Assistant[O]) GetTools() []tools.ITool {
	return a.tools
}

// WithTools adds new tools to the Assistant,
// existing tools are not replaced.
func (a *Assistant[O]) WithTools(list ...tools.ITool) *Assistant[O] {
	if a.toolsByName == nil {
		a.toolsByName = make(map[string]tools.ITool)
	}
	for _, tool := range list {
		name := tool.Name()
		// use lowercase for the key
		key := strings.ToLower(name)
		if a.toolsByName[key] != nil {
			continue
		}
		a.toolsByName[key] = tool
		a.toolsNames = append(a.toolsNames, name)
		a.tools = append(a.tools, tool)
		a.llmToolDefs = append(a.llmToolDefs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        name,
				Description: tool.Description(),
				Parameters:  parameters(tool),
			},
		})
	}
	return a
}

func parameters(tool tools.ITool) *jsonschema.Schema {
	switch p := tool.Parameters().(type) {
	case *jsonschema.Schema:
		return p
	case nil:
		return nil
	default:
		sc, err := schema.FromAny(p)
		if err != nil {
			logger.KV(xlog.ERROR,
				"status", "invalid_tool_parameters",
				"tool", tool.Name(),
				"err", err.Error(),
			)
			return nil
		}
		return sc
	}
}

// LastRunMessages returns the messages of the last run, that are added to the history
func (a *Assistant[O]) LastRunMessages() []llms.Message {
	a.lock.Lock()
	defer a.lock.Unlock()
	return slices.Clone(a.runMessages)
}

func (a *Assistant[O]) FormatPrompt(promptInputs map[string]any) (prompts.PromptValue, error) {
	inputs := maps.Clone(a.cfg.PromptInput)
	if inputs == nil {
		inputs = map[string]any{}
	}
	maps.Copy(inputs, promptInputs)
	return a.sysprompt.FormatPrompt(inputs)
}

func (a *Assistant[O]) GetPromptInputVariables() []string {
	return a.sysprompt.GetInputVariables()
}

// GetSystemPrompt generates the system prompt for the Assistant.
func (a *Assistant[O]) GetSystemPrompt(ctx context.Context, cfg *Config, input string, promptInputs map[string]any) (string, error) {
	inputs := maps.Clone(cfg.PromptInput)
	if inputs == nil {
		inputs = map[string]any{}
	}
	maps.Copy(inputs, promptInputs)

	if a.onPrompt != nil {
		extra, err := a.onPrompt(ctx, input)
		if err != nil {
			return "", errors.WithMessage(err, "failed to get prompt inputs")
		}
		maps.Copy(inputs, extra)
	}

	promptValue, err := a.sysprompt.FormatPrompt(inputs)
	if err != nil {
		return "", err
	}

	systemPrompt := strings.TrimRight(promptValue.String(), "\n")

	if cfg.ResponseFormat == nil && a.OutputParser != nil {
		// the provider has no structured output, the schema goes to the prompt
		outputSchema := strings.TrimRight(a.OutputParser.GetFormatInstructions(), "\n")
		if outputSchema != "" {
			systemPrompt = fmt.Sprintf("%s\n\n# OUTPUT SCHEMA\n%s", systemPrompt, outputSchema)
		}
	}
	return systemPrompt, nil
}

func (a *Assistant[O]) Call(ctx context.Context, input *CallInput) (*llms.ContentResponse, error) {
	var output O
	return a.Run(ctx, input, &output)
}

func (a *Assistant[O]) Run(ctx context.Context, input *CallInput, optionalOutputType *O) (*llms.ContentResponse, error) {
	started := time.Now()
	defer metricskey.PerfAssistantCall.MeasureSince(started, a.Name())

	cfg := a.GetCallConfig(input.Options...)

	callback := cfg.CallbackHandler
	if callback != nil {
		callback.OnAssistantStart(ctx, a, input.Input)
	}

	resp, messages, err := a.run(ctx, cfg, input, optionalOutputType)
	if err != nil {
		if in, ok := hitl.AsInterrupt(err); ok {
			if callback != nil {
				callback.OnAssistantInterrupt(ctx, a, in)
			}
			return nil, err
		}
		metricskey.StatsAssistantCallsFailed.IncrCounter(1, a.Name())
		if callback != nil {
			callback.OnAssistantError(ctx, a, input.Input, err, messages)
		}
		return nil, err
	}
	metricskey.StatsAssistantCallsSucceeded.IncrCounter(1, a.Name())
	if callback != nil {
		callback.OnAssistantEnd(ctx, a, input.Input, resp, messages)
	}
	return resp, nil
}

// run is the tool-calling loop, it returns the response and the messages sent to LLM
func (a *Assistant[O]) run(ctx context.Context, cfg *Config, input *CallInput, optionalOutputType *O) (*llms.ContentResponse, []llms.Message, error) {
	_, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, nil, err
	}
	assistantName := a.Name()

	systemPrompt, err := a.GetSystemPrompt(ctx, cfg, input.Input, input.PromptInputs)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "failed to format system prompt")
	}

	r := &runState{
		history: []llms.Message{
			llms.MessageFromTextParts(llms.RoleSystem, systemPrompt),
		},
	}
	for _, example := range cfg.Examples {
		r.history = append(r.history,
			llms.MessageFromTextParts(llms.RoleHuman, example.Prompt),
			llms.MessageFromTextParts(llms.RoleAI, example.Completion),
		)
	}
	if cfg.Store != nil {
		prevMessages := cfg.Store.Messages(ctx)
		logger.ContextKV(ctx, xlog.DEBUG,
			"assistant", assistantName,
			"chat_id", chatID,
			"message_history", len(prevMessages))
		r.history = append(r.history, prevMessages...)
	}
	// the messages after this index are produced by the run
	r.base = len(r.history)

	parsedInput := input.Input
	if parsedInput != "" {
		if a.inputParser != nil {
			parsedInput, err = a.inputParser(parsedInput)
			if err != nil {
				return nil, r.history, errors.WithMessage(err, "failed to parse input")
			}
		}

		userMessage := llms.MessageFromTextParts(llms.RoleHuman, parsedInput)
		r.history = append(r.history, userMessage)
		if cfg.IsGeneric {
			r.run = append(r.run, llms.MessageFromTextParts(llms.RoleGeneric, fmt.Sprintf("[%s] question: %s", assistantName, parsedInput)))
		} else {
			r.run = append(r.run, userMessage)
		}
	}

	if len(input.Messages) > 0 {
		r.history = append(r.history, input.Messages...)
		r.run = append(r.run, input.Messages...)
	}

	var callOpts []Option
	if len(a.llmToolDefs) > 0 {
		if !a.LLM.GetProviderType().Supports(llms.CapabilityFunctionCalling) {
			return nil, r.history, errors.Newf("assistant %s: the LLM does not support function calling", assistantName)
		}
		callOpts = append(callOpts, WithTools(a.llmToolDefs))
	}
	llmOpts := cfg.GetCallOptions(callOpts...)

	modelName := a.LLM.GetName()
	maxMessages := values.NumbersCoalesce(cfg.MaxMessages, DefaultMaxMessages)
	bytesLimit := uint64(values.NumbersCoalesce(cfg.MaxLength, DefaultMaxContentSize))
	toolsLimit := values.NumbersCoalesce(cfg.MaxToolCalls, DefaultMaxToolCalls)

	var resp *llms.ContentResponse
	var totalToolExecuted, retryCount, consecutiveNotFound int
	for {
		if len(r.history) >= maxMessages {
			return nil, r.history, errors.WithMessagef(ErrMaxMessagesExceeded, "assistant %s", assistantName)
		}
		bytesSent := llmutils.CountMessagesContentSize(r.history)
		if bytesSent > bytesLimit {
			return nil, r.history, errors.WithMessagef(ErrMaxMessagesExceeded, "assistant %s: content size %d", assistantName, bytesSent)
		}

		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnAssistantLLMCallStart(ctx, a, a.LLM, r.history)
		}

		metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(r.history)), assistantName, modelName)
		metricskey.StatsLLMBytesSent.IncrCounter(float64(bytesSent), assistantName, modelName)

		resp, err = a.LLM.GenerateContent(ctx, r.history, llmOpts...)
		if err != nil {
			return nil, r.history, errors.Wrapf(err, "failed to generate content from LLM")
		}

		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnAssistantLLMCallEnd(ctx, a, a.LLM, resp)
		}

		metricskey.StatsLLMBytesReceived.IncrCounter(float64(llmutils.CountResponseContentSize(resp)), assistantName, modelName)
		tokensIn, tokensOut, _ := llmutils.CountTokens(resp)
		metricskey.StatsLLMInputTokens.IncrCounter(float64(tokensIn), assistantName, modelName)
		metricskey.StatsLLMOutputTokens.IncrCounter(float64(tokensOut), assistantName, modelName)

		if len(resp.Choices) == 0 {
			retryCount++
			if retryCount >= DefaultMaxRetries {
				logger.ContextKV(ctx, xlog.ERROR,
					"assistant", assistantName,
					"status", "max_retries_exceeded",
					"input", xslices.StringUpto(parsedInput, 64),
					"retry_count", retryCount,
				)
				return nil, r.history, errors.WithMessagef(ErrEmptyResponse, "assistant %s: after %d retries", assistantName, retryCount)
			}
			logger.ContextKV(ctx, xlog.WARNING,
				"assistant", assistantName,
				"status", "retrying_empty_response",
				"retry_count", retryCount,
			)
			continue
		}

		executed, notFound, err := a.executeToolCalls(ctx, cfg, r, resp)
		if err != nil {
			return nil, r.history, err
		}
		if executed == 0 {
			break
		}

		if notFound > 0 {
			consecutiveNotFound += notFound
		} else {
			consecutiveNotFound = 0
		}
		if consecutiveNotFound > MaxNotFoundTools {
			return nil, r.history, errors.WithMessagef(ErrToolNotFound, "assistant %s: the number of not found tools is exceeded", assistantName)
		}

		if len(r.interrupts) > 0 {
			in := hitl.NewInterrupt(chatID, r.interrupts...)
			pending := slices.Clone(r.history[r.base:])
			if cfg.Store != nil {
				if err = cfg.Store.Add(ctx, pending...); err != nil {
					return nil, r.history, errors.WithMessage(err, "failed to save pending tool calls")
				}
			} else {
				in.Messages = pending
			}
			a.setRunMessages(pending)

			logger.ContextKV(ctx, xlog.DEBUG,
				"assistant", assistantName,
				"chat_id", chatID,
				"status", "interrupted",
				"interrupt_id", in.ID,
				"requests", len(in.Requests),
			)
			return nil, r.history, in
		}

		totalToolExecuted += executed
		if totalToolExecuted >= toolsLimit {
			return nil, r.history, errors.WithMessagef(ErrMaxToolCallsExceeded, "assistant %s", assistantName)
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"assistant", assistantName,
		"status", "response_analysis",
		"choices_count", len(resp.Choices),
		"tool_calls", totalToolExecuted,
	)

	result := resp.Choices[0].Content
	if len(resp.Choices) > 1 {
		var combined strings.Builder
		for i, choice := range resp.Choices {
			if i > 0 {
				combined.WriteString("\n\n")
			}
			combined.WriteString(choice.Content)
		}
		result = combined.String()
	}

	if optionalOutputType != nil && a.OutputParser != nil {
		finalOutput, err := a.OutputParser.Parse(result)
		if err != nil {
			logger.ContextKV(ctx, xlog.DEBUG,
				"assistant", assistantName,
				"status", "failed_to_parse_llm_response",
				"err", err.Error(),
				"output_parser", a.OutputParser.Type(),
				"result", xslices.StringUpto(result, 256),
			)
			if cfg.CallbackHandler != nil {
				cfg.CallbackHandler.OnAssistantLLMParseError(ctx, a, input.Input, result, err)
			}
			return nil, r.history, err
		}
		*optionalOutputType = *finalOutput

		if prov, ok := any(finalOutput).(chatmodel.ContentProvider); ok {
			result = prov.GetContent()
		}
	}

	r.history = append(r.history, llms.MessageFromTextParts(llms.RoleAI, result))
	if cfg.IsGeneric {
		r.run = append(r.run, llms.MessageFromTextParts(llms.RoleGeneric, fmt.Sprintf("[%s] observation: %s", assistantName, result)))
	} else {
		r.run = append(r.run, llms.MessageFromTextParts(llms.RoleAI, result))
	}
	a.setRunMessages(r.run)

	if cfg.Store != nil && !cfg.SkipMessageHistory && len(r.run) > 0 {
		if err = cfg.Store.Add(ctx, r.run...); err != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"assistant", assistantName,
				"chat_id", chatID,
				"status", "failed_to_add_message_history",
				"err", err.Error(),
			)
		} else {
			logger.ContextKV(ctx, xlog.DEBUG,
				"assistant", assistantName,
				"chat_id", chatID,
				"status", "added_message_history",
				"message_history", len(r.run),
				"human", xslices.StringUpto(parsedInput, 64),
				"ai", xslices.StringUpto(result, 64),
			)
		}
	}

	return resp, r.history, nil
}

func (a *Assistant[O]) setRunMessages(msgs []llms.Message) {
	a.lock.Lock()
	a.runMessages = msgs
	a.lock.Unlock()
}

type runState struct {
	// history is sent to LLM
	history []llms.Message
	// base is the index of the first message of the run in history
	base int
	// run is added to the store when the run completes
	run []llms.Message
	// interrupts are the pending human decisions
	interrupts []hitl.ActionRequest
}

type toolCallResult struct {
	toolCall  llms.ToolCall
	response  string
	notFound  bool
	interrupt *hitl.ActionRequest
}

// executeToolCalls executes the tool calls of the response in parallel
// and appends the calls and the responses to the history.
// It returns the number of tool calls and the number of unknown tools.
func (a *Assistant[O]) executeToolCalls(ctx context.Context, cfg *Config, r *runState, resp *llms.ContentResponse) (int, int, error) {
	var toolCalls []llms.ToolCall

	for _, choice := range resp.Choices {
		var choiceToolCalls []llms.ToolCall
		for i, toolCall := range choice.ToolCalls {
			if toolCall.FunctionCall == nil {
				return 0, 0, errors.WithMessagef(ErrInvalidFunctionCall, "assistant %s: tool call %q", a.name, toolCall.ID)
			}
			if toolCall.ID == "" {
				toolCall.ID = fmt.Sprintf("%s_%d", toolCall.FunctionCall.Name, i)
			}
			toolCall.Type = values.StringsCoalesce(toolCall.Type, "function")
			choiceToolCalls = append(choiceToolCalls, toolCall)

			logger.ContextKV(ctx, xlog.DEBUG,
				"assistant", a.name,
				"status", "tool_call_found",
				"tool_call_id", toolCall.ID,
				"tool_call_name", toolCall.FunctionCall.Name,
			)
		}
		if len(choiceToolCalls) == 0 {
			continue
		}

		toolCalls = append(toolCalls, choiceToolCalls...)
		msg := llms.MessageFromToolCalls(llms.RoleAI, choiceToolCalls...)
		r.history = append(r.history, msg)
		if !cfg.SkipMessageHistory && !cfg.SkipToolHistory {
			r.run = append(r.run, msg)
		}
	}

	if len(toolCalls) == 0 {
		return 0, 0, nil
	}
	if len(a.tools) == 0 {
		return 0, 0, errors.WithMessagef(ErrNoToolsProvided, "assistant %s", a.name)
	}

	results := make([]toolCallResult, len(toolCalls))
	var wg sync.WaitGroup
	for i, tc := range toolCalls {
		wg.Add(1)
		go func(index int, tc llms.ToolCall) {
			defer wg.Done()
			results[index] = a.callTool(ctx, cfg, tc)
		}(i, tc)
	}
	wg.Wait()

	notFound := 0
	for _, result := range results {
		if result.notFound {
			notFound++
		}
		if result.interrupt != nil {
			r.interrupts = append(r.interrupts, *result.interrupt)
			continue
		}

		msg := llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: result.toolCall.ID,
			Name:       result.toolCall.FunctionCall.Name,
			Content:    result.response,
		})

		logger.ContextKV(ctx, xlog.DEBUG,
			"assistant", a.name,
			"status", "tool_call_response",
			"tool_call_id", result.toolCall.ID,
			"tool_name", result.toolCall.FunctionCall.Name,
			"content_length", len(result.response),
		)

		r.history = append(r.history, msg)
		if !cfg.SkipMessageHistory && !cfg.SkipToolHistory {
			r.run = append(r.run, msg)
		}
	}

	return len(toolCalls), notFound, nil
}

func (a *Assistant[O]) callTool(ctx context.Context, cfg *Config, tc llms.ToolCall) toolCallResult {
	toolName := tc.FunctionCall.Name
	toolArgs := tc.FunctionCall.Arguments

	tool := a.toolsByName[strings.ToLower(toolName)]
	if tool == nil {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, toolName)
		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnToolNotFound(ctx, a, toolName)
		}

		availableTools := strings.Join(a.toolsNames, ", ")
		logger.ContextKV(ctx, xlog.WARNING,
			"assistant", a.name,
			"status", "tool_not_found",
			"tool_name", toolName,
			"available_tools", availableTools,
		)
		return toolCallResult{
			toolCall: tc,
			notFound: true,
			response: fmt.Sprintf("Tool `%s` not found. Please check the tool name and try again with exact match. Available tools: %s", toolName, availableTools),
		}
	}

	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnToolStart(ctx, tool, a.name, toolArgs)
	}

	started := time.Now()
	res, err := tool.Call(ctx, toolArgs)
	metricskey.PerfToolCall.MeasureSince(started, toolName)

	if err != nil {
		var ir *hitl.InterruptRequired
		if errors.As(err, &ir) {
			req := ir.Request
			req.ToolCallID = tc.ID
			metricskey.StatsInterruptsRaised.IncrCounter(1, a.name, toolName)
			logger.ContextKV(ctx, xlog.DEBUG,
				"assistant", a.name,
				"status", "tool_interrupted",
				"tool", toolName,
				"tool_call_id", tc.ID,
			)
			return toolCallResult{toolCall: tc, interrupt: &req}
		}

		metricskey.StatsToolCallsFailed.IncrCounter(1, toolName)
		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnToolError(ctx, tool, a.name, toolArgs, err)
		}
		logger.ContextKV(ctx, xlog.WARNING,
			"assistant", a.name,
			"status", "tool_call_failed",
			"tool", toolName,
			"err", err.Error(),
		)

		if errors.Is(err, chatmodel.ErrFailedUnmarshalInput) {
			res = fmt.Sprintf("Tool call failed: %s", chatmodel.ErrFailedUnmarshalInput.Error())
		} else {
			res = fmt.Sprintf("Tool call failed: %s", err.Error())
		}
		return toolCallResult{toolCall: tc, response: res}
	}

	metricskey.StatsToolCallsSucceeded.IncrCounter(1, toolName)
	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnToolEnd(ctx, tool, a.name, toolArgs, res)
	}
	return toolCallResult{toolCall: tc, response: res}
}
