package assistants_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auk/assistants"
	"github.com/effective-security/auk/callbacks"
	"github.com/effective-security/auk/chatmodel"
	"github.com/effective-security/auk/encoding"
	"github.com/effective-security/auk/hitl"
	"github.com/effective-security/auk/mocks/mockllms"
	"github.com/effective-security/auk/pkg/llms"
	"github.com/effective-security/auk/pkg/prompts"
	"github.com/effective-security/auk/store"
	"github.com/effective-security/auk/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const sysPrompt = "You are helpful AI assistant."

type weatherRequest struct {
	City string `json:"city" jsonschema:"description=The city name" validate:"required"`
}

type emailRequest struct {
	To      string `json:"to" validate:"required"`
	Subject string `json:"subject,omitempty"`
}

type answer struct {
	Answer string `json:"answer" yaml:"answer"`
}

func newContext(chatID string) context.Context {
	return chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("t1", chatID, nil))
}

func newModel(t *testing.T) *mockllms.MockModel {
	ctrl := gomock.NewController(t)
	llm := mockllms.NewMockModel(ctrl)
	llm.EXPECT().GetName().Return("test-model").AnyTimes()
	llm.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	return llm
}

func textResponse(text string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: text}},
	}
}

func toolCallResponse(calls ...llms.ToolCall) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{ToolCalls: calls}},
	}
}

func toolCall(id, name, args string) llms.ToolCall {
	return llms.ToolCall{
		ID:           id,
		Type:         "function",
		FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
	}
}

func weatherTool(calls *int) tools.ITool {
	return tools.MustNew(tools.Config{
		Name:        "get_weather",
		Description: "Returns the weather in the city",
	}, func(_ context.Context, req *weatherRequest) (*string, error) {
		*calls++
		res := fmt.Sprintf("sunny in %s", req.City)
		return &res, nil
	})
}

func emailTool(sent *[]emailRequest) tools.ITool {
	return tools.MustNew(tools.Config{
		Name:        "send_email",
		Description: "Send an email",
	}, func(_ context.Context, req *emailRequest) (*string, error) {
		*sent = append(*sent, *req)
		res := fmt.Sprintf("sent to %s", req.To)
		return &res, nil
	})
}

func emailPolicy() tools.InterruptOnMap {
	return tools.InterruptOnMap{
		"send_email": {
			AllowedDecisions: []tools.DecisionType{tools.DecisionApprove, tools.DecisionReject},
		},
	}
}

func toolResponse(msg llms.Message) llms.ToolCallResponse {
	res := msg.ToolResponses()
	if len(res) == 0 {
		return llms.ToolCallResponse{}
	}
	return res[0]
}

func TestAssistant_Simple(t *testing.T) {
	t.Parallel()
	ctx := newContext("simple")

	llm := newModel(t)
	ms := store.NewMemoryStore()
	require.NoError(t, ms.Add(ctx,
		llms.MessageFromTextParts(llms.RoleHuman, "My name is Bob"),
		llms.MessageFromTextParts(llms.RoleAI, "Hi Bob"),
	))

	a := assistants.NewAssistant[chatmodel.String](llm,
		prompts.NewPromptTemplate(sysPrompt, nil),
		assistants.WithMode(encoding.ModePlainText),
		assistants.WithStore(ms),
	).WithName("simple")
	assert.Equal(t, "simple", a.Name())
	assert.NotEmpty(t, a.Description())

	llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			require.Len(t, msgs, 4)
			assert.Equal(t, llms.RoleSystem, msgs[0].Role)
			assert.Equal(t, sysPrompt+"\n", msgs[0].GetContent())
			assert.Equal(t, "Hi Bob\n", msgs[2].GetContent())
			assert.Equal(t, llms.RoleHuman, msgs[3].Role)
			assert.Equal(t, "What is my name?\n", msgs[3].GetContent())
			return textResponse("Your name is Bob"), nil
		})

	var out chatmodel.String
	resp, err := a.Run(ctx, &assistants.CallInput{Input: "What is my name?"}, &out)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "Your name is Bob", out.GetContent())

	history := ms.Messages(ctx)
	require.Len(t, history, 4)
	assert.Equal(t, llms.RoleAI, history[3].Role)
	assert.Equal(t, "Your name is Bob\n", history[3].GetContent())

	run := a.LastRunMessages()
	require.Len(t, run, 2)
	assert.Equal(t, "What is my name?\n", run[0].GetContent())
}

func TestAssistant_Examples(t *testing.T) {
	t.Parallel()
	ctx := newContext("examples")

	llm := newModel(t)
	a := assistants.NewAssistant[chatmodel.String](llm,
		prompts.NewPromptTemplate("You translate {{.lang}}", []string{"lang"}),
		assistants.WithMode(encoding.ModePlainText),
		assistants.WithPromptInput(map[string]any{"lang": "French"}),
		assistants.WithExamples(chatmodel.FewShotExamples{
			{Prompt: "hello", Completion: "bonjour"},
		}),
	)

	llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			require.Len(t, msgs, 4)
			assert.Equal(t, "You translate French\n", msgs[0].GetContent())
			assert.Equal(t, "hello\n", msgs[1].GetContent())
			assert.Equal(t, "bonjour\n", msgs[2].GetContent())
			assert.Equal(t, "cat\n", msgs[3].GetContent())
			return textResponse("chat"), nil
		})

	var out chatmodel.String
	_, err := a.Run(ctx, &assistants.CallInput{Input: "cat"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "chat", out.GetContent())
}

func TestAssistant_StructuredOutput(t *testing.T) {
	t.Parallel()
	ctx := newContext("structured")

	llm := newModel(t)
	a := assistants.NewAssistant[answer](llm,
		prompts.NewPromptTemplate(sysPrompt, nil),
		assistants.WithMode(encoding.ModeJSON),
	)

	gomock.InOrder(
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
				assert.Contains(t, msgs[0].GetContent(), "# OUTPUT SCHEMA")
				return textResponse("```json\n{\"answer\": \"42\"}\n```"), nil
			}),
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(textResponse("[1, 2]"), nil),
	)

	var out answer
	_, err := a.Run(ctx, &assistants.CallInput{Input: "What is the answer?"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "42", out.Answer)

	_, err = a.Run(ctx, &assistants.CallInput{Input: "What is the answer?"}, &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, chatmodel.ErrFailedUnmarshalOutput))
}

func TestAssistant_ResponseFormat(t *testing.T) {
	t.Parallel()

	llm := newModel(t)
	a := assistants.NewAssistant[answer](llm,
		prompts.NewPromptTemplate(sysPrompt, nil),
		assistants.WithMode(encoding.ModeJSONSchemaStrict),
	)
	cfg := a.GetCallConfig()
	require.NotNil(t, cfg.ResponseFormat)

	sp, err := a.GetSystemPrompt(context.Background(), cfg, "", nil)
	require.NoError(t, err)
	assert.Equal(t, sysPrompt, sp)
}

func TestAssistant_ToolCall(t *testing.T) {
	t.Parallel()
	ctx := newContext("tool_call")

	var weatherCalls int
	llm := newModel(t)
	ms := store.NewMemoryStore()
	a := assistants.NewAssistant[chatmodel.String](llm,
		prompts.NewPromptTemplate(sysPrompt, nil),
		assistants.WithMode(encoding.ModePlainText),
		assistants.WithStore(ms),
	).WithTools(weatherTool(&weatherCalls), weatherTool(&weatherCalls))
	require.Len(t, a.GetTools(), 1)

	gomock.InOrder(
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []llms.Message, opts ...llms.CallOption) (*llms.ContentResponse, error) {
				require.Len(t, msgs, 2)
				co := llms.NewCallOptions(opts...)
				require.Len(t, co.Tools, 1)
				assert.Equal(t, "get_weather", co.Tools[0].Function.Name)
				require.NotNil(t, co.Tools[0].Function.Parameters)
				return toolCallResponse(toolCall("call_1", "get_weather", `{"city":"Paris"}`)), nil
			}),
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
				require.Len(t, msgs, 4)
				assert.Equal(t, llms.RoleAI, msgs[2].Role)
				require.Len(t, msgs[2].ToolCalls(), 1)
				assert.Equal(t, llms.RoleTool, msgs[3].Role)
				tr := toolResponse(msgs[3])
				assert.Equal(t, "call_1", tr.ToolCallID)
				assert.Equal(t, "sunny in Paris", tr.Content)
				return textResponse("It is sunny in Paris"), nil
			}),
	)

	var out chatmodel.String
	_, err := a.Run(ctx, &assistants.CallInput{Input: "Weather in Paris?"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "It is sunny in Paris", out.GetContent())
	assert.Equal(t, 1, weatherCalls)
	// human, tool call, tool response, answer
	assert.Len(t, ms.Messages(ctx), 4)
}

func TestAssistant_SkipToolHistory(t *testing.T) {
	t.Parallel()
	ctx := newContext("skip_tools")

	var weatherCalls int
	llm := newModel(t)
	ms := store.NewMemoryStore()
	a := assistants.NewAssistant[chatmodel.String](llm,
		prompts.NewPromptTemplate(sysPrompt, nil),
		assistants.WithMode(encoding.ModePlainText),
		assistants.WithStore(ms),
		assistants.WithSkipToolHistory(true),
	).WithTools(weatherTool(&weatherCalls))

	gomock.InOrder(
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(toolCallResponse(toolCall("", "get_weather", `{"city":"Rome"}`)), nil),
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
				require.Len(t, msgs, 4)
				assert.Equal(t, "get_weather_0", msgs[2].ToolCalls()[0].ID)
				assert.Equal(t, "get_weather_0", toolResponse(msgs[3]).ToolCallID)
				return textResponse("Sunny"), nil
			}),
	)

	_, err := a.Call(ctx, &assistants.CallInput{Input: "Weather in Rome?"})
	require.NoError(t, err)
	assert.Len(t, ms.Messages(ctx), 2)
}

func TestAssistant_ToolInputError(t *testing.T) {
	t.Parallel()
	ctx := newContext("tool_input")

	var weatherCalls int
	llm := newModel(t)
	a := assistants.NewAssistant[chatmodel.String](llm,
		prompts.NewPromptTemplate(sysPrompt, nil),
		assistants.WithMode(encoding.ModePlainText),
	).WithTools(weatherTool(&weatherCalls))

	gomock.InOrder(
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(toolCallResponse(toolCall("call_1", "get_weather", `[1, 2]`)), nil),
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
				require.Len(t, msgs, 4)
				assert.Equal(t, "Tool call failed: "+chatmodel.ErrFailedUnmarshalInput.Error(), toolResponse(msgs[3]).Content)
				return textResponse("Sorry"), nil
			}),
	)

	_, err := a.Call(ctx, &assistants.CallInput{Input: "Weather?"})
	require.NoError(t, err)
	assert.Equal(t, 0, weatherCalls)
}

func TestAssistant_Interrupt(t *testing.T) {
	t.Parallel()
	ctx := newContext("interrupt")

	var weatherCalls int
	var sent []emailRequest
	m := hitl.New(emailPolicy(), weatherTool(&weatherCalls), emailTool(&sent))

	var events bytes.Buffer
	llm := newModel(t)
	ms := store.NewMemoryStore()
	a := assistants.NewAssistant[chatmodel.String](llm,
		prompts.NewPromptTemplate(sysPrompt, nil),
		assistants.WithMode(encoding.ModePlainText),
		assistants.WithStore(ms),
		assistants.WithCallback(callbacks.NewPrinter(&events, callbacks.ModeDefault)),
	).WithName("mailer").WithTools(m.Tools()...)

	llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(toolCallResponse(
			toolCall("call_1", "get_weather", `{"city":"Paris"}`),
			toolCall("call_2", "send_email", `{"to":"bob@example.com","subject":"weather"}`),
		), nil)

	var out chatmodel.String
	_, err := a.Run(ctx, &assistants.CallInput{Input: "Email Bob the weather"}, &out)
	require.Error(t, err)
	in, ok := hitl.AsInterrupt(err)
	require.True(t, ok)
	assert.Equal(t, "interrupt", in.ChatID)
	assert.NotEmpty(t, in.ID)
	require.Len(t, in.Requests, 1)
	req := in.Requests[0]
	assert.Equal(t, "call_2", req.ToolCallID)
	assert.Equal(t, "send_email", req.Name)
	assert.JSONEq(t, `{"to":"bob@example.com","subject":"weather"}`, string(req.Args))
	assert.Empty(t, in.Messages)
	assert.Empty(t, sent)
	assert.Equal(t, 1, weatherCalls)
	assert.Contains(t, events.String(), "Assistant Interrupt: mailer: 1 action(s)")
	assert.NotContains(t, events.String(), "Assistant Error")

	// human, tool calls, weather response
	pending := ms.Messages(ctx)
	require.Len(t, pending, 3)
	assert.Len(t, pending[1].ToolCalls(), 2)
	assert.Equal(t, "call_1", toolResponse(pending[2]).ToolCallID)

	res, err := m.Resume(ctx, in, []hitl.Decision{hitl.Approve()})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "call_2", res[0].ToolCallID)
	assert.Equal(t, "sent to bob@example.com", res[0].Content)
	require.Len(t, sent, 1)

	llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			require.Len(t, msgs, 5)
			assert.Equal(t, llms.RoleTool, msgs[4].Role)
			assert.Equal(t, "call_2", toolResponse(msgs[4]).ToolCallID)
			return textResponse("Email sent"), nil
		})

	_, err = a.Run(ctx, &assistants.CallInput{Messages: hitl.ToolMessages(res)}, &out)
	require.NoError(t, err)
	assert.Equal(t, "Email sent", out.GetContent())

	history := ms.Messages(ctx)
	require.Len(t, history, 5)
	assert.Equal(t, "call_2", toolResponse(history[3]).ToolCallID)
	assert.Equal(t, "Email sent\n", history[4].GetContent())
}

func TestAssistant_InterruptWithoutStore(t *testing.T) {
	t.Parallel()
	ctx := newContext("interrupt_no_store")

	var sent []emailRequest
	m := hitl.New(emailPolicy(), emailTool(&sent))

	llm := newModel(t)
	a := assistants.NewAssistant[chatmodel.String](llm,
		prompts.NewPromptTemplate(sysPrompt, nil),
		assistants.WithMode(encoding.ModePlainText),
	).WithTools(m.Tools()...)

	llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(toolCallResponse(toolCall("call_1", "send_email", `{"to":"eve@example.com"}`)), nil)

	_, err := a.Call(ctx, &assistants.CallInput{Input: "Email Eve"})
	in, ok := hitl.AsInterrupt(err)
	require.True(t, ok)
	require.Len(t, in.Messages, 2)
	assert.Equal(t, llms.RoleHuman, in.Messages[0].Role)
	assert.Len(t, in.Messages[1].ToolCalls(), 1)

	res, err := m.Resume(ctx, in, []hitl.Decision{hitl.Reject("not now")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res[0].Content, hitl.RejectedPrefix))
	assert.Empty(t, sent)

	llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			require.Len(t, msgs, 4)
			assert.Equal(t, hitl.RejectedPrefix+"not now", toolResponse(msgs[3]).Content)
			return textResponse("OK, I will not send it"), nil
		})

	msgs := append(in.Messages, hitl.ToolMessages(res)...)
	var out chatmodel.String
	_, err = a.Run(ctx, &assistants.CallInput{Messages: msgs}, &out)
	require.NoError(t, err)
	assert.Equal(t, "OK, I will not send it", out.GetContent())
}

func TestAssistant_Errors(t *testing.T) {
	t.Parallel()

	newAssistant := func(llm llms.Model, opts ...assistants.Option) *assistants.Assistant[chatmodel.String] {
		var weatherCalls int
		opts = append([]assistants.Option{assistants.WithMode(encoding.ModePlainText)}, opts...)
		return assistants.NewAssistant[chatmodel.String](llm,
			prompts.NewPromptTemplate(sysPrompt, nil), opts...,
		).WithTools(weatherTool(&weatherCalls))
	}

	t.Run("no chat context", func(t *testing.T) {
		llm := newModel(t)
		_, err := newAssistant(llm).Call(context.Background(), &assistants.CallInput{Input: "hi"})
		assert.True(t, errors.Is(err, chatmodel.ErrInvalidChatContext))
	})

	t.Run("max messages", func(t *testing.T) {
		llm := newModel(t)
		_, err := newAssistant(llm, assistants.WithMaxMessages(2)).
			Call(newContext("max_messages"), &assistants.CallInput{Input: "hi"})
		assert.True(t, errors.Is(err, assistants.ErrMaxMessagesExceeded))
	})

	t.Run("max length", func(t *testing.T) {
		llm := newModel(t)
		_, err := newAssistant(llm, assistants.WithMaxLength(10)).
			Call(newContext("max_length"), &assistants.CallInput{Input: "hi"})
		assert.True(t, errors.Is(err, assistants.ErrMaxMessagesExceeded))
	})

	t.Run("llm error", func(t *testing.T) {
		llm := newModel(t)
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("rate limited"))
		_, err := newAssistant(llm).Call(newContext("llm_error"), &assistants.CallInput{Input: "hi"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate limited")
	})

	t.Run("empty response", func(t *testing.T) {
		llm := newModel(t)
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&llms.ContentResponse{}, nil).Times(assistants.DefaultMaxRetries)
		_, err := newAssistant(llm).Call(newContext("empty"), &assistants.CallInput{Input: "hi"})
		assert.True(t, errors.Is(err, assistants.ErrEmptyResponse))
	})

	t.Run("tool not found", func(t *testing.T) {
		llm := newModel(t)
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
				if len(msgs) > 2 {
					last := toolResponse(msgs[len(msgs)-1])
					assert.Contains(t, last.Content, "Tool `get_time` not found")
					assert.Contains(t, last.Content, "Available tools: get_weather")
				}
				return toolCallResponse(toolCall("", "get_time", `{}`)), nil
			}).Times(assistants.MaxNotFoundTools + 1)
		_, err := newAssistant(llm).Call(newContext("not_found"), &assistants.CallInput{Input: "hi"})
		assert.True(t, errors.Is(err, assistants.ErrToolNotFound))
	})

	t.Run("max tool calls", func(t *testing.T) {
		llm := newModel(t)
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(toolCallResponse(toolCall("", "get_weather", `{"city":"Oslo"}`)), nil).Times(2)
		_, err := newAssistant(llm, assistants.WithMaxToolCalls(2)).
			Call(newContext("max_tools"), &assistants.CallInput{Input: "hi"})
		assert.True(t, errors.Is(err, assistants.ErrMaxToolCallsExceeded))
	})

	t.Run("invalid function call", func(t *testing.T) {
		llm := newModel(t)
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(toolCallResponse(llms.ToolCall{ID: "call_1"}), nil)
		_, err := newAssistant(llm).Call(newContext("invalid_call"), &assistants.CallInput{Input: "hi"})
		assert.True(t, errors.Is(err, assistants.ErrInvalidFunctionCall))
	})

	t.Run("no tools", func(t *testing.T) {
		llm := newModel(t)
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(toolCallResponse(toolCall("call_1", "get_weather", `{}`)), nil)
		a := assistants.NewAssistant[chatmodel.String](llm,
			prompts.NewPromptTemplate(sysPrompt, nil),
			assistants.WithMode(encoding.ModePlainText))
		_, err := a.Call(newContext("no_tools"), &assistants.CallInput{Input: "hi"})
		assert.True(t, errors.Is(err, assistants.ErrNoToolsProvided))
	})

	t.Run("no function calling", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		llm := mockllms.NewMockModel(ctrl)
		llm.EXPECT().GetName().Return("sonar").AnyTimes()
		llm.EXPECT().GetProviderType().Return(llms.ProviderPerplexity).AnyTimes()
		_, err := newAssistant(llm).Call(newContext("no_fc"), &assistants.CallInput{Input: "hi"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not support function calling")
	})

	t.Run("missing prompt input", func(t *testing.T) {
		llm := newModel(t)
		a := assistants.NewAssistant[chatmodel.String](llm,
			prompts.NewPromptTemplate("Hello {{.name}}", []string{"name"}),
			assistants.WithMode(encoding.ModePlainText))
		_, err := a.Call(newContext("prompt"), &assistants.CallInput{Input: "hi"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `missing input variable "name"`)
	})
}

func TestAssistant_PromptInputProvider(t *testing.T) {
	t.Parallel()
	ctx := newContext("prompt_provider")

	llm := newModel(t)
	a := assistants.NewAssistant[chatmodel.String](llm,
		prompts.NewPromptTemplate("Hello {{.name}}", []string{"name"}),
		assistants.WithMode(encoding.ModePlainText),
	).WithPromptInputProvider(func(_ context.Context, input string) (map[string]any, error) {
		return map[string]any{"name": strings.ToUpper(input)}, nil
	}).WithInputParser(func(input string) (string, error) {
		return "parsed " + input, nil
	})

	llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			require.Len(t, msgs, 2)
			assert.Equal(t, "Hello BOB\n", msgs[0].GetContent())
			assert.Equal(t, "parsed bob\n", msgs[1].GetContent())
			return textResponse("hi"), nil
		})

	_, err := a.Call(ctx, &assistants.CallInput{Input: "bob"})
	require.NoError(t, err)
}
