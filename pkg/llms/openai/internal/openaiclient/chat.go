package openaiclient

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auk/pkg/llms"
	"github.com/effective-security/auk/pkg/schema"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
)

const maxStreamLine = 1024 * 1024

// ChatRequest is a request to complete a chat completion.
type ChatRequest struct {
	Model               string         `json:"model"`
	Messages            []*ChatMessage `json:"messages"`
	Temperature         float64        `json:"temperature,omitempty"`
	TopP                float64        `json:"top_p,omitempty"`
	MaxCompletionTokens int            `json:"max_completion_tokens,omitempty"`
	StopWords           []string       `json:"stop,omitempty"`
	Stream              bool           `json:"stream,omitempty"`
	StreamOptions       *StreamOptions `json:"stream_options,omitempty"`

	Tools      []Tool `json:"tools,omitempty"`
	ToolChoice any    `json:"tool_choice,omitempty"`

	ResponseFormat *schema.ResponseFormat `json:"response_format,omitempty"`
	Metadata       map[string]any         `json:"metadata,omitempty"`

	// StreamingFunc is called for each content delta, the request is streamed when set
	StreamingFunc func(ctx context.Context, chunk []byte) error `json:"-"`
}

// StreamOptions asks the server to send the usage in the last chunk
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// Tool is a tool to use in a chat request.
type Tool struct {
	Type     ToolType           `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition is a definition of a function that can be called by the model.
type FunctionDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
	Strict      bool               `json:"strict,omitempty"`
}

// ToolCall is a call to a tool.
type ToolCall struct {
	Index    int          `json:"index,omitempty"`
	ID       string       `json:"id,omitempty"`
	Type     ToolType     `json:"type,omitempty"`
	Function ToolFunction `json:"function"`
}

// ToolFunction is the function of a tool call.
type ToolFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

// ChatMessage is a message of the chat request.
type ChatMessage struct {
	Role string
	// Content is used when MultiContent is empty
	Content      string
	MultiContent []llms.ContentPart
	Name         string
	ToolCalls    []ToolCall
	ToolCallID   string
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatMessageJSON struct {
	Role       string     `json:"role"`
	Content    any        `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// MarshalJSON encodes a single text part as a string,
// and other content as the array of parts.
func (m ChatMessage) MarshalJSON() ([]byte, error) {
	msg := chatMessageJSON{
		Role:       m.Role,
		Name:       m.Name,
		ToolCalls:  m.ToolCalls,
		ToolCallID: m.ToolCallID,
	}

	switch {
	case len(m.MultiContent) == 1:
		if tc, ok := m.MultiContent[0].(llms.TextContent); ok {
			msg.Content = tc.Text
			break
		}
		msg.Content = contentParts(m.MultiContent)
	case len(m.MultiContent) > 1:
		msg.Content = contentParts(m.MultiContent)
	case m.Content != "" || len(m.ToolCalls) == 0:
		msg.Content = m.Content
	}
	return json.Marshal(msg)
}

func contentParts(parts []llms.ContentPart) []contentPart {
	res := make([]contentPart, 0, len(parts))
	for _, part := range parts {
		switch p := part.(type) {
		case llms.TextContent:
			res = append(res, contentPart{Type: "text", Text: p.Text})
		case llms.ImageURLContent:
			res = append(res, contentPart{Type: "image_url", ImageURL: &imageURL{URL: p.URL, Detail: p.Detail}})
		case llms.BinaryContent:
			res = append(res, contentPart{Type: "image_url", ImageURL: &imageURL{URL: p.String()}})
		}
	}
	return res
}

// ChatCompletionMessage is a message of the response.
type ChatCompletionMessage struct {
	Role             string     `json:"role"`
	Content          string     `json:"content"`
	ReasoningContent string     `json:"reasoning_content,omitempty"`
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`
}

// ChatCompletionChoice is a choice in a chat response.
type ChatCompletionChoice struct {
	Index        int                   `json:"index"`
	Message      ChatCompletionMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
}

// ChatUsage is the token usage of the request.
type ChatUsage struct {
	PromptTokens            int `json:"prompt_tokens"`
	CompletionTokens        int `json:"completion_tokens"`
	TotalTokens             int `json:"total_tokens"`
	CompletionTokensDetails struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details"`
}

// ChatCompletionResponse is a response to a chat request.
type ChatCompletionResponse struct {
	ID      string                  `json:"id,omitempty"`
	Created int64                   `json:"created,omitempty"`
	Model   string                  `json:"model,omitempty"`
	Object  string                  `json:"object,omitempty"`
	Choices []*ChatCompletionChoice `json:"choices"`
	Usage   ChatUsage               `json:"usage"`
}

type streamDelta struct {
	Role             string     `json:"role,omitempty"`
	Content          string     `json:"content,omitempty"`
	ReasoningContent string     `json:"reasoning_content,omitempty"`
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`
}

type streamChunk struct {
	ID      string `json:"id,omitempty"`
	Created int64  `json:"created,omitempty"`
	Model   string `json:"model,omitempty"`
	Choices []struct {
		Index        int         `json:"index"`
		Delta        streamDelta `json:"delta"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *ChatUsage `json:"usage,omitempty"`
}

func (c *Client) createChat(ctx context.Context, payload *ChatRequest) (*ChatCompletionResponse, error) {
	if payload.StreamingFunc != nil {
		payload.Stream = true
		payload.StreamOptions = &StreamOptions{IncludeUsage: true}
	}

	resp, err := c.post(ctx, c.buildURL("/chat/completions", payload.Model), payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if payload.Stream {
		return parseStream(ctx, resp.Body, payload.StreamingFunc)
	}

	var response ChatCompletionResponse
	if err = json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, errors.Wrap(err, "failed to decode response")
	}
	return &response, nil
}

// parseStream reads the server-sent events and merges the deltas
func parseStream(ctx context.Context, body io.Reader, fn func(ctx context.Context, chunk []byte) error) (*ChatCompletionResponse, error) {
	response := &ChatCompletionResponse{}
	choices := map[int]*ChatCompletionChoice{}
	toolCalls := map[int]map[int]*ToolCall{}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxStreamLine)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			logger.ContextKV(ctx, xlog.WARNING, "reason", "invalid_chunk", "err", err.Error())
			continue
		}
		if chunk.ID != "" {
			response.ID = chunk.ID
			response.Created = chunk.Created
			response.Model = chunk.Model
		}
		if chunk.Usage != nil {
			response.Usage = *chunk.Usage
		}

		for _, ch := range chunk.Choices {
			choice := choices[ch.Index]
			if choice == nil {
				choice = &ChatCompletionChoice{Index: ch.Index, Message: ChatCompletionMessage{Role: "assistant"}}
				choices[ch.Index] = choice
				toolCalls[ch.Index] = map[int]*ToolCall{}
			}
			if ch.FinishReason != "" {
				choice.FinishReason = ch.FinishReason
			}
			choice.Message.ReasoningContent += ch.Delta.ReasoningContent
			if ch.Delta.Content != "" {
				choice.Message.Content += ch.Delta.Content
				if fn != nil {
					if err := fn(ctx, []byte(ch.Delta.Content)); err != nil {
						return nil, errors.WithMessage(err, "streaming func returned an error")
					}
				}
			}
			for _, delta := range ch.Delta.ToolCalls {
				tc := toolCalls[ch.Index][delta.Index]
				if tc == nil {
					tc = &ToolCall{Index: delta.Index, Type: ToolTypeFunction}
					toolCalls[ch.Index][delta.Index] = tc
				}
				if delta.ID != "" {
					tc.ID = delta.ID
				}
				if delta.Type != "" {
					tc.Type = delta.Type
				}
				tc.Function.Name += delta.Function.Name
				tc.Function.Arguments += delta.Function.Arguments
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read stream")
	}

	for _, idx := range sortedKeys(choices) {
		choice := choices[idx]
		calls := toolCalls[idx]
		for _, ti := range sortedKeys(calls) {
			choice.Message.ToolCalls = append(choice.Message.ToolCalls, *calls[ti])
		}
		response.Choices = append(response.Choices, choice)
	}
	return response, nil
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
