package llms_test

import (
	"encoding/json"
	"testing"

	"github.com/effective-security/auk/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextParts(t *testing.T) {
	t.Parallel()
	mc := llms.MessageFromTextParts(llms.RoleHuman, "a", "b", "c")
	assert.Equal(t, llms.RoleHuman, mc.Role)
	require.Len(t, mc.Parts, 3)
	assert.Equal(t, "a\nb\nc\n", mc.GetContent())
}

func TestMessage_JSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		msg     llms.Message
		js      string
		content string
	}{
		{
			"text",
			llms.MessageFromTextParts(llms.RoleHuman, "a", "b"),
			`{"role":"human","parts":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}`,
			"a\nb\n",
		},
		{
			"binary",
			llms.MessageFromParts(llms.RoleHuman, llms.BinaryPart("image/png", []byte{0x00, 0x01, 0x02})),
			`{"role":"human","parts":[{"type":"binary","binary":{"mime_type":"image/png","data":"AAEC"}}]}`,
			"Binary: image/png\n",
		},
		{
			"image",
			llms.MessageFromParts(llms.RoleHuman, llms.ImageURLPart("https://example.com/image.png")),
			`{"role":"human","parts":[{"type":"image_url","image_url":{"url":"https://example.com/image.png"}}]}`,
			"URL: https://example.com/image.png\n",
		},
		{
			"tool_call",
			llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{
				ID:           "call_1",
				Type:         "function",
				FunctionCall: &llms.FunctionCall{Name: "ask_user_with_options", Arguments: `{}`},
			}),
			`{"role":"ai","parts":[{"type":"tool_call","tool_call":{"id":"call_1","type":"function","function":{"name":"ask_user_with_options","arguments":"{}"}}}]}`,
			"Tool Call: {\"type\":\"tool_call\",\"tool_call\":{\"id\":\"call_1\",\"type\":\"function\",\"function\":{\"name\":\"ask_user_with_options\",\"arguments\":\"{}\"}}}\n",
		},
		{
			"tool_response",
			llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
				ToolCallID: "call_1",
				Name:       "ask_user_with_options",
				Content:    "blue",
			}),
			`{"role":"tool","parts":[{"type":"tool_response","tool_response":{"tool_call_id":"call_1","name":"ask_user_with_options","content":"blue"}}]}`,
			"Response: {\"type\":\"tool_response\",\"tool_response\":{\"tool_call_id\":\"call_1\",\"name\":\"ask_user_with_options\",\"content\":\"blue\"}}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			js, err := json.Marshal(tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.js, string(js))
			assert.Equal(t, tt.content, tt.msg.GetContent())

			var decoded llms.Message
			require.NoError(t, json.Unmarshal(js, &decoded))
			assert.Equal(t, tt.msg, decoded)
		})
	}
}

func TestMessage_UnmarshalErrors(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"unknown":       `{"role":"ai","parts":[{"type":"video"}]}`,
		"no_url":        `{"role":"ai","parts":[{"type":"image_url"}]}`,
		"no_call_id":    `{"role":"ai","parts":[{"type":"tool_call","tool_call":{"type":"function"}}]}`,
		"no_resp_id":    `{"role":"tool","parts":[{"type":"tool_response","tool_response":{"name":"x"}}]}`,
		"bad_base64":    `{"role":"human","parts":[{"type":"binary","binary":{"mime_type":"image/png","data":"!!"}}]}`,
		"invalid_json":  `{"role":`,
		"no_mime":       `{"role":"human","parts":[{"type":"binary","binary":{"data":"AAEC"}}]}`,
		"empty_url_obj": `{"role":"human","parts":[{"type":"image_url","image_url":{}}]}`,
	}
	for name, js := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var m llms.Message
			assert.Error(t, json.Unmarshal([]byte(js), &m))
		})
	}
}

func TestMessage_ShortText(t *testing.T) {
	t.Parallel()
	var m llms.Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"human","text":"hello"}`), &m))
	assert.Equal(t, llms.MessageFromTextParts(llms.RoleHuman, "hello"), m)
}

func TestMessage_ToolParts(t *testing.T) {
	t.Parallel()
	m := llms.MessageFromParts(llms.RoleAI,
		llms.TextPart("thinking"),
		llms.ToolCall{ID: "1", Type: "function", FunctionCall: &llms.FunctionCall{Name: "a"}},
		llms.ToolCallResponse{ToolCallID: "1", Name: "a", Content: "ok"},
	)
	require.Len(t, m.ToolCalls(), 1)
	assert.Equal(t, "1", m.ToolCalls()[0].ID)
	require.Len(t, m.ToolResponses(), 1)
	assert.Equal(t, "ok", m.ToolResponses()[0].Content)
	assert.Equal(t, "ToolCall: 1 (a), input: ", m.ToolCalls()[0].String())
}

func TestCapabilities(t *testing.T) {
	t.Parallel()
	assert.True(t, llms.ProviderOpenAI.Supports(llms.CapabilityFunctionCalling))
	assert.True(t, llms.ProviderAzureAD.Supports(llms.CapabilityFunctionCalling))
	assert.False(t, llms.ProviderPerplexity.Supports(llms.CapabilityFunctionCalling))
	assert.False(t, llms.ProviderType("UNKNOWN").Supports(llms.CapabilityText))
}
