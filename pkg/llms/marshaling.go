package llms

import (
	"encoding/base64"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// part types in the JSON form of a Message
const (
	partText         = "text"
	partImageURL     = "image_url"
	partBinary       = "binary"
	partToolCall     = "tool_call"
	partToolResponse = "tool_response"
)

type imageURLJSON struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type binaryJSON struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type toolCallJSON struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	FunctionCall *FunctionCall `json:"function,omitempty"`
}

type toolResponseJSON struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
}

// partJSON is the envelope of every content part
type partJSON struct {
	Type         string            `json:"type"`
	Text         *string           `json:"text,omitempty"`
	ImageURL     *imageURLJSON     `json:"image_url,omitempty"`
	Binary       *binaryJSON       `json:"binary,omitempty"`
	ToolCall     *toolCallJSON     `json:"tool_call,omitempty"`
	ToolResponse *toolResponseJSON `json:"tool_response,omitempty"`
}

// MarshalJSON implements json.Marshaler for TextContent
func (tc TextContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(partJSON{Type: partText, Text: &tc.Text})
}

// MarshalJSON implements json.Marshaler for ImageURLContent
func (iuc ImageURLContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(partJSON{Type: partImageURL, ImageURL: &imageURLJSON{URL: iuc.URL, Detail: iuc.Detail}})
}

// MarshalJSON implements json.Marshaler for BinaryContent
func (bc BinaryContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(partJSON{Type: partBinary, Binary: &binaryJSON{
		MIMEType: bc.MIMEType,
		Data:     base64.StdEncoding.EncodeToString(bc.Data),
	}})
}

// MarshalJSON implements json.Marshaler for ToolCall
func (tc ToolCall) MarshalJSON() ([]byte, error) {
	return json.Marshal(partJSON{Type: partToolCall, ToolCall: &toolCallJSON{
		ID:           tc.ID,
		Type:         tc.Type,
		FunctionCall: tc.FunctionCall,
	}})
}

// MarshalJSON implements json.Marshaler for ToolCallResponse
func (tc ToolCallResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(partJSON{Type: partToolResponse, ToolResponse: &toolResponseJSON{
		ToolCallID: tc.ToolCallID,
		Name:       tc.Name,
		Content:    tc.Content,
	}})
}

// UnmarshalJSON implements json.Unmarshaler for Message
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role  Role       `json:"role"`
		Text  string     `json:"text,omitempty"`
		Parts []partJSON `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.WithStack(err)
	}

	m.Role = raw.Role
	m.Parts = nil
	if raw.Text != "" {
		m.Parts = []ContentPart{TextContent{Text: raw.Text}}
		return nil
	}

	for _, p := range raw.Parts {
		part, err := p.toPart()
		if err != nil {
			return err
		}
		m.Parts = append(m.Parts, part)
	}
	return nil
}

func (p partJSON) toPart() (ContentPart, error) {
	switch p.Type {
	case partText, "":
		if p.Text == nil {
			return TextContent{}, nil
		}
		return TextContent{Text: *p.Text}, nil
	case partImageURL:
		if p.ImageURL == nil || p.ImageURL.URL == "" {
			return nil, errors.New("missing url field in image_url part")
		}
		return ImageURLContent{URL: p.ImageURL.URL, Detail: p.ImageURL.Detail}, nil
	case partBinary:
		if p.Binary == nil || p.Binary.MIMEType == "" {
			return nil, errors.New("missing mime_type field in binary part")
		}
		decoded, err := base64.StdEncoding.DecodeString(p.Binary.Data)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode binary data")
		}
		return BinaryContent{MIMEType: p.Binary.MIMEType, Data: decoded}, nil
	case partToolCall:
		if p.ToolCall == nil || p.ToolCall.ID == "" {
			return nil, errors.New("missing id field in tool_call part")
		}
		fc := p.ToolCall.FunctionCall
		if fc == nil {
			fc = &FunctionCall{}
		}
		return ToolCall{ID: p.ToolCall.ID, Type: p.ToolCall.Type, FunctionCall: fc}, nil
	case partToolResponse:
		if p.ToolResponse == nil || p.ToolResponse.ToolCallID == "" {
			return nil, errors.New("missing tool_call_id field in tool_response part")
		}
		return ToolCallResponse{
			ToolCallID: p.ToolResponse.ToolCallID,
			Name:       p.ToolResponse.Name,
			Content:    p.ToolResponse.Content,
		}, nil
	default:
		return nil, errors.Newf("unknown content type: '%s'", p.Type)
	}
}
