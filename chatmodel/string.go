package chatmodel

import "strings"

// String is a plain text output, it implements ContentProvider.
type String struct {
	value string
}

func NewString(str string) *String {
	return &String{
		value: str,
	}
}

// GetContent gets the content of the message for the chat history
func (s String) GetContent() string {
	return s.value
}

func (s String) String() string {
	return s.value
}

func (s String) Bytes() []byte {
	return []byte(s.value)
}

// Unmarshal accepts the text with or without JSON quotes
func (s *String) Unmarshal(bs []byte) error {
	*s = String{value: strings.Trim(string(bs), "\"")}
	return nil
}

// StringParser is the OutputParser for plain text answers.
type StringParser struct{}

// Parse returns the text as is
func (StringParser) Parse(text string) (*String, error) {
	return NewString(text), nil
}

// GetFormatInstructions returns no instructions, the answer is free text
func (StringParser) GetFormatInstructions() string {
	return ""
}

func (StringParser) Type() string {
	return "string_parser"
}
