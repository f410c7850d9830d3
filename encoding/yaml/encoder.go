// Package yaml is the YAML output encoder,
// the format instructions carry a fake instance of the output type.
package yaml

import (
	"reflect"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/effective-security/auk/pkg/llmutils"
	"github.com/effective-security/auk/pkg/schema"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CommentStyle is the placement of the field descriptions
type CommentStyle int

const (
	NoComment CommentStyle = iota
	HeadComment
	LineComment
	FootComment
)

type Encoder struct {
	reqType      reflect.Type
	commentStyle CommentStyle
}

func NewEncoder(req any) *Encoder {
	return &Encoder{
		reqType:      reflect.TypeOf(req),
		commentStyle: NoComment,
	}
}

// WithCommentStyle sets the placement of the field descriptions,
// taken from the `comment` tag or the jsonschema description
func (e *Encoder) WithCommentStyle(style CommentStyle) *Encoder {
	e.commentStyle = style
	return e
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	if e.commentStyle == NoComment {
		return yaml.Marshal(v)
	}
	var node yaml.Node
	if err := node.Encode(v); err != nil {
		return nil, err
	}
	e.addComments(&node, reflect.TypeOf(v))
	return yaml.Marshal(&node)
}

func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	return yaml.Unmarshal(llmutils.BytesTrimBackticks(bs), ret)
}

func (e *Encoder) Validate(req any) error {
	return validate.Struct(req)
}

func (e *Encoder) GetFormatInstructions() string {
	bs, err := e.Marshal(fakeInstance(e.reqType))
	if err != nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nRespond with YAML in the following YAML schema without comments:\n")
	b.WriteString("```yaml\n")
	b.Write(bs)
	b.WriteString("```")
	b.WriteString("\nMake sure to return an instance of the YAML, not the schema itself.\n")
	return b.String()
}

func fakeInstance(t reflect.Type) any {
	v := reflect.New(t)
	if f, ok := v.Elem().Interface().(schema.Faker); ok {
		return f.Fake()
	}
	_ = gofakeit.Struct(v.Interface())
	return v.Interface()
}

func (e *Encoder) addComments(node *yaml.Node, t reflect.Type) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return
	}

	switch {
	case t.Kind() == reflect.Struct && node.Kind == yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			field, ok := fieldByKey(t, key.Value)
			if !ok {
				continue
			}
			e.setComment(key, comment(field))
			e.addComments(val, field.Type)
		}
	case (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) && node.Kind == yaml.SequenceNode:
		for _, item := range node.Content {
			e.addComments(item, t.Elem())
		}
	}
}

func (e *Encoder) setComment(key *yaml.Node, text string) {
	if text == "" {
		return
	}
	switch e.commentStyle {
	case HeadComment:
		key.HeadComment = text
	case LineComment:
		key.LineComment = text
	case FootComment:
		key.FootComment = text
	}
}

func fieldByKey(t reflect.Type, key string) (reflect.StructField, bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		if name == key {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

func comment(f reflect.StructField) string {
	if c := f.Tag.Get("comment"); c != "" {
		return c
	}
	return description(f.Tag.Get("jsonschema"))
}

// description returns the description from jsonschema tag,
// `\,` escapes a comma in the value
func description(tag string) string {
	_, rest, ok := strings.Cut(tag, "description=")
	if !ok {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if c == '\\' && i+1 < len(rest) && rest[i+1] == ',' {
			b.WriteByte(',')
			i++
			continue
		}
		if c == ',' {
			break
		}
		b.WriteByte(c)
	}
	return strings.TrimSpace(b.String())
}
