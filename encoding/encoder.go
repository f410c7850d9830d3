// Package encoding converts the assistant output and the tool catalog
// between Go values and the text formats understood by LLMs and humans.
package encoding

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	dummyenc "github.com/effective-security/auk/encoding/dummy"
	jsonenc "github.com/effective-security/auk/encoding/json"
	tomlenc "github.com/effective-security/auk/encoding/toml"
	yamlenc "github.com/effective-security/auk/encoding/yaml"
)

type SchemaEncoder interface {
	Marshal(req any) ([]byte, error)
	Unmarshal([]byte, any) error
	// GetFormatInstructions returns the wrapped message with message schema for the prompt
	GetFormatInstructions() string
}

type Validator interface {
	Validate(any) error
}

type Mode = string

const (
	ModeJSON             Mode = "json"
	ModeJSONSchema       Mode = "json_schema"
	ModeJSONSchemaStrict Mode = "json_schema_strict" // Not all providers support this and all props must be required
	ModeYAML             Mode = "yaml"
	ModeTOML             Mode = "toml"
	ModePlainText        Mode = "plain_text"
)

// ModeDefault is the default mode for the encoder.
// Allow to override in apps
var ModeDefault = ModeJSONSchema

// ErrUnsupportedMode is returned for unknown encoding modes
var ErrUnsupportedMode = errors.New("no predefined encoder")

// PredefinedSchemaEncoder returns the encoder of the mode for the req type
func PredefinedSchemaEncoder(mode Mode, req any) (SchemaEncoder, error) {
	switch mode {
	case ModeJSON, ModeJSONSchema, ModeJSONSchemaStrict:
		return jsonenc.NewEncoder(req)
	case ModeYAML:
		return yamlenc.NewEncoder(req), nil
	case ModeTOML:
		return tomlenc.NewEncoder(req), nil
	case ModePlainText:
		return dummyenc.NewEncoder(), nil
	default:
		return nil, errors.WithMessagef(ErrUnsupportedMode, "mode %q", mode)
	}
}

// IsJSON returns true for the JSON modes
func IsJSON(mode Mode) bool {
	return mode == ModeJSON || mode == ModeJSONSchema || mode == ModeJSONSchemaStrict
}

// Marshal encodes v in the format of the mode.
// YAML and TOML are produced from the JSON form of v,
// so the `json` tags and custom JSON marshalers are honored,
// the TOML document is rooted at the `root` key when v is not an object.
func Marshal(mode Mode, v any, root string) ([]byte, error) {
	if IsJSON(mode) {
		return json.MarshalIndent(v, "", "  ")
	}

	js, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal")
	}
	var plain any
	if err = json.Unmarshal(js, &plain); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal")
	}

	switch mode {
	case ModeYAML:
		return yamlenc.NewEncoder(plain).Marshal(plain)
	case ModeTOML:
		if _, ok := plain.(map[string]any); !ok {
			plain = map[string]any{root: plain}
		}
		return tomlenc.NewEncoder(plain).Marshal(plain)
	default:
		return nil, errors.WithMessagef(ErrUnsupportedMode, "mode %q", mode)
	}
}

// ParseMode returns the mode by name, the file extensions are accepted
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "json":
		return ModeJSON, nil
	case "yaml", "yml":
		return ModeYAML, nil
	case "toml":
		return ModeTOML, nil
	case "text", "txt", "plain_text":
		return ModePlainText, nil
	case "json_schema":
		return ModeJSONSchema, nil
	case "json_schema_strict":
		return ModeJSONSchemaStrict, nil
	}
	return "", errors.WithMessagef(ErrUnsupportedMode, "mode %q", s)
}
