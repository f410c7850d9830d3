package tools

import (
	"context"
	"encoding/json"

	"github.com/bububa/ljson"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/auk/chatmodel"
	"github.com/effective-security/auk/pkg/llmutils"
	"github.com/effective-security/auk/pkg/schema"
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config describes a typed tool
type Config struct {
	Name        string
	Description string
	// InputDescription is the description of the input object
	InputDescription string
	// Output is the schema of the result returned to the model,
	// if empty then it is reflected from the output type.
	Output *jsonschema.Schema
	// InterruptOn is the human-in-the-loop policy, keyed by tool name
	InterruptOn InterruptOnMap
}

// RunFunc is the implementation of a typed tool
type RunFunc[I any, O any] func(ctx context.Context, req *I) (*O, error)

// Func is a typed tool built from a request struct and RunFunc.
type Func[I any, O any] struct {
	cfg    Config
	run    RunFunc[I, O]
	input  *jsonschema.Schema
	output *jsonschema.Schema
	args   *schema.Validator
}

var _ Tool[struct{}, string] = (*Func[struct{}, string])(nil)

// New returns a typed tool
func New[I any, O any](cfg Config, run RunFunc[I, O]) (*Func[I, O], error) {
	if cfg.Name == "" {
		return nil, errors.New("tool name is required")
	}
	if run == nil {
		return nil, errors.Newf("tool %s: run function is required", cfg.Name)
	}
	params, err := schema.For[I]()
	if err != nil {
		return nil, errors.WithMessagef(err, "tool %s: input schema", cfg.Name)
	}
	// the reflected schema is cached per type, copy before changing
	input := *params.Parameters
	if cfg.InputDescription != "" {
		input.Description = cfg.InputDescription
	}
	output := cfg.Output
	if output == nil {
		out, err := schema.For[O]()
		if err != nil {
			return nil, errors.WithMessagef(err, "tool %s: output schema", cfg.Name)
		}
		output = out.Parameters
	}
	args, err := schema.NewValidator(&input)
	if err != nil {
		return nil, errors.WithMessagef(err, "tool %s: input schema", cfg.Name)
	}
	return &Func[I, O]{
		cfg:    cfg,
		run:    run,
		input:  &input,
		output: output,
		args:   args,
	}, nil
}

// MustNew returns a typed tool, and panics on error
func MustNew[I any, O any](cfg Config, run RunFunc[I, O]) *Func[I, O] {
	f, err := New(cfg, run)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Func[I, O]) Name() string {
	return f.cfg.Name
}

func (f *Func[I, O]) Description() string {
	return f.cfg.Description
}

// Parameters returns the JSON schema of the input
func (f *Func[I, O]) Parameters() any {
	return f.input
}

// InputSchema returns the JSON schema of the input
func (f *Func[I, O]) InputSchema() *jsonschema.Schema {
	return f.input
}

// OutputSchema returns the JSON schema of the result
func (f *Func[I, O]) OutputSchema() *jsonschema.Schema {
	return f.output
}

// InterruptOn returns the human-in-the-loop policy of the tool, may be nil
func (f *Func[I, O]) InterruptOn() InterruptOnMap {
	return f.cfg.InterruptOn
}

// Run executes the tool with a parsed request
func (f *Func[I, O]) Run(ctx context.Context, req *I) (*O, error) {
	return f.run(ctx, req)
}

// Call parses the LLM input and executes the tool
func (f *Func[I, O]) Call(ctx context.Context, input string) (string, error) {
	req, err := f.Parse(input)
	if err != nil {
		return "", err
	}
	out, err := f.run(ctx, req)
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", nil
	}
	return chatmodel.Stringify(*out), nil
}

// Parse decodes the input with schema defaults applied and validates it.
func (f *Func[I, O]) Parse(input string) (*I, error) {
	req := new(I)
	if err := ParseInput(f.args, input, req); err != nil {
		return nil, err
	}
	return req, nil
}

// ParseInput decodes LLM produced JSON into v:
// the missing properties are set to the schema defaults,
// the object is validated by the schema and then by the `validate` struct tags.
func ParseInput(args *schema.Validator, input string, v any) error {
	bs := llmutils.CleanJSON([]byte(input))

	var raw map[string]any
	if err := ljson.Unmarshal(bs, &raw); err != nil || raw == nil {
		return errors.WithStack(chatmodel.ErrFailedUnmarshalInput)
	}
	if err := args.ApplyDefaults(raw); err != nil {
		return errors.WithMessage(chatmodel.ErrFailedUnmarshalInput, err.Error())
	}
	if err := args.Validate(raw); err != nil {
		return errors.WithMessage(chatmodel.ErrFailedUnmarshalInput, err.Error())
	}

	js, err := json.Marshal(raw)
	if err != nil {
		return errors.WithStack(chatmodel.ErrFailedUnmarshalInput)
	}
	if err = ljson.Unmarshal(js, v); err != nil {
		return errors.WithMessage(chatmodel.ErrFailedUnmarshalInput, err.Error())
	}
	if err = validate.Struct(v); err != nil {
		return errors.WithMessage(chatmodel.ErrFailedUnmarshalInput, err.Error())
	}
	return nil
}
