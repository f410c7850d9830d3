package schema

import (
	"encoding/json"
	"sync"

	"github.com/cockroachdb/errors"
	gjs "github.com/google/jsonschema-go/jsonschema"
	"github.com/invopop/jsonschema"
)

var resolved sync.Map // *jsonschema.Schema -> *Validator

// Validator checks JSON objects against a reflected schema,
// the same schema that is published to the model.
type Validator struct {
	sc *jsonschema.Schema
	rs *gjs.Resolved
}

// NewValidator resolves the schema for validation.
// The result is cached per schema, the schema must not be changed after the first call.
func NewValidator(sc *jsonschema.Schema) (*Validator, error) {
	if sc == nil {
		return nil, errors.New("schema is required")
	}
	if v, ok := resolved.Load(sc); ok {
		return v.(*Validator), nil
	}

	js, err := json.Marshal(sc)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var gs gjs.Schema
	if err = json.Unmarshal(js, &gs); err != nil {
		return nil, errors.Wrap(err, "unable to convert schema")
	}
	// the inlined schema has no $defs, and the draft is implied
	gs.Schema = ""

	rs, err := gs.Resolve(nil)
	if err != nil {
		return nil, errors.Wrap(err, "unable to resolve schema")
	}
	v, _ := resolved.LoadOrStore(sc, &Validator{sc: sc, rs: rs})
	return v.(*Validator), nil
}

// ApplyDefaults sets the missing optional properties of obj to their defaults,
// nested objects and arrays of objects included. Null values are treated as missing.
func (v *Validator) ApplyDefaults(obj map[string]any) error {
	for k, val := range obj {
		if val == nil {
			delete(obj, k)
		}
	}
	if err := v.rs.ApplyDefaults(&obj); err != nil {
		return errors.WithStack(err)
	}
	if v.sc.Properties == nil {
		return nil
	}
	for pair := v.sc.Properties.Oldest(); pair != nil; pair = pair.Next() {
		switch val := obj[pair.Key].(type) {
		case map[string]any:
			if err := applyNested(pair.Value, val); err != nil {
				return errors.WithMessagef(err, "property %q", pair.Key)
			}
		case []any:
			for _, item := range val {
				if m, ok := item.(map[string]any); ok {
					if err := applyNested(pair.Value.Items, m); err != nil {
						return errors.WithMessagef(err, "items of %q", pair.Key)
					}
				}
			}
		}
	}
	return nil
}

func applyNested(sc *jsonschema.Schema, obj map[string]any) error {
	if sc == nil || sc.Properties == nil {
		return nil
	}
	v, err := NewValidator(sc)
	if err != nil {
		return err
	}
	return v.ApplyDefaults(obj)
}

// Validate checks obj against the schema
func (v *Validator) Validate(obj map[string]any) error {
	if obj == nil {
		return errors.New("arguments are required")
	}
	return errors.WithStack(v.rs.Validate(obj))
}
