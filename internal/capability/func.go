package capability

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// funcCapability adapts a typed Go function to the Capability interface.
type funcCapability[In, Out any] struct {
	name        string
	description string
	schema      map[string]any
	fn          func(context.Context, In) (Out, error)
}

// NewFunc builds a local capability whose input schema is reflected from In.
func NewFunc[In, Out any](name, description string, fn func(context.Context, In) (Out, error)) Capability {
	return &funcCapability[In, Out]{
		name:        name,
		description: description,
		schema:      SchemaFor[In](),
		fn:          fn,
	}
}

func (f *funcCapability[In, Out]) Name() string                { return f.name }
func (f *funcCapability[In, Out]) Description() string         { return f.description }
func (f *funcCapability[In, Out]) InputSchema() map[string]any { return f.schema }

func (f *funcCapability[In, Out]) Call(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in In
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("decode %s arguments: %w", f.name, err)
		}
	}
	out, err := f.fn(ctx, in)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", f.name, err)
	}
	return data, nil
}

// SchemaFor reflects a JSON schema object for T. Fields without omitempty
// are required and additional properties are rejected.
func SchemaFor[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var zero T
	schema := reflector.Reflect(&zero)

	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}

// SchemaProperties splits a reflected schema into its properties and
// required field list, the shape most tool APIs want.
func SchemaProperties(schema map[string]any) (map[string]any, []string) {
	props, _ := schema["properties"].(map[string]any)
	var required []string
	switch r := schema["required"].(type) {
	case []string:
		required = r
	case []any:
		for _, v := range r {
			if s, ok := v.(string); ok {
				required = append(required, s)
			}
		}
	}
	return props, required
}
