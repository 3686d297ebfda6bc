// Package capability binds named, schema-described callables ("tools") so the
// orchestration code can invoke them by name without knowing whether they run
// in-process or behind a remote gateway.
package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownCapability is returned when no binding exists for a name.
	ErrUnknownCapability = errors.New("unknown capability")
	// ErrApprovalRequired is returned when a binding is not auto-approved and
	// the approver declined, or no approver is configured.
	ErrApprovalRequired = errors.New("capability call requires approval")
)

// Capability is a named callable with a declared JSON input schema.
type Capability interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Call(ctx context.Context, args json.RawMessage) (json.RawMessage, error)
}

// Binding attaches the approval policy to a capability.
type Binding struct {
	Capability
	AutoApprove bool
}

// Approver decides whether a non-auto-approved call may proceed.
type Approver func(ctx context.Context, name string, args json.RawMessage) (bool, error)

// Registry resolves capabilities by name. Register everything before the
// registry is shared; lookups are read-only afterwards.
type Registry struct {
	bindings map[string]Binding
	approver Approver
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[string]Binding)}
}

// Register adds a capability under its declared name.
func (r *Registry) Register(c Capability, autoApprove bool) error {
	name := c.Name()
	if name == "" {
		return fmt.Errorf("register capability: empty name")
	}
	if _, exists := r.bindings[name]; exists {
		return fmt.Errorf("register capability: %q already registered", name)
	}
	r.bindings[name] = Binding{Capability: c, AutoApprove: autoApprove}
	return nil
}

// MustRegister is Register for static setup code.
func (r *Registry) MustRegister(c Capability, autoApprove bool) {
	if err := r.Register(c, autoApprove); err != nil {
		panic(err)
	}
}

// SetApprover installs the approval callback used for bindings that are not
// auto-approved.
func (r *Registry) SetApprover(a Approver) {
	r.approver = a
}

// Lookup returns the binding for name.
func (r *Registry) Lookup(name string) (Binding, bool) {
	b, ok := r.bindings[name]
	return b, ok
}

// Bindings returns all bindings sorted by name.
func (r *Registry) Bindings() []Binding {
	out := make([]Binding, 0, len(r.bindings))
	for _, b := range r.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Call marshals args, applies the approval policy and invokes the named
// capability.
func (r *Registry) Call(ctx context.Context, name string, args any) (json.RawMessage, error) {
	b, ok := r.bindings[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	}

	raw, err := marshalArgs(args)
	if err != nil {
		return nil, fmt.Errorf("marshal %s arguments: %w", name, err)
	}

	if !b.AutoApprove {
		if r.approver == nil {
			return nil, fmt.Errorf("%w: %s", ErrApprovalRequired, name)
		}
		approved, err := r.approver(ctx, name, raw)
		if err != nil {
			return nil, fmt.Errorf("approve %s: %w", name, err)
		}
		if !approved {
			return nil, fmt.Errorf("%w: %s (declined)", ErrApprovalRequired, name)
		}
	}

	return b.Call(ctx, raw)
}

func marshalArgs(args any) (json.RawMessage, error) {
	switch v := args.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	default:
		return json.Marshal(v)
	}
}
