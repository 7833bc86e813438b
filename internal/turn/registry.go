package turn

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/blueprintlabs/blueprint/internal/generator"
)

// Tool is one capability the model may call. Execute returns the tool
// result object sent back to the model; an error becomes a structured
// {error, details} result instead of aborting the turn.
type Tool struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
	Execute     func(ctx context.Context, args map[string]any) (map[string]any, error)
}

// Registry holds the tools available to a turn, preserving registration
// order for the model-facing declarations.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Names are unique per registry.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if t.Execute == nil {
		return fmt.Errorf("tool %s has no execute function", t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %s already registered", t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Declarations renders the registry for the model.
func (r *Registry) Declarations() []generator.ToolDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]generator.ToolDeclaration, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, generator.ToolDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return out
}
