package turn

import (
	"errors"
	"log/slog"

	"github.com/blueprintlabs/blueprint/internal/delta"
	"github.com/blueprintlabs/blueprint/internal/document"
	"github.com/blueprintlabs/blueprint/internal/generator"
)

// Toolset bundles the dependencies shared by the built-in tools. One
// toolset serves the whole process; per-session state (the delta sink
// and user) is bound at registration time.
type Toolset struct {
	Store    document.Store
	Model    generator.Model
	Workflow *generator.WorkflowClient

	// Per-workflow API keys: each design tool fronts its own workflow app.
	DesignKey  string
	DiagramKey string

	// WeatherURL overrides the forecast endpoint, for tests.
	WeatherURL string

	Logger *slog.Logger
}

// Validate reports whether the toolset has every collaborator the
// built-in tools need.
func (ts Toolset) Validate() error {
	if ts.Store == nil {
		return errors.New("document store is required")
	}
	if ts.Model == nil {
		return errors.New("model is required")
	}
	if ts.Workflow == nil {
		return errors.New("workflow client is required")
	}
	return nil
}

func (ts Toolset) logger() *slog.Logger {
	if ts.Logger == nil {
		return slog.Default()
	}
	return ts.Logger
}

// Register adds every built-in tool to r, bound to the session's delta
// sink and user.
func (ts Toolset) Register(r *Registry, sink delta.Sink, userID string) error {
	if err := ts.Validate(); err != nil {
		return err
	}
	tools := []Tool{
		ts.createDocumentTool(sink, userID),
		ts.updateDocumentTool(sink, userID),
		ts.requestSuggestionsTool(sink, userID),
		ts.createMermaidTool(sink, userID),
		ts.functionDesignTool(sink, userID),
		ts.updateDesignTool(sink, userID),
		ts.serviceDiagramTool(sink, userID),
		ts.weatherTool(),
	}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}
