package turn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"

	"github.com/blueprintlabs/blueprint/internal/artifact"
	"github.com/blueprintlabs/blueprint/internal/delta"
	"github.com/blueprintlabs/blueprint/internal/document"
)

const workflowFailureMessage = "Failed to run design workflow"

// designPayload is the structured content a design episode stores: the
// diagram source plus its prose description.
type designPayload struct {
	SequenceDiagram string `json:"sequencediagram"`
	MarkdownContent string `json:"markdownContent"`
}

func (ts Toolset) functionDesignTool(sink delta.Sink, userID string) Tool {
	return Tool{
		Name:        "functionDesign",
		Description: "Run a design workflow for a use case and present the resulting sequence design",
		Parameters: objectSchema(map[string]*jsonschema.Schema{
			"useCase": stringSchema("The use case for the workflow"),
		}, "useCase"),
		Execute: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			useCase, err := stringArg(args, "useCase")
			if err != nil {
				return nil, err
			}

			id := uuid.NewString()
			em := NewEmitter(sink, ts.Store, ts.logger(), userID)
			if err := em.Begin(ctx, id, useCase, artifact.KindText); err != nil {
				return nil, err
			}
			defer func() { _ = em.Abort(ctx) }()

			payload, err := ts.runDesignWorkflow(ctx, useCase)
			if err != nil {
				return workflowFailure(err), nil
			}
			if err := em.ReplaceDesign(ctx, payload); err != nil {
				return nil, err
			}
			if err := em.Finish(ctx); err != nil {
				return nil, err
			}

			return map[string]any{
				"id":      id,
				"title":   useCase,
				"content": "A function design was created and is now visible to the user.",
			}, nil
		},
	}
}

func (ts Toolset) updateDesignTool(sink delta.Sink, userID string) Tool {
	return Tool{
		Name:        "updateDesign",
		Description: "Update a function design with the given use case",
		Parameters: objectSchema(map[string]*jsonschema.Schema{
			"id":      stringSchema("The ID of the document to update"),
			"useCase": stringSchema("The use case for the workflow"),
		}, "id", "useCase"),
		Execute: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			id, err := stringArg(args, "id")
			if err != nil {
				return nil, err
			}
			useCase, err := stringArg(args, "useCase")
			if err != nil {
				return nil, err
			}

			doc, err := ts.Store.GetByID(ctx, id)
			if errors.Is(err, document.ErrNotFound) {
				return map[string]any{"error": "Document not found"}, nil
			}
			if err != nil {
				return nil, fmt.Errorf("load document: %w", err)
			}

			em := NewEmitter(sink, ts.Store, ts.logger(), userID)
			if err := em.Resume(ctx, doc); err != nil {
				return nil, err
			}
			defer func() { _ = em.Abort(ctx) }()

			payload, err := ts.runDesignWorkflow(ctx, useCase)
			if err != nil {
				return workflowFailure(err), nil
			}
			if err := em.ReplaceDesign(ctx, payload); err != nil {
				return nil, err
			}
			if err := em.Finish(ctx); err != nil {
				return nil, err
			}

			return map[string]any{
				"id":      id,
				"title":   doc.Title,
				"content": "The function design has been updated successfully.",
			}, nil
		},
	}
}

func (ts Toolset) serviceDiagramTool(sink delta.Sink, userID string) Tool {
	return Tool{
		Name:        "serviceDiagram",
		Description: "Create a service interface diagram for a use case",
		Parameters: objectSchema(map[string]*jsonschema.Schema{
			"useCase": stringSchema("The use case for the diagram"),
		}, "useCase"),
		Execute: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			useCase, err := stringArg(args, "useCase")
			if err != nil {
				return nil, err
			}

			id := uuid.NewString()
			em := NewEmitter(sink, ts.Store, ts.logger(), userID)
			if err := em.Begin(ctx, id, useCase, artifact.KindText); err != nil {
				return nil, err
			}
			defer func() { _ = em.Abort(ctx) }()

			outputs, err := ts.Workflow.Run(ctx, ts.DiagramKey, map[string]any{"usecase": useCase})
			if err != nil {
				return workflowFailure(err), nil
			}

			payload, err := serviceGraphPayload(outputs.ServiceInterface)
			if err != nil {
				return workflowFailure(err), nil
			}
			if err := em.ReplaceDiagram(ctx, payload); err != nil {
				return nil, err
			}
			if err := em.Finish(ctx); err != nil {
				return nil, err
			}

			return map[string]any{
				"id":      id,
				"title":   useCase,
				"content": "A diagram was created and is now visible to the user.",
			}, nil
		},
	}
}

func (ts Toolset) runDesignWorkflow(ctx context.Context, useCase string) (string, error) {
	outputs, err := ts.Workflow.Run(ctx, ts.DesignKey, map[string]any{"usecase": useCase})
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(designPayload{
		SequenceDiagram: outputs.SequenceDiagram,
		MarkdownContent: outputs.SequenceDescription,
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// serviceGraphPayload unwraps the workflow's serviceInterfaces list and
// re-wraps it under the key the classifier recognizes.
func serviceGraphPayload(raw string) (string, error) {
	var parsed struct {
		ServiceInterfaces json.RawMessage `json:"serviceInterfaces"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", fmt.Errorf("decode service interface output: %w", err)
	}
	if len(parsed.ServiceInterfaces) == 0 {
		return "", fmt.Errorf("service interface output has no serviceInterfaces")
	}
	payload, err := json.Marshal(map[string]json.RawMessage{
		"serviceInterface": parsed.ServiceInterfaces,
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func workflowFailure(err error) map[string]any {
	return map[string]any{
		"error":   workflowFailureMessage,
		"details": err.Error(),
	}
}
