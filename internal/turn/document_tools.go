package turn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"

	"github.com/blueprintlabs/blueprint/internal/artifact"
	"github.com/blueprintlabs/blueprint/internal/delta"
	"github.com/blueprintlabs/blueprint/internal/document"
	"github.com/blueprintlabs/blueprint/internal/generator"
)

const createDocumentPrompt = "Write about the given topic. Markdown is supported. Use headings wherever appropriate."

const updateDocumentPrompt = "You are a helpful writing assistant. Based on the description, please update the piece of writing."

const suggestionsPrompt = `You are a helpful writing assistant. Given a piece of writing, please offer suggestions to improve the piece of writing and describe the change. It is very important for the edits to contain full sentences instead of just words. Max 5 suggestions.

Respond with a JSON array only. Each element must be an object with the keys "originalSentence", "suggestedSentence" and "description".`

const createMermaidPrompt = `You are a specialized assistant for diagram recognition and mermaid code generation.
1. First analyze the input and identify its diagram type (sequence diagram, flowchart, class diagram, state diagram, requirement diagram, erDiagram, etc.)
2. Based on the recognition result, generate corresponding standard mermaid code
3. Output only the mermaid code, without any explanatory text
4. Ensure the generated code complies with mermaid syntax specifications

Rules:
- For sequence diagrams: Use 'sequenceDiagram' syntax
- For flowcharts: Use 'graph TD' or 'graph LR' syntax
- For class diagrams: Use 'classDiagram' syntax
- For state diagrams: Use 'stateDiagram-v2' syntax
- For entity relationship diagrams: Use 'erDiagram' syntax
- For requirement diagrams: Use 'requirementDiagram' syntax

Maintain proper indentation and syntax structure in the generated code.`

func (ts Toolset) createDocumentTool(sink delta.Sink, userID string) Tool {
	return Tool{
		Name:        "createDocument",
		Description: "Create a document for a writing activity",
		Parameters: objectSchema(map[string]*jsonschema.Schema{
			"title": stringSchema("The title of the document to create"),
		}, "title"),
		Execute: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			title, err := stringArg(args, "title")
			if err != nil {
				return nil, err
			}

			id := uuid.NewString()
			em := NewEmitter(sink, ts.Store, ts.logger(), userID)
			if err := em.Begin(ctx, id, title, artifact.KindText); err != nil {
				return nil, err
			}
			defer func() { _ = em.Abort(ctx) }()

			req := generator.Request{
				System:   createDocumentPrompt,
				Messages: []generator.Message{{Role: generator.RoleUser, Text: title}},
			}
			for chunk, err := range ts.Model.Stream(ctx, req) {
				if err != nil {
					return nil, fmt.Errorf("draft document: %w", err)
				}
				if chunk.Text == "" {
					continue
				}
				if err := em.AppendText(ctx, chunk.Text); err != nil {
					return nil, err
				}
			}
			if err := em.Finish(ctx); err != nil {
				return nil, err
			}

			return map[string]any{
				"id":      id,
				"title":   title,
				"content": "A document was created and is now visible to the user.",
			}, nil
		},
	}
}

func (ts Toolset) updateDocumentTool(sink delta.Sink, userID string) Tool {
	return Tool{
		Name:        "updateDocument",
		Description: "Update a document with the given description",
		Parameters: objectSchema(map[string]*jsonschema.Schema{
			"id":          stringSchema("The ID of the document to update"),
			"description": stringSchema("The description of changes that need to be made"),
		}, "id", "description"),
		Execute: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			id, err := stringArg(args, "id")
			if err != nil {
				return nil, err
			}
			description, err := stringArg(args, "description")
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

			req := generator.Request{
				System: updateDocumentPrompt,
				Messages: []generator.Message{
					{Role: generator.RoleUser, Text: description},
					{Role: generator.RoleUser, Text: doc.Content},
				},
			}
			for chunk, err := range ts.Model.Stream(ctx, req) {
				if err != nil {
					return nil, fmt.Errorf("revise document: %w", err)
				}
				if chunk.Text == "" {
					continue
				}
				if err := em.AppendText(ctx, chunk.Text); err != nil {
					return nil, err
				}
			}
			if err := em.Finish(ctx); err != nil {
				return nil, err
			}

			return map[string]any{
				"id":      id,
				"title":   doc.Title,
				"content": "The document has been updated successfully.",
			}, nil
		},
	}
}

// suggestionElement is the shape the model is asked to produce.
type suggestionElement struct {
	OriginalSentence  string `json:"originalSentence"`
	SuggestedSentence string `json:"suggestedSentence"`
	Description       string `json:"description"`
}

func (ts Toolset) requestSuggestionsTool(sink delta.Sink, userID string) Tool {
	return Tool{
		Name:        "requestSuggestions",
		Description: "Request suggestions for a document",
		Parameters: objectSchema(map[string]*jsonschema.Schema{
			"documentId": stringSchema("The ID of the document to request edits"),
		}, "documentId"),
		Execute: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			documentID, err := stringArg(args, "documentId")
			if err != nil {
				return nil, err
			}

			doc, err := ts.Store.GetByID(ctx, documentID)
			if errors.Is(err, document.ErrNotFound) || (err == nil && doc.Content == "") {
				return map[string]any{"error": "Document not found"}, nil
			}
			if err != nil {
				return nil, fmt.Errorf("load document: %w", err)
			}

			var raw strings.Builder
			req := generator.Request{
				System:   suggestionsPrompt,
				Messages: []generator.Message{{Role: generator.RoleUser, Text: doc.Content}},
			}
			for chunk, err := range ts.Model.Stream(ctx, req) {
				if err != nil {
					return nil, fmt.Errorf("generate suggestions: %w", err)
				}
				raw.WriteString(chunk.Text)
			}

			elements, err := parseSuggestions(raw.String())
			if err != nil {
				return nil, fmt.Errorf("parse suggestions: %w", err)
			}

			records := make([]document.Suggestion, 0, len(elements))
			for _, el := range elements {
				s := delta.Suggestion{
					ID:                uuid.NewString(),
					DocumentID:        documentID,
					DocumentCreatedAt: doc.CreatedAt,
					OriginalText:      el.OriginalSentence,
					SuggestedText:     el.SuggestedSentence,
					Description:       el.Description,
				}
				if err := sink.Append(ctx, delta.Suggest(s)); err != nil {
					return nil, err
				}
				records = append(records, document.Suggestion{
					ID:                s.ID,
					DocumentID:        s.DocumentID,
					DocumentCreatedAt: s.DocumentCreatedAt,
					OriginalText:      s.OriginalText,
					SuggestedText:     s.SuggestedText,
					Description:       s.Description,
					UserID:            userID,
				})
			}

			if userID != "" {
				if err := ts.Store.SaveSuggestions(ctx, records); err != nil {
					return nil, fmt.Errorf("save suggestions: %w", err)
				}
			}

			return map[string]any{
				"id":      documentID,
				"title":   doc.Title,
				"message": "Suggestions have been added to the document",
			}, nil
		},
	}
}

// parseSuggestions accepts the model's JSON array, tolerating a
// ```json fence around it.
func parseSuggestions(raw string) ([]suggestionElement, error) {
	raw = strings.TrimSpace(generator.StripFence(raw, "json"))
	var elements []suggestionElement
	if err := json.Unmarshal([]byte(raw), &elements); err != nil {
		return nil, err
	}
	return elements, nil
}

func (ts Toolset) createMermaidTool(sink delta.Sink, userID string) Tool {
	return Tool{
		Name:        "createMermaid",
		Description: "Identify the diagram type in a description or image and generate the corresponding mermaid code",
		Parameters: objectSchema(map[string]*jsonschema.Schema{
			"title":       stringSchema("The title of the diagram document"),
			"description": stringSchema("The description of the diagram to generate"),
		}, "title", "description"),
		Execute: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			title, err := stringArg(args, "title")
			if err != nil {
				return nil, err
			}
			description, err := stringArg(args, "description")
			if err != nil {
				return nil, err
			}

			id := uuid.NewString()
			em := NewEmitter(sink, ts.Store, ts.logger(), userID)
			if err := em.Begin(ctx, id, title, artifact.KindText); err != nil {
				return nil, err
			}
			defer func() { _ = em.Abort(ctx) }()

			req := generator.Request{
				System:   createMermaidPrompt,
				Messages: []generator.Message{{Role: generator.RoleUser, Text: title + "\n" + description}},
			}
			for chunk, err := range ts.Model.Stream(ctx, req) {
				if err != nil {
					return nil, fmt.Errorf("generate mermaid: %w", err)
				}
				if chunk.Text == "" {
					continue
				}
				if err := em.AppendMermaid(ctx, chunk.Text); err != nil {
					return nil, err
				}
			}
			if err := em.Finish(ctx); err != nil {
				return nil, err
			}

			return map[string]any{
				"id":      id,
				"title":   title,
				"kind":    string(artifact.KindText),
				"content": "A mermaid diagram was created and is now visible to the user.",
			}, nil
		},
	}
}
