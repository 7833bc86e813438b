// Package generator adapts external content producers: the streaming
// language model that narrates and drafts artifacts, and the blocking
// design workflow that returns structured diagrams.
package generator

import (
	"context"
	"iter"

	"github.com/google/jsonschema-go/jsonschema"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	RoleTool  Role = "tool"
)

// ToolCall is a model request to invoke a registered capability.
type ToolCall struct {
	Name string
	Args map[string]any
}

// ToolResult carries a tool's response back into the conversation.
type ToolResult struct {
	Name     string
	Response map[string]any
}

// Message is one turn of conversation history.
type Message struct {
	Role    Role
	Text    string
	Calls   []ToolCall
	Results []ToolResult
}

// ToolDeclaration describes a capability the model may call.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// Request is one model invocation: history plus the tools available on
// this turn.
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolDeclaration
}

// Chunk is one streamed increment of model output. Text and Calls are
// never both set in the same chunk.
type Chunk struct {
	Text  string
	Calls []ToolCall
}

// Model streams content for a request. The returned sequence yields
// chunks in order; on failure it yields a final non-nil error and stops.
type Model interface {
	Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error]
}
