package artifact

import (
	"encoding/json"
	"strings"
)

// ViewKind names the structured view a content blob projects to.
type ViewKind string

const (
	// ViewRaw falls through to generic text/code rendering.
	ViewRaw ViewKind = "raw"

	// ViewSequenceDesign is a sequence diagram with an accompanying
	// markdown description, produced by the design workflow.
	ViewSequenceDesign ViewKind = "sequenceDesign"

	// ViewServiceGraph is a service-interface graph, produced by the
	// diagram workflow.
	ViewServiceGraph ViewKind = "serviceGraph"

	// ViewDiagramMarkup is raw diagram grammar (mermaid and friends)
	// outside any JSON wrapper.
	ViewDiagramMarkup ViewKind = "diagramMarkup"
)

// structuredContent is the superset of the two recognized JSON shapes.
type structuredContent struct {
	SequenceDiagram  *string         `json:"sequencediagram"`
	MarkdownContent  *string         `json:"markdownContent"`
	ServiceInterface json.RawMessage `json:"serviceInterface"`
}

// diagramTokens are opening tokens of the diagram grammars the client
// can render. Matched at line start after trimming.
var diagramTokens = []string{
	"sequenceDiagram",
	"flowchart",
	"graph TD",
	"graph LR",
	"classDiagram",
	"stateDiagram",
	"erDiagram",
	"requirementDiagram",
}

// Classify decides which structured view to project from content. It is
// a pure function of content shape: JSON parse attempts first, then a
// diagram-grammar scan. Malformed JSON is never an error; it simply
// falls through to ViewRaw.
func Classify(content string) ViewKind {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ViewRaw
	}

	if strings.HasPrefix(trimmed, "{") {
		var sc structuredContent
		if err := json.Unmarshal([]byte(trimmed), &sc); err == nil {
			if len(sc.ServiceInterface) > 0 && string(sc.ServiceInterface) != "null" {
				return ViewServiceGraph
			}
			if sc.SequenceDiagram != nil || sc.MarkdownContent != nil {
				return ViewSequenceDesign
			}
		}
		return ViewRaw
	}

	if hasDiagramMarkup(trimmed) {
		return ViewDiagramMarkup
	}
	return ViewRaw
}

// hasDiagramMarkup reports whether content contains a fenced diagram
// block or opens with a known diagram grammar token.
func hasDiagramMarkup(content string) bool {
	if strings.Contains(content, "```mermaid") || strings.Contains(content, "```zenuml") {
		return true
	}
	for line := range strings.Lines(content) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, tok := range diagramTokens {
			if strings.HasPrefix(line, tok) {
				return true
			}
		}
		// Only the first non-empty line can open a diagram grammar.
		return false
	}
	return false
}
