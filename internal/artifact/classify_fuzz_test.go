package artifact

import (
	"strings"
	"testing"
)

// FuzzClassify tests the content classifier with random inputs.
func FuzzClassify(f *testing.F) {
	// Seed with each recognized shape
	f.Add(`{"sequencediagram":"sequenceDiagram\nA->>B: hi","markdownContent":"# Design"}`)
	f.Add(`{"serviceInterface":[{"name":"orders"}]}`)
	f.Add("sequenceDiagram\nA->>B: hi")
	f.Add("graph TD\nA-->B")
	f.Add("```mermaid\nflowchart LR\n```")
	f.Add("plain prose")

	// Seed with malformed and adversarial inputs
	f.Add(`{"serviceInterface":null}`)
	f.Add(`{"sequencediagram":`)
	f.Add(`{`)
	f.Add("")
	f.Add("   \n\t  ")
	f.Add(`{"serviceInterface":"` + strings.Repeat("a", 10000) + `"}`)
	f.Add(strings.Repeat("{", 1000))
	f.Add("\x00\x01sequenceDiagram")

	f.Fuzz(func(t *testing.T, content string) {
		// Classify must never panic and must land in the known set.
		switch view := Classify(content); view {
		case ViewRaw, ViewSequenceDesign, ViewServiceGraph, ViewDiagramMarkup:
		default:
			t.Errorf("Classify(%q) = %q, not a known view", content, view)
		}
	})
}
