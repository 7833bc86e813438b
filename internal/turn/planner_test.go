package turn

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueprintlabs/blueprint/internal/generator"
)

// scriptedResponse is one model call's output.
type scriptedResponse struct {
	chunks []generator.Chunk
	err    error
}

// scriptedModel plays back canned responses, one per Stream call, and
// records every request it saw.
type scriptedModel struct {
	mu        sync.Mutex
	responses []scriptedResponse
	calls     int
	requests  []generator.Request
}

func (m *scriptedModel) Stream(_ context.Context, req generator.Request) iter.Seq2[generator.Chunk, error] {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	var resp scriptedResponse
	if m.calls < len(m.responses) {
		resp = m.responses[m.calls]
	}
	m.calls++
	m.mu.Unlock()

	return func(yield func(generator.Chunk, error) bool) {
		for _, c := range resp.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if resp.err != nil {
			yield(generator.Chunk{}, resp.err)
		}
	}
}

func textChunks(chunks ...string) []generator.Chunk {
	out := make([]generator.Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = generator.Chunk{Text: c}
	}
	return out
}

func TestPlannerTextOnlyTurn(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{responses: []scriptedResponse{
		{chunks: textChunks("Hello, ", "there.")},
	}}
	p, err := NewPlanner(PlannerConfig{Model: model, Registry: NewRegistry()})
	require.NoError(t, err)

	var streamed []string
	messages, err := p.Run(t.Context(), "system", nil, func(_ context.Context, chunk string) error {
		streamed = append(streamed, chunk)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hello, ", "there."}, streamed)
	require.Len(t, messages, 1)
	assert.Equal(t, generator.RoleModel, messages[0].Role)
	assert.Equal(t, "Hello, there.", messages[0].Text)
}

func TestPlannerToolLoop(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{responses: []scriptedResponse{
		{chunks: []generator.Chunk{
			{Text: "Let me check."},
			{Calls: []generator.ToolCall{{Name: "lookup", Args: map[string]any{"key": "k1"}}}},
		}},
		{chunks: textChunks("The value is v1.")},
	}}

	reg := NewRegistry()
	var gotArgs map[string]any
	require.NoError(t, reg.Register(Tool{
		Name: "lookup",
		Execute: func(_ context.Context, args map[string]any) (map[string]any, error) {
			gotArgs = args
			return map[string]any{"value": "v1"}, nil
		},
	}))

	p, err := NewPlanner(PlannerConfig{Model: model, Registry: reg})
	require.NoError(t, err)

	messages, err := p.Run(t.Context(), "system", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"key": "k1"}, gotArgs)

	// model(call) -> tool results -> model(final)
	require.Len(t, messages, 3)
	assert.Equal(t, generator.RoleModel, messages[0].Role)
	require.Len(t, messages[0].Calls, 1)
	assert.Equal(t, generator.RoleTool, messages[1].Role)
	require.Len(t, messages[1].Results, 1)
	assert.Equal(t, map[string]any{"value": "v1"}, messages[1].Results[0].Response)
	assert.Equal(t, "The value is v1.", messages[2].Text)

	// The second model call saw the tool results.
	require.Len(t, model.requests, 2)
	assert.Len(t, model.requests[1].Messages, 2)
}

func TestPlannerToolFailureBecomesResult(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{responses: []scriptedResponse{
		{chunks: []generator.Chunk{{Calls: []generator.ToolCall{{Name: "flaky"}}}}},
		{chunks: textChunks("Sorry about that.")},
	}}

	reg := NewRegistry()
	require.NoError(t, reg.Register(Tool{
		Name: "flaky",
		Execute: func(context.Context, map[string]any) (map[string]any, error) {
			return nil, errors.New("upstream timeout")
		},
	}))

	p, err := NewPlanner(PlannerConfig{Model: model, Registry: reg})
	require.NoError(t, err)

	messages, err := p.Run(t.Context(), "", nil, nil)
	require.NoError(t, err)

	require.Len(t, messages, 3)
	result := messages[1].Results[0].Response
	assert.Equal(t, "flaky failed", result["error"])
	assert.Equal(t, "upstream timeout", result["details"])
}

func TestPlannerUnknownTool(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{responses: []scriptedResponse{
		{chunks: []generator.Chunk{{Calls: []generator.ToolCall{{Name: "ghost"}}}}},
		{chunks: textChunks("ok")},
	}}

	p, err := NewPlanner(PlannerConfig{Model: model, Registry: NewRegistry()})
	require.NoError(t, err)

	messages, err := p.Run(t.Context(), "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "unknown tool: ghost", messages[1].Results[0].Response["error"])
}

func TestPlannerMaxTurns(t *testing.T) {
	t.Parallel()

	// A model that calls a tool forever must be cut off at the bound.
	responses := make([]scriptedResponse, 10)
	for i := range responses {
		responses[i] = scriptedResponse{chunks: []generator.Chunk{
			{Calls: []generator.ToolCall{{Name: "noop"}}},
		}}
	}
	model := &scriptedModel{responses: responses}

	reg := NewRegistry()
	require.NoError(t, reg.Register(Tool{
		Name: "noop",
		Execute: func(context.Context, map[string]any) (map[string]any, error) {
			return map[string]any{}, nil
		},
	}))

	p, err := NewPlanner(PlannerConfig{Model: model, Registry: reg, MaxTurns: 3})
	require.NoError(t, err)

	_, err = p.Run(t.Context(), "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, model.calls)
}

// stalledModel never produces a chunk until its context dies.
type stalledModel struct{}

func (stalledModel) Stream(ctx context.Context, _ generator.Request) iter.Seq2[generator.Chunk, error] {
	return func(yield func(generator.Chunk, error) bool) {
		<-ctx.Done()
		yield(generator.Chunk{}, ctx.Err())
	}
}

func TestPlannerStreamTimeout(t *testing.T) {
	t.Parallel()

	p, err := NewPlanner(PlannerConfig{
		Model:         stalledModel{},
		Registry:      NewRegistry(),
		StreamTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = p.Run(t.Context(), "", nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPlannerToolTimeout(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{responses: []scriptedResponse{
		{chunks: []generator.Chunk{{Calls: []generator.ToolCall{{Name: "stall"}}}}},
		{chunks: textChunks("That took too long.")},
	}}

	reg := NewRegistry()
	require.NoError(t, reg.Register(Tool{
		Name: "stall",
		Execute: func(ctx context.Context, _ map[string]any) (map[string]any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}))

	p, err := NewPlanner(PlannerConfig{
		Model:       model,
		Registry:    reg,
		ToolTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	messages, err := p.Run(t.Context(), "", nil, nil)
	require.NoError(t, err)

	// The stuck tool dies at the timeout and becomes a structured
	// failure result; the turn itself survives.
	require.Len(t, messages, 3)
	result := messages[1].Results[0].Response
	assert.Equal(t, "stall failed", result["error"])
	assert.Contains(t, result["details"], context.DeadlineExceeded.Error())
}

func TestPlannerModelError(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{responses: []scriptedResponse{
		{chunks: textChunks("partial"), err: errors.New("stream reset")},
	}}
	p, err := NewPlanner(PlannerConfig{Model: model, Registry: NewRegistry()})
	require.NoError(t, err)

	_, err = p.Run(t.Context(), "", nil, nil)
	assert.ErrorContains(t, err, "stream reset")
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	tool := Tool{Name: "t", Execute: func(context.Context, map[string]any) (map[string]any, error) {
		return nil, nil
	}}
	require.NoError(t, reg.Register(tool))
	assert.Error(t, reg.Register(tool))
	assert.Equal(t, []string{"t"}, reg.Names())
}
