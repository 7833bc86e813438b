package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/blueprintlabs/blueprint/internal/generator"
)

// DefaultMaxTurns bounds the agentic loop: model turns alternate with
// tool dispatch until the model stops calling tools or the bound hits.
const DefaultMaxTurns = 5

// DefaultStreamTimeout bounds one model streaming call.
const DefaultStreamTimeout = 2 * time.Minute

// DefaultToolTimeout bounds one tool execution, including any model or
// workflow calls the tool makes.
const DefaultToolTimeout = 2 * time.Minute

// TextFunc receives assistant narration chunks as they stream.
// Returning an error aborts the turn.
type TextFunc func(ctx context.Context, chunk string) error

// PlannerConfig carries the planner's dependencies.
type PlannerConfig struct {
	Model    generator.Model
	Registry *Registry
	MaxTurns int
	Logger   *slog.Logger

	// StreamTimeout bounds each model streaming call. Zero means
	// DefaultStreamTimeout.
	StreamTimeout time.Duration

	// ToolTimeout bounds each tool execution. Zero means
	// DefaultToolTimeout.
	ToolTimeout time.Duration
}

func (cfg PlannerConfig) validate() error {
	if cfg.Model == nil {
		return errors.New("model is required")
	}
	if cfg.Registry == nil {
		return errors.New("registry is required")
	}
	return nil
}

// Planner drives the model/tool loop for one user turn. Tool dispatch
// lives here, behind the registry, so every tool runs under the same
// timeout and error policy regardless of which model requested it.
type Planner struct {
	model         generator.Model
	registry      *Registry
	maxTurns      int
	streamTimeout time.Duration
	toolTimeout   time.Duration
	logger        *slog.Logger
}

// NewPlanner creates a planner with validated configuration.
func NewPlanner(cfg PlannerConfig) (*Planner, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	streamTimeout := cfg.StreamTimeout
	if streamTimeout <= 0 {
		streamTimeout = DefaultStreamTimeout
	}
	toolTimeout := cfg.ToolTimeout
	if toolTimeout <= 0 {
		toolTimeout = DefaultToolTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		model:         cfg.Model,
		registry:      cfg.Registry,
		maxTurns:      maxTurns,
		streamTimeout: streamTimeout,
		toolTimeout:   toolTimeout,
		logger:        logger,
	}, nil
}

// Run executes the loop and returns the full conversation, history
// included, with the model and tool messages appended.
func (p *Planner) Run(ctx context.Context, system string, history []generator.Message, onText TextFunc) ([]generator.Message, error) {
	messages := make([]generator.Message, len(history))
	copy(messages, history)

	for turn := 0; turn < p.maxTurns; turn++ {
		req := generator.Request{
			System:   system,
			Messages: messages,
			Tools:    p.registry.Declarations(),
		}
		text, calls, err := p.modelTurn(ctx, req, onText)
		if err != nil {
			return messages, fmt.Errorf("model turn %d: %w", turn, err)
		}

		messages = append(messages, generator.Message{
			Role:  generator.RoleModel,
			Text:  text,
			Calls: calls,
		})
		if len(calls) == 0 {
			return messages, nil
		}

		results := make([]generator.ToolResult, 0, len(calls))
		for _, call := range calls {
			results = append(results, generator.ToolResult{
				Name:     call.Name,
				Response: p.dispatch(ctx, call),
			})
		}
		messages = append(messages, generator.Message{
			Role:    generator.RoleTool,
			Results: results,
		})
	}

	p.logger.Warn("agentic loop hit max turns", "max_turns", p.maxTurns)
	return messages, nil
}

// modelTurn streams one bounded model call, forwarding text chunks and
// collecting tool calls. A stalled stream dies at the timeout instead of
// pinning the turn forever.
func (p *Planner) modelTurn(ctx context.Context, req generator.Request, onText TextFunc) (string, []generator.ToolCall, error) {
	ctx, cancel := context.WithTimeout(ctx, p.streamTimeout)
	defer cancel()

	var text strings.Builder
	var calls []generator.ToolCall
	for chunk, err := range p.model.Stream(ctx, req) {
		if err != nil {
			return text.String(), calls, err
		}
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
			if onText != nil {
				if err := onText(ctx, chunk.Text); err != nil {
					return text.String(), calls, err
				}
			}
		}
		calls = append(calls, chunk.Calls...)
	}
	return text.String(), calls, nil
}

// dispatch runs one tool call under the shared per-call timeout.
// Failures become structured results so the model can recover instead
// of the turn dying.
func (p *Planner) dispatch(ctx context.Context, call generator.ToolCall) map[string]any {
	tool, ok := p.registry.Get(call.Name)
	if !ok {
		p.logger.Warn("model requested unknown tool", "tool", call.Name)
		return map[string]any{"error": fmt.Sprintf("unknown tool: %s", call.Name)}
	}

	ctx, cancel := context.WithTimeout(ctx, p.toolTimeout)
	defer cancel()

	p.logger.Debug("dispatching tool", "tool", call.Name)
	result, err := tool.Execute(ctx, call.Args)
	if err != nil {
		p.logger.Warn("tool execution failed", "tool", call.Name, "error", err)
		return map[string]any{
			"error":   fmt.Sprintf("%s failed", call.Name),
			"details": err.Error(),
		}
	}
	return result
}
