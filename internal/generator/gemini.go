package generator

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"golang.org/x/time/rate"
	genai "google.golang.org/genai"
)

// GeminiConfig tunes the streaming model client.
type GeminiConfig struct {
	APIKey string
	Model  string
	// Requests per second granted to this process; 0 disables limiting.
	RequestsPerSecond float64
	Burst             int
}

// Gemini is a Model backed by the official genai client. Cross-cutting
// concerns stay here (rate limiting, logging); callers see only the
// Model contract.
type Gemini struct {
	cli     *genai.Client
	model   string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewGemini creates a streaming client for cfg.Model.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*Gemini, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Gemini{cli: cli, model: cfg.Model, limiter: limiter, logger: logger}, nil
}

// Stream issues one generation call and yields chunks as they arrive.
func (g *Gemini) Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		if err := g.limiter.Wait(ctx); err != nil {
			yield(Chunk{}, fmt.Errorf("rate limit wait: %w", err))
			return
		}

		contents := toContents(req.Messages)
		config := &genai.GenerateContentConfig{}
		if req.System != "" {
			config.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: req.System}},
			}
		}
		if len(req.Tools) > 0 {
			config.Tools = []*genai.Tool{{FunctionDeclarations: toDeclarations(req.Tools)}}
		}

		for resp, err := range g.cli.Models.GenerateContentStream(ctx, g.model, contents, config) {
			if err != nil {
				yield(Chunk{}, fmt.Errorf("generate content: %w", err))
				return
			}
			for _, chunk := range toChunks(resp) {
				if !yield(chunk, nil) {
					return
				}
			}
		}
	}
}

func toContents(messages []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		content := &genai.Content{Role: string(m.Role)}
		if m.Text != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: m.Text})
		}
		for _, call := range m.Calls {
			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{Name: call.Name, Args: call.Args},
			})
		}
		for _, result := range m.Results {
			content.Parts = append(content.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{Name: result.Name, Response: result.Response},
			})
		}
		if len(content.Parts) == 0 {
			continue
		}
		out = append(out, content)
	}
	return out
}

func toDeclarations(tools []ToolDeclaration) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		out = append(out, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.Parameters,
		})
	}
	return out
}

func toChunks(resp *genai.GenerateContentResponse) []Chunk {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var chunks []Chunk
	var calls []ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			chunks = append(chunks, Chunk{Text: part.Text})
		}
		if part.FunctionCall != nil {
			calls = append(calls, ToolCall{Name: part.FunctionCall.Name, Args: part.FunctionCall.Args})
		}
	}
	if len(calls) > 0 {
		chunks = append(chunks, Chunk{Calls: calls})
	}
	return chunks
}
