package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Workflow failure stages. Callers branch on these to build structured
// tool errors without parsing message text.
const (
	WorkflowStageTransport = "transport"
	WorkflowStageStatus    = "status"
	WorkflowStageDecode    = "decode"
	WorkflowStageResponse  = "response"
)

// WorkflowError reports which stage of a workflow run failed.
type WorkflowError struct {
	Stage      string
	StatusCode int
	Err        error
}

func (e *WorkflowError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("workflow %s failure (status %d): %v", e.Stage, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("workflow %s failure: %v", e.Stage, e.Err)
}

func (e *WorkflowError) Unwrap() error { return e.Err }

// WorkflowOutputs is the useful subset of a design workflow response.
// Code fences are already stripped from the diagram and description.
type WorkflowOutputs struct {
	SequenceDiagram     string
	SequenceDescription string
	// ServiceInterface is the raw JSON the workflow produced, or empty.
	ServiceInterface string
}

// WorkflowClient runs blocking design workflows over a Dify-compatible
// HTTP API. One client serves every workflow; the per-workflow API key
// is passed at call time because each tool owns its own workflow app.
type WorkflowClient struct {
	baseURL string
	user    string
	http    *http.Client
	logger  *slog.Logger
}

// NewWorkflowClient creates a client for the workflow API at baseURL.
// user identifies this caller to the workflow platform.
func NewWorkflowClient(baseURL, user string, logger *slog.Logger) *WorkflowClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		user:    user,
		http:    &http.Client{Timeout: 120 * time.Second},
		logger:  logger,
	}
}

type workflowRequest struct {
	Inputs       map[string]any `json:"inputs"`
	ResponseMode string         `json:"response_mode"`
	User         string         `json:"user"`
}

type workflowEnvelope struct {
	Data *struct {
		Outputs *struct {
			SequenceDiagram     string `json:"sequencediagram"`
			SequenceDescription string `json:"sequenceDescription"`
			ServiceInterface    string `json:"serviceinterface"`
		} `json:"outputs"`
		Status string `json:"status"`
		Error  string `json:"error"`
	} `json:"data"`
}

// Run executes one workflow in blocking mode and returns its outputs.
// Every failure is a *WorkflowError identifying the stage.
func (c *WorkflowClient) Run(ctx context.Context, apiKey string, inputs map[string]any) (WorkflowOutputs, error) {
	body, err := json.Marshal(workflowRequest{
		Inputs:       inputs,
		ResponseMode: "blocking",
		User:         c.user,
	})
	if err != nil {
		return WorkflowOutputs{}, &WorkflowError{Stage: WorkflowStageDecode, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/workflows/run", bytes.NewReader(body))
	if err != nil {
		return WorkflowOutputs{}, &WorkflowError{Stage: WorkflowStageTransport, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return WorkflowOutputs{}, &WorkflowError{Stage: WorkflowStageTransport, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return WorkflowOutputs{}, &WorkflowError{
			Stage:      WorkflowStageStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(snippet))),
		}
	}

	var envelope workflowEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return WorkflowOutputs{}, &WorkflowError{Stage: WorkflowStageDecode, Err: err}
	}
	if envelope.Data == nil || envelope.Data.Outputs == nil {
		return WorkflowOutputs{}, &WorkflowError{
			Stage: WorkflowStageResponse,
			Err:   fmt.Errorf("response has no outputs"),
		}
	}
	if envelope.Data.Error != "" {
		return WorkflowOutputs{}, &WorkflowError{
			Stage: WorkflowStageResponse,
			Err:   fmt.Errorf("workflow reported: %s", envelope.Data.Error),
		}
	}

	c.logger.Debug("workflow run completed", "elapsed", time.Since(start))

	outputs := envelope.Data.Outputs
	return WorkflowOutputs{
		SequenceDiagram:     StripFence(outputs.SequenceDiagram, "zenuml"),
		SequenceDescription: StripFence(outputs.SequenceDescription, "markdown"),
		ServiceInterface:    outputs.ServiceInterface,
	}, nil
}

// StripFence removes ```<lang> opening fences and trailing ``` closers,
// leaving the fenced body intact.
func StripFence(s, lang string) string {
	s = strings.ReplaceAll(s, "```"+lang+"\n", "")
	return strings.ReplaceAll(s, "\n```", "")
}
