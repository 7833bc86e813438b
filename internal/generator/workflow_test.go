package generator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowRun(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotBody workflowRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		assert.Equal(t, "/workflows/run", r.URL.Path)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"status": "succeeded",
				"outputs": map[string]any{
					"sequencediagram":     "```zenuml\nA->B: hi\n```",
					"sequenceDescription": "```markdown\nThe flow.\n```",
				},
			},
		})
	}))
	defer srv.Close()

	c := NewWorkflowClient(srv.URL, "blueprint", nil)
	out, err := c.Run(t.Context(), "key-123", map[string]any{"usecase": "checkout"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer key-123", gotAuth)
	assert.Equal(t, "blocking", gotBody.ResponseMode)
	assert.Equal(t, "blueprint", gotBody.User)
	assert.Equal(t, "checkout", gotBody.Inputs["usecase"])

	// Fences are stripped before the outputs reach callers.
	assert.Equal(t, "A->B: hi", out.SequenceDiagram)
	assert.Equal(t, "The flow.", out.SequenceDescription)
	assert.Empty(t, out.ServiceInterface)
}

func TestWorkflowRunErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantStage string
		wantCode  int
	}{
		{
			name: "non-2xx status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "quota exceeded", http.StatusTooManyRequests)
			},
			wantStage: WorkflowStageStatus,
			wantCode:  http.StatusTooManyRequests,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("{not json"))
			},
			wantStage: WorkflowStageDecode,
		},
		{
			name: "missing outputs",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"data":{"status":"succeeded"}}`))
			},
			wantStage: WorkflowStageResponse,
		},
		{
			name: "workflow reported error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"data":{"outputs":{},"error":"node failed"}}`))
			},
			wantStage: WorkflowStageResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewWorkflowClient(srv.URL, "blueprint", nil)
			_, err := c.Run(t.Context(), "key", map[string]any{"usecase": "x"})
			require.Error(t, err)

			var wErr *WorkflowError
			require.ErrorAs(t, err, &wErr)
			assert.Equal(t, tt.wantStage, wErr.Stage)
			if tt.wantCode != 0 {
				assert.Equal(t, tt.wantCode, wErr.StatusCode)
			}
		})
	}
}

func TestWorkflowRunTransportError(t *testing.T) {
	t.Parallel()

	// Point at a server that is already gone.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c := NewWorkflowClient(srv.URL, "blueprint", nil)
	_, err := c.Run(t.Context(), "key", nil)

	var wErr *WorkflowError
	require.ErrorAs(t, err, &wErr)
	assert.Equal(t, WorkflowStageTransport, wErr.Stage)
}

func TestStripFence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		lang string
		want string
	}{
		{"fenced", "```zenuml\nA->B\n```", "zenuml", "A->B"},
		{"no fence", "A->B", "zenuml", "A->B"},
		{"wrong language untouched at open", "```mermaid\nA-->B\n```", "zenuml", "```mermaid\nA-->B"},
		{"empty", "", "markdown", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StripFence(tt.in, tt.lang))
		})
	}
}
