package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/blueprintlabs/blueprint/internal/delta"
	"github.com/blueprintlabs/blueprint/internal/generator"
	"github.com/blueprintlabs/blueprint/internal/log"
	"github.com/blueprintlabs/blueprint/internal/turn"
)

// systemPrompt frames the assistant for chat turns. Document and design
// output goes through the tools; the chat channel carries narration only.
const systemPrompt = `You are a friendly assistant. Keep your responses concise and helpful.

When asked to write, create, or update a document, code, or a diagram,
use the document tools. Do not repeat the document content in the chat
after a tool creates or updates it; the document is shown to the user
next to the conversation. When asked for a sequence design or a service
interface diagram, use the design tools.`

// ChatHandler handles the SSE streaming chat endpoint.
//
// One POST runs one assistant turn. The response is a Server-Sent Events
// stream interleaving two channels: "message" events carry assistant
// narration chunks, "data" events carry artifact deltas produced by
// tools. The stream ends with one "done" or one "error" event.
type ChatHandler struct {
	toolset  turn.Toolset
	maxTurns int
	logger   log.Logger
}

// NewChatHandler creates a chat handler over the given toolset.
func NewChatHandler(ts turn.Toolset, maxTurns int, logger log.Logger) *ChatHandler {
	return &ChatHandler{toolset: ts, maxTurns: maxTurns, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux. An incomplete
// toolset leaves the endpoint unregistered.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	if err := h.toolset.Validate(); err != nil {
		if h.logger != nil {
			h.logger.Warn("chat endpoint not registered", "reason", err)
		}
		return
	}
	mux.HandleFunc("POST /api/chat/stream", h.handleStream)
}

// streamRequest is the body of POST /api/chat/stream.
type streamRequest struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// turnEvent is one frame of a streamed turn, shared by the SSE and
// WebSocket transports.
type turnEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// messageData is the data of "message" events.
type messageData struct {
	Text string `json:"text"`
}

// doneData is the data of "done" events.
type doneData struct {
	Response string `json:"response"`
}

// errorData is the data of "error" events.
type errorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleStream runs one chat turn over SSE.
//
// Event types:
//   - message: assistant narration chunk {"text": "..."}
//   - data:    artifact delta {"type": "...", "content": ...}
//   - done:    final response {"response": "..."}
//   - error:   error occurred {"code": "...", "message": "..."}
func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported")
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var req streamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeSSEError(w, flusher, "INVALID_REQUEST", fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.Message == "" {
		h.writeSSEError(w, flusher, "MISSING_MESSAGE", "message is required")
		return
	}
	userID := req.UserID
	if userID == "" {
		userID = "anonymous"
	}

	ctx := r.Context()
	h.logger.Info("SSE chat turn started", "userId", userID)

	response, err := runTurn(ctx, h.toolset, h.maxTurns, req.Message, userID, func(ev turnEvent) bool {
		h.writeSSE(w, flusher, ev)
		return true
	})
	if ctx.Err() != nil {
		h.logger.Info("client disconnected", "userId", userID)
		return
	}
	if err != nil {
		h.logger.Error("chat turn failed", "error", err, "userId", userID)
		h.writeSSEError(w, flusher, "STREAM_ERROR", err.Error())
		return
	}

	h.writeSSE(w, flusher, turnEvent{Event: "done", Data: doneData{Response: response}})
	h.logger.Info("SSE chat turn completed", "userId", userID, "responseLen", len(response))
}

// writeSSE writes one event to the SSE stream.
func (h *ChatHandler) writeSSE(w http.ResponseWriter, flusher http.Flusher, ev turnEvent) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		h.logger.Error("failed to encode SSE event", "event", ev.Event, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event, data)
	flusher.Flush()
}

// writeSSEError writes an error event to the SSE stream.
func (h *ChatHandler) writeSSEError(w http.ResponseWriter, flusher http.Flusher, code, message string) {
	h.writeSSE(w, flusher, turnEvent{Event: "error", Data: errorData{Code: code, Message: message}})
}

// runTurn executes one assistant turn and feeds every frame to emit in
// order: narration chunks as "message" events, tool deltas as "data"
// events. It returns the assistant's final narration. emit runs on the
// calling goroutine; returning false aborts the turn.
func runTurn(ctx context.Context, ts turn.Toolset, maxTurns int, message, userID string, emit func(turnEvent) bool) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sink := delta.NewStream()
	registry := turn.NewRegistry()
	if err := ts.Register(registry, sink, userID); err != nil {
		return "", fmt.Errorf("register tools: %w", err)
	}
	planner, err := turn.NewPlanner(turn.PlannerConfig{
		Model:    ts.Model,
		Registry: registry,
		MaxTurns: maxTurns,
		Logger:   ts.Logger,
	})
	if err != nil {
		return "", err
	}

	events := make(chan turnEvent, 16)
	send := func(ev turnEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var (
		wg       sync.WaitGroup
		response string
		runErr   error
	)

	// Tool deltas, replayed from the start so no frame is lost to timing.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ch, unsubscribe := sink.Subscribe(0)
		defer unsubscribe()
		for d := range ch {
			if !send(turnEvent{Event: "data", Data: d}) {
				return
			}
		}
	}()

	// The planner loop. Closing the sink after the run ends the delta
	// pump once it has drained the buffer.
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() { _ = sink.Close(context.Background()) }()

		history := []generator.Message{{Role: generator.RoleUser, Text: message}}
		messages, err := planner.Run(ctx, systemPrompt, history, func(_ context.Context, chunk string) error {
			if !send(turnEvent{Event: "message", Data: messageData{Text: chunk}}) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			runErr = err
			return
		}
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Role == generator.RoleModel && messages[i].Text != "" {
				response = messages[i].Text
				break
			}
		}
	}()

	go func() {
		wg.Wait()
		close(events)
	}()

	for ev := range events {
		if !emit(ev) {
			cancel()
		}
	}
	return response, runErr
}
