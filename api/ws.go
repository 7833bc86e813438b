package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/blueprintlabs/blueprint/internal/log"
	"github.com/blueprintlabs/blueprint/internal/turn"
)

// WSHandler handles the WebSocket streaming chat endpoint.
//
// The client sends one JSON request per turn; the server answers with the
// same frames as the SSE endpoint ({"event": ..., "data": ...}) and keeps
// the connection open for the next turn.
type WSHandler struct {
	toolset  turn.Toolset
	maxTurns int
	upgrader websocket.Upgrader
	logger   log.Logger
}

// NewWSHandler creates a WebSocket chat handler. origins follows the
// CORS origin list; "*" allows any origin.
func NewWSHandler(ts turn.Toolset, maxTurns int, origins []string, logger log.Logger) *WSHandler {
	allowed := make(map[string]bool, len(origins))
	allowAll := false
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return &WSHandler{
		toolset:  ts,
		maxTurns: maxTurns,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowAll || allowed[origin]
			},
		},
		logger: logger,
	}
}

// RegisterRoutes registers the WebSocket route on the given mux. An
// incomplete toolset leaves the endpoint unregistered.
func (h *WSHandler) RegisterRoutes(mux *http.ServeMux) {
	if err := h.toolset.Validate(); err != nil {
		if h.logger != nil {
			h.logger.Warn("websocket endpoint not registered", "reason", err)
		}
		return
	}
	mux.HandleFunc("GET /api/chat/ws", h.handleWS)
}

func (h *WSHandler) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ctx := r.Context()
	for {
		var req streamRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		if req.Message == "" {
			h.writeFrame(conn, turnEvent{Event: "error", Data: errorData{
				Code: "MISSING_MESSAGE", Message: "message is required",
			}})
			continue
		}
		userID := req.UserID
		if userID == "" {
			userID = "anonymous"
		}

		h.logger.Info("websocket chat turn started", "userId", userID)
		response, err := runTurn(ctx, h.toolset, h.maxTurns, req.Message, userID, func(ev turnEvent) bool {
			return h.writeFrame(conn, ev)
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			h.logger.Error("chat turn failed", "error", err, "userId", userID)
			h.writeFrame(conn, turnEvent{Event: "error", Data: errorData{
				Code: "STREAM_ERROR", Message: err.Error(),
			}})
			continue
		}
		h.writeFrame(conn, turnEvent{Event: "done", Data: doneData{Response: response}})
	}
}

// writeFrame sends one frame; a write failure means the client is gone.
func (h *WSHandler) writeFrame(conn *websocket.Conn, ev turnEvent) bool {
	if err := conn.WriteJSON(ev); err != nil {
		h.logger.Debug("websocket write failed", "error", err)
		return false
	}
	return true
}
