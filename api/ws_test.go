package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueprintlabs/blueprint/internal/document"
	"github.com/blueprintlabs/blueprint/internal/log"
)

// wsFrame mirrors turnEvent with the data left raw for per-event decoding.
type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dialChat(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/chat/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntilTerminal collects frames until a done or error frame arrives.
func readUntilTerminal(t *testing.T, conn *websocket.Conn) []wsFrame {
	t.Helper()
	var frames []wsFrame
	for {
		var f wsFrame
		require.NoError(t, conn.ReadJSON(&f))
		frames = append(frames, f)
		if f.Event == "done" || f.Event == "error" {
			return frames
		}
	}
}

func TestWSHandler_StreamsTurn(t *testing.T) {
	model := &scriptedModel{responses: []scriptedResponse{
		{chunks: textChunks("Hello ", "there.")},
	}}
	srv := NewServer(Config{
		Store:    document.NewMemoryStore(),
		Toolset:  newTestToolset(model, document.NewMemoryStore()),
		MaxTurns: 5,
		Logger:   log.NewNop(),
	})
	conn := dialChat(t, srv)

	require.NoError(t, conn.WriteJSON(streamRequest{Message: "hi", UserID: "user-1"}))

	frames := readUntilTerminal(t, conn)
	require.Len(t, frames, 3)
	assert.Equal(t, "message", frames[0].Event)
	assert.Equal(t, "message", frames[1].Event)
	assert.Equal(t, "done", frames[2].Event)

	var done doneData
	require.NoError(t, json.Unmarshal(frames[2].Data, &done))
	assert.Equal(t, "Hello there.", done.Response)
}

func TestWSHandler_MultipleTurnsPerConnection(t *testing.T) {
	model := &scriptedModel{responses: []scriptedResponse{
		{chunks: textChunks("First.")},
		{chunks: textChunks("Second.")},
	}}
	srv := NewServer(Config{
		Toolset:  newTestToolset(model, document.NewMemoryStore()),
		MaxTurns: 5,
		Logger:   log.NewNop(),
	})
	conn := dialChat(t, srv)

	require.NoError(t, conn.WriteJSON(streamRequest{Message: "one"}))
	frames := readUntilTerminal(t, conn)
	var done doneData
	require.NoError(t, json.Unmarshal(frames[len(frames)-1].Data, &done))
	assert.Equal(t, "First.", done.Response)

	require.NoError(t, conn.WriteJSON(streamRequest{Message: "two"}))
	frames = readUntilTerminal(t, conn)
	require.NoError(t, json.Unmarshal(frames[len(frames)-1].Data, &done))
	assert.Equal(t, "Second.", done.Response)
}

func TestWSHandler_MissingMessage(t *testing.T) {
	model := &scriptedModel{responses: []scriptedResponse{
		{chunks: textChunks("Recovered.")},
	}}
	srv := NewServer(Config{
		Toolset:  newTestToolset(model, document.NewMemoryStore()),
		MaxTurns: 5,
		Logger:   log.NewNop(),
	})
	conn := dialChat(t, srv)

	require.NoError(t, conn.WriteJSON(streamRequest{}))

	var f wsFrame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, "error", f.Event)

	var e errorData
	require.NoError(t, json.Unmarshal(f.Data, &e))
	assert.Equal(t, "MISSING_MESSAGE", e.Code)

	// The connection survives the bad request.
	require.NoError(t, conn.WriteJSON(streamRequest{Message: "hi"}))
	frames := readUntilTerminal(t, conn)
	assert.Equal(t, "done", frames[len(frames)-1].Event)
}
