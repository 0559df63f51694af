package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inspector-tui/inspector-tui/internal/rpc"
)

func TestIsPauseKind(t *testing.T) {
	for _, k := range []string{"PauseStart", "PauseBreakpoint", "PauseException", "PauseInterrupted", "PauseExit"} {
		assert.True(t, isPauseKind(k))
	}
	assert.False(t, isPauseKind("Resume"))
	assert.False(t, isPauseKind("GC"))
}

// wsURL converts an httptest server's http:// URL into a ws:// one.
func wsURL(httpURL string) string {
	return "ws" + httpURL[len("http"):]
}

// newPauseServer answers getStack for isolates/1 and can be told to push
// a streamNotify pause event on demand, modeling S3 of spec.md §8.
func newPauseServer(t *testing.T, push chan rpc.Event) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		go func() {
			for ev := range push {
				notify := map[string]interface{}{
					"jsonrpc": "2.0",
					"method":  "streamNotify",
					"params": map[string]interface{}{
						"streamId": ev.StreamID,
						"event": map[string]interface{}{
							"kind":    ev.Kind,
							"isolate": map[string]string{"id": ev.IsolateID},
						},
					},
				}
				encoded, _ := json.Marshal(notify)
				_ = conn.WriteMessage(websocket.TextMessage, encoded)
			}
		}()

		type wireReq struct {
			ID     *uint64 `json:"id"`
			Method string  `json:"method"`
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req wireReq
			require.NoError(t, json.Unmarshal(data, &req))
			if req.Method == "streamListen" {
				resp := map[string]interface{}{"jsonrpc": "2.0", "id": *req.ID, "result": map[string]interface{}{}}
				encoded, _ := json.Marshal(resp)
				_ = conn.WriteMessage(websocket.TextMessage, encoded)
				continue
			}
			if req.Method == "getVM" {
				resp := map[string]interface{}{"jsonrpc": "2.0", "id": *req.ID, "result": map[string]interface{}{"isolates": []interface{}{}}}
				encoded, _ := json.Marshal(resp)
				_ = conn.WriteMessage(websocket.TextMessage, encoded)
				continue
			}
			if req.Method == "getStack" {
				resp := map[string]interface{}{
					"jsonrpc": "2.0",
					"id":      *req.ID,
					"result": map[string]interface{}{
						"frames": []interface{}{
							map[string]interface{}{"function": map[string]interface{}{"name": "main"}},
						},
					},
				}
				encoded, _ := json.Marshal(resp)
				_ = conn.WriteMessage(websocket.TextMessage, encoded)
				continue
			}
		}
	}))
}

func TestPauseEventTriggersStackFetch(t *testing.T) {
	push := make(chan rpc.Event, 1)
	srv := newPauseServer(t, push)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	handle, events, err := rpc.Connect(ctx, wsURL(srv.URL))
	require.NoError(t, err)

	orch := New(handle, events)
	go orch.Run(ctx)

	push <- rpc.Event{StreamID: "Debug", Kind: "PauseBreakpoint", IsolateID: "isolates/1"}

	select {
	case pe := <-orch.Out.DebugState:
		assert.True(t, pe.Paused)
		assert.Equal(t, "isolates/1", pe.IsolateID)
		assert.Equal(t, "PauseBreakpoint", pe.Reason)
		require.NotNil(t, pe.Stack)
		require.Len(t, pe.Stack.Frames, 1)
		assert.Equal(t, "main", pe.Stack.Frames[0].Function.Name)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for paused debug state")
	}
}
