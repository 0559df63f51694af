package rpc

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
)

// newEchoServer starts a test server that answers getVM-shaped requests and
// can be told to push a streamNotify event on demand.
func newEchoServer(t *testing.T, push chan Event) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
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
							"kind":      ev.Kind,
							"timestamp": ev.Timestamp,
						},
					},
				}
				encoded, _ := json.Marshal(notify)
				_ = conn.WriteMessage(websocket.TextMessage, encoded)
			}
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req envelope
			require.NoError(t, json.Unmarshal(data, &req))

			switch req.Method {
			case "getVM":
				resp := envelope{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`{"isolates":[{"id":"isolates/1","name":"main"}]}`)}
				encoded, _ := json.Marshal(resp)
				_ = conn.WriteMessage(websocket.TextMessage, encoded)
			case "boom":
				resp := envelope{JSONRPC: "2.0", ID: req.ID, Error: &rpcErrorWire{Code: -32000, Message: "kaboom"}}
				encoded, _ := json.Marshal(resp)
				_ = conn.WriteMessage(websocket.TextMessage, encoded)
			}
		}
	}))
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + httpURL[len("http"):]
}

func TestCallRoundTrip(t *testing.T) {
	push := make(chan Event)
	defer close(push)
	srv := newEchoServer(t, push)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	handle, _, err := Connect(ctx, wsURL(srv.URL))
	require.NoError(t, err)

	res, err := handle.Call(ctx, "getVM", struct{}{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"isolates":[{"id":"isolates/1","name":"main"}]}`, string(res))
}

func TestCallConcurrentUniqueIDs(t *testing.T) {
	push := make(chan Event)
	defer close(push)
	srv := newEchoServer(t, push)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	handle, _, err := Connect(ctx, wsURL(srv.URL))
	require.NoError(t, err)

	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := handle.Call(ctx, "getVM", struct{}{})
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		assert.NoError(t, <-errs)
	}
}

func TestCallRemoteError(t *testing.T) {
	push := make(chan Event)
	defer close(push)
	srv := newEchoServer(t, push)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	handle, _, err := Connect(ctx, wsURL(srv.URL))
	require.NoError(t, err)

	_, err = handle.Call(ctx, "boom", struct{}{})
	require.Error(t, err)
	rpcErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindRemote, rpcErr.Kind)
	assert.Equal(t, "kaboom", rpcErr.Message)
}

func TestEventDelivery(t *testing.T) {
	push := make(chan Event)
	srv := newEchoServer(t, push)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, stream, err := Connect(ctx, wsURL(srv.URL))
	require.NoError(t, err)

	push <- Event{StreamID: "Debug", Kind: "PauseBreakpoint", Timestamp: 42}
	close(push)

	ev, err := stream.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Debug", ev.StreamID)
	assert.Equal(t, "PauseBreakpoint", ev.Kind)
}

func TestTransportClosedFailsPending(t *testing.T) {
	push := make(chan Event)
	srv := newEchoServer(t, push)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	handle, _, err := Connect(ctx, wsURL(srv.URL))
	require.NoError(t, err)
	defer srv.Close()
	defer close(push)

	// The echo server never answers "hang", so the call stays pending
	// until the transport closes. httptest's Close does not close a
	// hijacked websocket, so the socket is closed from the client side.
	errCh := make(chan error, 1)
	go func() {
		_, err := handle.Call(ctx, "hang", struct{}{})
		errCh <- err
	}()
	require.Eventually(t, func() bool {
		handle.driver.mu.Lock()
		defer handle.driver.mu.Unlock()
		return len(handle.driver.pending) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_ = handle.driver.conn.Close()

	err = <-errCh
	require.Error(t, err)
}
