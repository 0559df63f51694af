// Package rpc implements the JSON-RPC 2.0 transport used to talk to the
// attached runtime's VM-service endpoint: a single WebSocket that
// multiplexes request/response calls with server-pushed streamNotify
// events.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrorKind classifies a transport-level failure.
type ErrorKind int

const (
	// KindTransportClosed means the socket closed or errored out from under a pending call.
	KindTransportClosed ErrorKind = iota
	// KindProtocol means a frame was malformed or missing a required field.
	KindProtocol
	// KindRemote means the peer returned a JSON-RPC error object.
	KindRemote
)

// Error is the error type returned by Handle.Call.
type Error struct {
	Kind    ErrorKind
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTransportClosed:
		return "rpc: transport closed"
	case KindProtocol:
		return fmt.Sprintf("rpc: protocol error: %s", e.Message)
	case KindRemote:
		return fmt.Sprintf("rpc: remote error %d: %s", e.Code, e.Message)
	default:
		return "rpc: unknown error"
	}
}

// Event is one streamNotify push from the peer.
type Event struct {
	StreamID  string
	Kind      string
	IsolateID string
	Timestamp int64
	Payload   json.RawMessage
}

type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcErrorWire   `json:"error,omitempty"`
}

type rpcErrorWire struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type streamNotifyParams struct {
	StreamID string          `json:"streamId"`
	Event    json.RawMessage `json:"event"`
}

type streamEventWire struct {
	Kind      string          `json:"kind"`
	Isolate   *isolateRefWire `json:"isolate,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type isolateRefWire struct {
	ID string `json:"id"`
}

// pendingCall is the one-shot completion for a single outstanding request.
type pendingCall struct {
	done chan struct{}
	res  json.RawMessage
	err  error
}

// Handle is a cheaply cloneable client of one WebSocket connection. It may
// be used concurrently from any number of goroutines.
type Handle struct {
	driver *driver
}

// EventStream is the single consumer of events pushed by the driver.
type EventStream struct {
	ch <-chan Event
}

// Recv blocks until the next event arrives or ctx is cancelled.
func (s *EventStream) Recv(ctx context.Context) (Event, error) {
	select {
	case ev, ok := <-s.ch:
		if !ok {
			return Event{}, errors.New("rpc: event stream closed")
		}
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// driver owns the socket: the only reader, the only writer.
type driver struct {
	conn *websocket.Conn

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]*pendingCall

	writeMu sync.Mutex
	events  chan Event
}

const eventBacklog = 100

// Connect opens a WebSocket at uri and starts the driver goroutine. The
// returned Handle may be cloned (by value) and shared across goroutines;
// the EventStream has exactly one consumer.
func Connect(ctx context.Context, uri string) (Handle, *EventStream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, uri, nil)
	if err != nil {
		return Handle{}, nil, errors.Wrapf(err, "rpc: dial %s", uri)
	}

	d := &driver{
		conn:    conn,
		pending: make(map[uint64]*pendingCall),
		events:  make(chan Event, eventBacklog),
	}

	go d.readLoop()

	return Handle{driver: d}, &EventStream{ch: d.events}, nil
}

// Call sends one request and blocks until its response is delivered or the
// transport closes. It is safe to call concurrently from many goroutines.
func (h Handle) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	d := h.driver

	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, &Error{Kind: KindProtocol, Message: err.Error()}
	}

	d.mu.Lock()
	d.nextID++
	id := d.nextID
	call := &pendingCall{done: make(chan struct{})}
	d.pending[id] = call
	d.mu.Unlock()

	req := envelope{
		JSONRPC: "2.0",
		ID:      &id,
		Method:  method,
		Params:  rawParams,
	}

	encoded, err := json.Marshal(req)
	if err != nil {
		d.dropPending(id)
		return nil, &Error{Kind: KindProtocol, Message: err.Error()}
	}

	d.writeMu.Lock()
	writeErr := d.conn.WriteMessage(websocket.TextMessage, encoded)
	d.writeMu.Unlock()
	if writeErr != nil {
		d.dropPending(id)
		return nil, &Error{Kind: KindTransportClosed, Message: writeErr.Error()}
	}

	select {
	case <-call.done:
		return call.res, call.err
	case <-ctx.Done():
		d.dropPending(id)
		return nil, ctx.Err()
	}
}

func (d *driver) dropPending(id uint64) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

// readLoop is the driver's single goroutine: it owns the socket for reads,
// demultiplexes responses to pending calls by id, and pushes streamNotify
// frames onto the event channel.
func (d *driver) readLoop() {
	defer d.shutdown()

	for {
		_, data, err := d.conn.ReadMessage()
		if err != nil {
			log.WithError(err).Debug("rpc: read loop exiting")
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.WithError(err).Warn("rpc: malformed frame")
			continue
		}

		switch {
		case env.ID != nil:
			d.dispatchResponse(env)
		case env.Method == "streamNotify":
			d.dispatchEvent(env)
		default:
			log.Warnf("rpc: frame with neither id nor streamNotify method: %s", string(data))
		}
	}
}

func (d *driver) dispatchResponse(env envelope) {
	d.mu.Lock()
	call, ok := d.pending[*env.ID]
	if ok {
		delete(d.pending, *env.ID)
	}
	d.mu.Unlock()

	if !ok {
		// Response for an id nobody is waiting on (already timed out, or a
		// duplicate); nothing to deliver it to.
		return
	}

	if env.Error != nil {
		call.err = &Error{
			Kind:    KindRemote,
			Code:    env.Error.Code,
			Message: env.Error.Message,
			Data:    env.Error.Data,
		}
	} else {
		call.res = env.Result
	}
	close(call.done)
}

func (d *driver) dispatchEvent(env envelope) {
	var params streamNotifyParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		log.WithError(err).Warn("rpc: malformed streamNotify params")
		return
	}

	var wire streamEventWire
	if err := json.Unmarshal(params.Event, &wire); err != nil {
		log.WithError(err).Warn("rpc: malformed streamNotify event")
		return
	}

	ev := Event{
		StreamID:  params.StreamID,
		Kind:      wire.Kind,
		Timestamp: wire.Timestamp,
		Payload:   params.Event,
	}
	if wire.Isolate != nil {
		ev.IsolateID = wire.Isolate.ID
	}

	// Block rather than drop: event cadence is low enough that a bounded
	// channel is backpressure, not a reason to lose a pause/resume event.
	d.events <- ev
}

// shutdown fails every outstanding call and closes the event channel; the
// driver's single goroutine is the only writer to d.events, so closing it
// here is race-free.
func (d *driver) shutdown() {
	d.mu.Lock()
	pending := d.pending
	d.pending = make(map[uint64]*pendingCall)
	d.mu.Unlock()

	for _, call := range pending {
		call.err = &Error{Kind: KindTransportClosed, Message: "connection closed"}
		close(call.done)
	}

	close(d.events)
	d.conn.Close()
}
