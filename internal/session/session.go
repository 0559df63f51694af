// Package session implements the orchestrator (C4): the state machine that
// brings a session up through discovery, isolate selection, and inspector
// readiness to steady state, serves tree/details/stack requests from the
// UI, and reacts to hot-reload by re-fetching the tree. See spec.md §4.4.
package session

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/inspector-tui/inspector-tui/internal/inspector"
	"github.com/inspector-tui/inspector-tui/internal/rpc"
)

// objectGroupBase is the literal the original Rust source used as a
// static constant (original_source/src/vm_service.rs); this module
// appends a per-run uuid so two sessions against a long-lived peer never
// collide (SPEC_FULL.md §C.1).
const objectGroupBase = "tui_inspector"

// isolatePollInterval is the 1 Hz poll rate for inspector-extension
// readiness, per spec.md §3.
const isolatePollInterval = time.Second

// TreeResult is published after a tree fetch succeeds or fails.
type TreeResult struct {
	Tree *inspector.DiagnosticsNode
	Err  error
}

// PauseEvent is published whenever the debug state transitions.
type PauseEvent struct {
	Paused    bool
	IsolateID string
	Reason    string
	Stack     *inspector.Stack
}

// BreakpointResult is published in response to an AddBreakpoint request,
// and when a RemoveBreakpoint request fails.
type BreakpointResult struct {
	Key     string
	PeerID  string
	Err     error
}

// Outbound carries every channel the orchestrator publishes to; the UI
// owns the read side.
type Outbound struct {
	ConnectionStatus chan string
	IsolateList      chan []inspector.IsolateRef
	Tree             chan TreeResult
	Details          chan *inspector.DiagnosticsNode
	DebugState       chan PauseEvent
	BreakpointResult chan BreakpointResult
}

// NewOutbound constructs the outbound channel set with the capacities the
// orchestrator expects to write to without blocking on a slow UI for long.
func NewOutbound() *Outbound {
	return &Outbound{
		ConnectionStatus: make(chan string, 4),
		IsolateList:      make(chan []inspector.IsolateRef, 1),
		Tree:             make(chan TreeResult, 1),
		Details:          make(chan *inspector.DiagnosticsNode, 1),
		DebugState:       make(chan PauseEvent, 4),
		BreakpointResult: make(chan BreakpointResult, 4),
	}
}

// Inbound carries every channel the UI sends intents to the orchestrator
// on.
type Inbound struct {
	SelectIsolate chan string
	DetailsWanted chan string
	RefreshPulse  chan struct{}
	Resume        chan ResumeRequest
	Pause         chan string
	AddBreakpoint chan AddBreakpointRequest
	RemoveBreakpoint chan RemoveBreakpointRequest
}

// ResumeRequest asks the orchestrator to resume (optionally stepping) the
// given isolate.
type ResumeRequest struct {
	IsolateID string
	Step      string
}

// AddBreakpointRequest asks the orchestrator to set a breakpoint at a
// script-relative path and 1-based line, keyed for the caller by Key (the
// "path:line" string the UI already uses for local breakpoint state).
type AddBreakpointRequest struct {
	Key       string
	IsolateID string
	ScriptURI string
	Line      int
}

// RemoveBreakpointRequest asks the orchestrator to remove a previously
// added breakpoint identified by its peer-chosen id.
type RemoveBreakpointRequest struct {
	Key          string
	IsolateID    string
	BreakpointID string
}

// NewInbound constructs the inbound channel set.
func NewInbound() *Inbound {
	return &Inbound{
		SelectIsolate:    make(chan string, 1),
		DetailsWanted:    make(chan string, 1),
		RefreshPulse:     make(chan struct{}, 1),
		Resume:           make(chan ResumeRequest, 1),
		Pause:            make(chan string, 1),
		AddBreakpoint:    make(chan AddBreakpointRequest, 4),
		RemoveBreakpoint: make(chan RemoveBreakpointRequest, 4),
	}
}

// Orchestrator owns one Inspector Client, one EventStream, and the
// currently selected isolate id.
type Orchestrator struct {
	client      *inspector.Client
	events      *rpc.EventStream
	objectGroup string

	In  *Inbound
	Out *Outbound

	selectedIsolate string
}

// New constructs an Orchestrator around an already-connected rpc.Handle
// and its EventStream.
func New(handle rpc.Handle, events *rpc.EventStream) *Orchestrator {
	group := objectGroupBase + "-" + uuid.NewString()
	return &Orchestrator{
		client:      inspector.New(handle, group),
		events:      events,
		objectGroup: group,
		In:          NewInbound(),
		Out:         NewOutbound(),
	}
}

// Run subscribes to the Debug/Isolate/Extension streams and runs the single
// cooperative event loop described in spec.md §4.4 until ctx is
// cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	for _, stream := range []string{"Debug", "Isolate", "Extension"} {
		if err := o.client.StreamListen(ctx, stream); err != nil {
			log.WithError(err).Warnf("session: streamListen(%s) failed", stream)
		}
	}

	o.publishStatus("Connected, discovering isolates...")
	o.refreshIsolateList(ctx)

	events := o.eventsChan()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				o.publishStatus("Transport closed")
				return errors.New("session: event stream closed")
			}
			o.handleVMEvent(ctx, ev)

		case isolateID := <-o.In.SelectIsolate:
			o.selectedIsolate = isolateID
			go o.waitForInspectorThenFetchTree(ctx, isolateID)

		case objectID := <-o.In.DetailsWanted:
			o.handleDetailsRequest(ctx, objectID)

		case <-o.In.RefreshPulse:
			o.handleRefreshPulse(ctx)

		case req := <-o.In.Resume:
			if err := o.client.Resume(ctx, req.IsolateID, req.Step); err != nil {
				log.WithError(err).Warn("session: resume failed")
			}

		case isolateID := <-o.In.Pause:
			if err := o.client.Pause(ctx, isolateID); err != nil {
				log.WithError(err).Warn("session: pause failed")
			}

		case req := <-o.In.AddBreakpoint:
			o.handleAddBreakpoint(ctx, req)

		case req := <-o.In.RemoveBreakpoint:
			o.handleRemoveBreakpoint(ctx, req)
		}
	}
}

// eventsChan adapts the blocking rpc.EventStream.Recv into a channel this
// select can multiplex over, without spawning an unbounded number of
// goroutines: one bridging goroutine per orchestrator lifetime.
func (o *Orchestrator) eventsChan() <-chan rpc.Event {
	ch := make(chan rpc.Event)
	go func() {
		defer close(ch)
		for {
			ev, err := o.events.Recv(context.Background())
			if err != nil {
				return
			}
			ch <- ev
		}
	}()
	return ch
}

func (o *Orchestrator) publishStatus(status string) {
	select {
	case o.Out.ConnectionStatus <- status:
	default:
		// Drain the stale status and replace it, so the UI always shows
		// the most recent one.
		select {
		case <-o.Out.ConnectionStatus:
		default:
		}
		o.Out.ConnectionStatus <- status
	}
}

// handleVMEvent reacts to pause-family events (fetch stack, publish
// Paused) and Resume (publish Running), per spec.md §3/§4.4.
func (o *Orchestrator) handleVMEvent(ctx context.Context, ev rpc.Event) {
	switch {
	case isPauseKind(ev.Kind):
		stack, err := o.client.GetStack(ctx, ev.IsolateID)
		if err != nil {
			log.WithError(err).Warn("session: getStack failed after pause event")
			o.Out.DebugState <- PauseEvent{Paused: true, IsolateID: ev.IsolateID, Reason: ev.Kind}
			return
		}
		o.Out.DebugState <- PauseEvent{Paused: true, IsolateID: ev.IsolateID, Reason: ev.Kind, Stack: &stack}

	case ev.Kind == "Resume":
		o.Out.DebugState <- PauseEvent{Paused: false}
	}
}

func isPauseKind(kind string) bool {
	switch kind {
	case "PauseStart", "PauseBreakpoint", "PauseException", "PauseInterrupted", "PauseExit":
		return true
	default:
		return false
	}
}

// refreshIsolateList fetches getVM and republishes the isolate list,
// reopening the selection dialog on a Steady-state refresh pulse.
func (o *Orchestrator) refreshIsolateList(ctx context.Context) {
	vm, err := o.client.GetVM(ctx)
	if err != nil {
		log.WithError(err).Warn("session: getVM failed")
		o.publishStatus("Failed to list isolates")
		return
	}
	o.Out.IsolateList <- vm.Isolates

	if len(vm.Isolates) == 1 && o.selectedIsolate == "" {
		o.selectedIsolate = vm.Isolates[0].ID
		go o.waitForInspectorThenFetchTree(ctx, vm.Isolates[0].ID)
	}
}

// waitForInspectorThenFetchTree is the ephemeral per-isolate-selection
// task of spec.md §4.4 item 2: poll getIsolate at 1 Hz until the inspector
// RPC is advertised, then fetch the tree.
func (o *Orchestrator) waitForInspectorThenFetchTree(ctx context.Context, isolateID string) {
	ticker := time.NewTicker(isolatePollInterval)
	defer ticker.Stop()

	o.publishStatus("Waiting for inspector extension...")

	for {
		iso, err := o.client.GetIsolate(ctx, isolateID)
		if err == nil && iso.AdvertisesExtension(inspector.ExtGetRootWidgetSummaryTree) {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	o.fetchTree(ctx, isolateID)
}

// fetchTree fetches the root widget tree, publishing the tree on success
// or re-publishing the isolate list on failure (reopening the selection
// dialog), per spec.md §4.4 item 2.
func (o *Orchestrator) fetchTree(ctx context.Context, isolateID string) {
	tree, err := o.client.GetRootWidgetSummaryTree(ctx, isolateID)
	if err != nil {
		log.WithError(err).Warn("session: getRootWidgetSummaryTree failed")
		o.Out.Tree <- TreeResult{Err: err}
		o.refreshIsolateList(ctx)
		return
	}
	o.publishStatus("Connected")
	o.Out.Tree <- TreeResult{Tree: &tree}
}

// handleDetailsRequest fetches a bounded-depth subtree for a UI-selected
// object id. If no isolate is yet selected, the request is logged and
// dropped, per spec.md §4.4 item 3.
func (o *Orchestrator) handleDetailsRequest(ctx context.Context, objectID string) {
	if o.selectedIsolate == "" {
		log.Warn("session: details requested before an isolate was selected")
		return
	}
	details, err := o.client.GetDetailsSubtree(ctx, o.selectedIsolate, objectID, 2)
	if err != nil {
		log.WithError(err).Warn("session: getDetailsSubtree failed")
		return
	}
	o.Out.Details <- &details
}

// breakpointWire decodes the id field common to addBreakpoint's and
// addBreakpointWithScriptUri's result shape.
type breakpointWire struct {
	ID string `json:"id"`
}

// handleAddBreakpoint issues addBreakpointWithScriptUri and publishes the
// peer-chosen breakpoint id, so it can be persisted for a later
// removeBreakpoint — resolving spec.md §9 open question 1.
func (o *Orchestrator) handleAddBreakpoint(ctx context.Context, req AddBreakpointRequest) {
	raw, err := o.client.AddBreakpointWithScriptUri(ctx, req.IsolateID, req.ScriptURI, req.Line)
	if err != nil {
		log.WithError(err).Warn("session: addBreakpointWithScriptUri failed")
		o.Out.BreakpointResult <- BreakpointResult{Key: req.Key, Err: err}
		return
	}
	var wire breakpointWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		log.WithError(err).Warn("session: addBreakpointWithScriptUri: decode")
		o.Out.BreakpointResult <- BreakpointResult{Key: req.Key, Err: err}
		return
	}
	o.Out.BreakpointResult <- BreakpointResult{Key: req.Key, PeerID: wire.ID}
}

// handleRemoveBreakpoint issues removeBreakpoint for a previously recorded
// peer id.
func (o *Orchestrator) handleRemoveBreakpoint(ctx context.Context, req RemoveBreakpointRequest) {
	if err := o.client.RemoveBreakpoint(ctx, req.IsolateID, req.BreakpointID); err != nil {
		log.WithError(err).Warn("session: removeBreakpoint failed")
		o.Out.BreakpointResult <- BreakpointResult{Key: req.Key, Err: err}
	}
}

// handleRefreshPulse re-fetches the isolate list and, for the currently
// selected isolate, the tree — the path hot-reload takes per spec.md §4.4
// item 4.
func (o *Orchestrator) handleRefreshPulse(ctx context.Context) {
	o.refreshIsolateList(ctx)
	if o.selectedIsolate != "" {
		o.fetchTree(ctx, o.selectedIsolate)
	}
}
