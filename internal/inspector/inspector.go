// Package inspector provides typed wrappers over the raw rpc transport for
// the subset of the VM-service wire surface this tool uses: isolate
// discovery, the widget-inspector extension, and the debugger RPCs.
package inspector

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/inspector-tui/inspector-tui/internal/rpc"
)

// DiagnosticsNode is one node of the inspector tree, decoded from the wire
// schema described in spec.md §3/§6.
type DiagnosticsNode struct {
	Description       *string           `json:"description,omitempty"`
	NodeType          *string           `json:"type,omitempty"`
	Style             *string           `json:"style,omitempty"`
	Name              *string           `json:"name,omitempty"`
	WidgetRuntimeType *string           `json:"widgetRuntimeType,omitempty"`
	ObjectID          *string           `json:"objectId,omitempty"`
	ValueID           *string           `json:"valueId,omitempty"`
	Children          []DiagnosticsNode `json:"children,omitempty"`
	Properties        []DiagnosticsNode `json:"properties,omitempty"`
}

// Identity returns the node's navigation identity: ValueID if present,
// else ObjectID, else false (no identity — can't be remembered across a
// tree refresh).
func (n *DiagnosticsNode) Identity() (string, bool) {
	if n.ValueID != nil && *n.ValueID != "" {
		return *n.ValueID, true
	}
	if n.ObjectID != nil && *n.ObjectID != "" {
		return *n.ObjectID, true
	}
	return "", false
}

// IsolateRef is the summary form returned by getVM.
type IsolateRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Isolate is the full form returned by getIsolate, including the
// extension-RPC advertisement list used to detect inspector readiness.
type Isolate struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	ExtensionRPCs  []string `json:"extensionRPCs,omitempty"`
}

// AdvertisesExtension reports whether the isolate has registered the named
// extension RPC (e.g. "ext.flutter.inspector.getRootWidgetSummaryTree").
func (i *Isolate) AdvertisesExtension(name string) bool {
	for _, ext := range i.ExtensionRPCs {
		if ext == name {
			return true
		}
	}
	return false
}

// VM is the result shape of getVM.
type VM struct {
	Isolates []IsolateRef `json:"isolates"`
}

// StackFrame is one frame of the result of getStack.
type StackFrame struct {
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

// Stack is the decoded result of getStack.
type Stack struct {
	Frames []StackFrame `json:"frames"`
}

const (
	// ExtGetRootWidgetSummaryTree is the extension RPC whose advertisement
	// on an isolate signals the application's UI layer has initialized.
	ExtGetRootWidgetSummaryTree = "ext.flutter.inspector.getRootWidgetSummaryTree"

	extGetDetailsSubtree = "ext.flutter.inspector.getDetailsSubtree"

	// StepOver, StepInto and StepOut are the step kinds accepted by resume.
	StepOver = "Over"
	StepInto = "Into"
	StepOut  = "Out"
)

// Client is a thin typed facade over one rpc.Handle. No caching: every
// call goes to the wire.
type Client struct {
	handle      rpc.Handle
	objectGroup string
}

// New wraps handle with the session's object-group scope.
func New(handle rpc.Handle, objectGroup string) *Client {
	return &Client{handle: handle, objectGroup: objectGroup}
}

// StreamListen subscribes to a VM-service event stream by id ("Debug",
// "Isolate", "Extension", ...).
func (c *Client) StreamListen(ctx context.Context, streamID string) error {
	_, err := c.handle.Call(ctx, "streamListen", map[string]string{"streamId": streamID})
	return errors.Wrapf(err, "streamListen(%s)", streamID)
}

// GetVM fetches the top-level isolate list.
func (c *Client) GetVM(ctx context.Context) (VM, error) {
	raw, err := c.handle.Call(ctx, "getVM", struct{}{})
	if err != nil {
		return VM{}, errors.Wrap(err, "getVM")
	}
	var vm VM
	if err := json.Unmarshal(raw, &vm); err != nil {
		return VM{}, errors.Wrap(err, "getVM: decode")
	}
	return vm, nil
}

// GetIsolate fetches one isolate's full detail, including advertised
// extension RPCs.
func (c *Client) GetIsolate(ctx context.Context, isolateID string) (Isolate, error) {
	raw, err := c.handle.Call(ctx, "getIsolate", map[string]string{"isolateId": isolateID})
	if err != nil {
		return Isolate{}, errors.Wrapf(err, "getIsolate(%s)", isolateID)
	}
	var iso Isolate
	if err := json.Unmarshal(raw, &iso); err != nil {
		return Isolate{}, errors.Wrap(err, "getIsolate: decode")
	}
	return iso, nil
}

// GetStack fetches the current call stack of a paused isolate.
func (c *Client) GetStack(ctx context.Context, isolateID string) (Stack, error) {
	raw, err := c.handle.Call(ctx, "getStack", map[string]string{"isolateId": isolateID})
	if err != nil {
		return Stack{}, errors.Wrapf(err, "getStack(%s)", isolateID)
	}
	var st Stack
	if err := json.Unmarshal(raw, &st); err != nil {
		return Stack{}, errors.Wrap(err, "getStack: decode")
	}
	return st, nil
}

// GetObject fetches an opaque object by id and returns the raw result
// undecoded.
func (c *Client) GetObject(ctx context.Context, isolateID, objectID string) (json.RawMessage, error) {
	raw, err := c.handle.Call(ctx, "getObject", map[string]string{
		"isolateId": isolateID,
		"objectId":  objectID,
	})
	return raw, errors.Wrapf(err, "getObject(%s, %s)", isolateID, objectID)
}

// AddBreakpointWithScriptUri sets a breakpoint by script URI + line,
// returning the opaque result (which embeds the peer-chosen breakpoint
// id, decoded by the caller).
func (c *Client) AddBreakpointWithScriptUri(ctx context.Context, isolateID, scriptURI string, line int) (json.RawMessage, error) {
	raw, err := c.handle.Call(ctx, "addBreakpointWithScriptUri", map[string]interface{}{
		"isolateId": isolateID,
		"scriptUri": scriptURI,
		"line":      line,
	})
	return raw, errors.Wrapf(err, "addBreakpointWithScriptUri(%s:%d)", scriptURI, line)
}

// AddBreakpoint sets a breakpoint by script id + line.
func (c *Client) AddBreakpoint(ctx context.Context, isolateID, scriptID string, line int) (json.RawMessage, error) {
	raw, err := c.handle.Call(ctx, "addBreakpoint", map[string]interface{}{
		"isolateId": isolateID,
		"scriptId":  scriptID,
		"line":      line,
	})
	return raw, errors.Wrapf(err, "addBreakpoint(%s:%d)", scriptID, line)
}

// RemoveBreakpoint removes a previously added breakpoint by its
// peer-chosen id.
func (c *Client) RemoveBreakpoint(ctx context.Context, isolateID, breakpointID string) error {
	_, err := c.handle.Call(ctx, "removeBreakpoint", map[string]string{
		"isolateId":    isolateID,
		"breakpointId": breakpointID,
	})
	return errors.Wrapf(err, "removeBreakpoint(%s)", breakpointID)
}

// Resume continues a paused isolate, optionally stepping (StepOver,
// StepInto, StepOut).
func (c *Client) Resume(ctx context.Context, isolateID string, step string) error {
	params := map[string]interface{}{"isolateId": isolateID}
	if step != "" {
		params["step"] = step
	}
	_, err := c.handle.Call(ctx, "resume", params)
	return errors.Wrapf(err, "resume(%s)", isolateID)
}

// Pause interrupts a running isolate.
func (c *Client) Pause(ctx context.Context, isolateID string) error {
	_, err := c.handle.Call(ctx, "pause", map[string]string{"isolateId": isolateID})
	return errors.Wrapf(err, "pause(%s)", isolateID)
}

// extensionEnvelope is the shape of a possibly-wrapped extension RPC
// response: either the payload directly, or wrapped under "result" when
// "type" is the literal "_extensionType".
type extensionEnvelope struct {
	Type   string          `json:"type"`
	Result json.RawMessage `json:"result"`
}

// unwrapExtension implements the two-shapes convention of §4.2: if and
// only if the response's "type" field is "_extensionType" and it carries a
// "result" key, decode from that nested payload; otherwise decode the
// response directly.
func unwrapExtension(raw json.RawMessage) json.RawMessage {
	var env extensionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return raw
	}
	if env.Type == "_extensionType" && len(env.Result) > 0 {
		return env.Result
	}
	return raw
}

// GetRootWidgetSummaryTree fetches the root of the live widget tree.
func (c *Client) GetRootWidgetSummaryTree(ctx context.Context, isolateID string) (DiagnosticsNode, error) {
	raw, err := c.handle.Call(ctx, ExtGetRootWidgetSummaryTree, map[string]string{
		"isolateId":   isolateID,
		"objectGroup": c.objectGroup,
	})
	if err != nil {
		return DiagnosticsNode{}, errors.Wrap(err, "getRootWidgetSummaryTree")
	}
	var node DiagnosticsNode
	if err := json.Unmarshal(unwrapExtension(raw), &node); err != nil {
		return DiagnosticsNode{}, errors.Wrap(err, "getRootWidgetSummaryTree: decode")
	}
	return node, nil
}

// GetDetailsSubtree fetches a bounded-depth subtree rooted at objectID.
func (c *Client) GetDetailsSubtree(ctx context.Context, isolateID, objectID string, subtreeDepth int) (DiagnosticsNode, error) {
	raw, err := c.handle.Call(ctx, extGetDetailsSubtree, map[string]interface{}{
		"isolateId":    isolateID,
		"objectGroup":  c.objectGroup,
		"arg":          objectID,
		"subtreeDepth": subtreeDepth,
	})
	if err != nil {
		return DiagnosticsNode{}, errors.Wrap(err, "getDetailsSubtree")
	}
	var node DiagnosticsNode
	if err := json.Unmarshal(unwrapExtension(raw), &node); err != nil {
		return DiagnosticsNode{}, errors.Wrap(err, "getDetailsSubtree: decode")
	}
	return node, nil
}
