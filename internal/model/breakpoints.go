package model

import "fmt"

// BreakpointKey formats the UI-facing identifier for a breakpoint, per
// spec.md §3.
func BreakpointKey(relativePath string, line int) string {
	return fmt.Sprintf("%s:%d", relativePath, line)
}

// Breakpoints maps the UI's "path:line" keys to the peer's opaque
// breakpoint ids, resolving spec.md §9 open question 1: the original never
// persisted the id returned by addBreakpointWithScriptUri, so
// removeBreakpoint could never be issued. This implementation does persist
// it. The mapping is one-way: there is no lookup from a peer id back to
// its key. A key whose peer id is not yet known maps to "".
type Breakpoints struct {
	peerID map[string]string
}

// NewBreakpoints constructs an empty breakpoint set.
func NewBreakpoints() *Breakpoints {
	return &Breakpoints{peerID: make(map[string]string)}
}

// Has reports whether a breakpoint is set at key.
func (b *Breakpoints) Has(key string) bool {
	_, ok := b.peerID[key]
	return ok
}

// Keys returns every currently-set breakpoint key, for rendering.
func (b *Breakpoints) Keys() []string {
	out := make([]string, 0, len(b.peerID))
	for k := range b.peerID {
		out = append(out, k)
	}
	return out
}

// Add records a newly-added breakpoint and its peer-chosen id.
func (b *Breakpoints) Add(key, peerBreakpointID string) {
	b.peerID[key] = peerBreakpointID
}

// PeerID returns the peer breakpoint id for key, if any.
func (b *Breakpoints) PeerID(key string) (string, bool) {
	id, ok := b.peerID[key]
	return id, ok
}

// Remove deletes the local record for key and returns the peer id that
// should be passed to removeBreakpoint, if one was recorded.
func (b *Breakpoints) Remove(key string) (string, bool) {
	id, ok := b.peerID[key]
	if ok {
		delete(b.peerID, key)
	}
	return id, ok
}
