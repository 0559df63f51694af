// Package ui renders the view-model with termbox-go, following the
// cell-buffer + tbprint idiom of cli/cmd/top.go in the teacher. Terminal
// layout and widget geometry are deliberately minimal: per spec.md §1,
// full-fidelity rendering is an external collaborator, not the subject of
// this module.
package ui

import (
	"fmt"

	runewidth "github.com/mattn/go-runewidth"
	termbox "github.com/nsf/termbox-go"

	"github.com/inspector-tui/inspector-tui/internal/inspector"
	"github.com/inspector-tui/inspector-tui/internal/model"
)

// Tab identifies which top-level view is showing: Inspector (widget tree +
// details + logs) or Debugger (file tree + source + breakpoints + stack).
type Tab int

const (
	TabInspector Tab = iota
	TabDebugger
)

// Draw renders the full frame for the given model and active tab.
func Draw(m *model.Model, tab Tab) {
	termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
	w, h := termbox.Size()

	drawStatusBar(m, w)

	body := h - 2
	switch tab {
	case TabInspector:
		drawInspectorTab(m, w, body)
	case TabDebugger:
		drawDebuggerTab(m, w, body)
	}

	termbox.Flush()
}

func drawStatusBar(m *model.Model, width int) {
	status := fmt.Sprintf(" %s  |  auto-reload:%s  |  Tab cycles focus, q quits ", m.ConnectionStatus, onOff(m.AutoReload))
	print(0, 0, status, termbox.AttrBold, termbox.ColorDefault)

	debugStatus := "Running"
	color := termbox.ColorGreen
	if m.DebugState.Paused {
		debugStatus = fmt.Sprintf("Paused: %s", m.DebugState.Reason)
		color = termbox.ColorYellow
	}
	print(width-len(debugStatus)-1, 0, debugStatus, termbox.AttrBold, color)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func drawInspectorTab(m *model.Model, width, height int) {
	treeWidth := width * 2 / 5
	detailsWidth := width - treeWidth
	treeHeight := height
	if m.ShowLogs {
		treeHeight = height * 2 / 3
	}
	logsHeight := height - treeHeight

	drawBorder(0, 1, treeWidth, treeHeight, "Widget Tree", m.Focus == model.FocusTree)
	drawTree(m, 1, 2, treeWidth-2, treeHeight-2)

	drawBorder(treeWidth, 1, detailsWidth, treeHeight, "Details", m.Focus == model.FocusDetails)
	drawDetails(m, treeWidth+1, 2, detailsWidth-2, treeHeight-2)

	if !m.ShowLogs {
		return
	}
	drawBorder(0, 1+treeHeight, width, logsHeight, "Logs", m.Focus == model.FocusLogs)
	drawLogs(m, 1, 2+treeHeight, width-2, logsHeight-2)
}

func drawDebuggerTab(m *model.Model, width, height int) {
	fileWidth := width / 4
	sourceWidth := width * 1 / 2
	rightWidth := width - fileWidth - sourceWidth

	drawBorder(0, 1, fileWidth, height, "Files", m.Focus == model.FocusDebuggerFiles)
	drawFileTree(m, 1, 2, fileWidth-2, height-2)

	drawBorder(fileWidth, 1, sourceWidth, height, "Source", m.Focus == model.FocusDebuggerSource)
	drawSource(m, fileWidth+1, 2, sourceWidth-2, height-2)

	drawBorder(fileWidth+sourceWidth, 1, rightWidth, height/2, "Breakpoints", false)
	drawBreakpoints(m, fileWidth+sourceWidth+1, 2, rightWidth-2, height/2-2)

	drawBorder(fileWidth+sourceWidth, 1+height/2, rightWidth, height-height/2, "Call Stack", false)
	drawStack(m, fileWidth+sourceWidth+1, 2+height/2, rightWidth-2, height-height/2-2)
}

func drawBorder(x, y, w, h int, title string, focused bool) {
	fg := termbox.ColorDefault
	if focused {
		fg = termbox.ColorYellow
	}
	for i := 0; i < w; i++ {
		termbox.SetCell(x+i, y, '─', fg, termbox.ColorDefault)
		termbox.SetCell(x+i, y+h-1, '─', fg, termbox.ColorDefault)
	}
	for i := 0; i < h; i++ {
		termbox.SetCell(x, y+i, '│', fg, termbox.ColorDefault)
		termbox.SetCell(x+w-1, y+i, '│', fg, termbox.ColorDefault)
	}
	termbox.SetCell(x, y, '┌', fg, termbox.ColorDefault)
	termbox.SetCell(x+w-1, y, '┐', fg, termbox.ColorDefault)
	termbox.SetCell(x, y+h-1, '└', fg, termbox.ColorDefault)
	termbox.SetCell(x+w-1, y+h-1, '┘', fg, termbox.ColorDefault)
	print(x+2, y, " "+title+" ", termbox.AttrBold, termbox.ColorDefault)
}

func drawTree(m *model.Model, x, y, w, h int) {
	if m.Tree.Root() == nil {
		print(x, y, "Waiting for data...", termbox.ColorYellow, termbox.ColorDefault)
		return
	}
	view := m.Tree.FlattenedView()
	m.Tree.UpdateTreeScroll(h)

	for row := 0; row < h && m.Tree.ScrollOffset+row < len(view); row++ {
		idx := m.Tree.ScrollOffset + row
		fn := view[idx]
		line := renderTreeLine(fn, m.Tree.Expanded)
		fg, bg := termbox.ColorDefault, termbox.ColorDefault
		if idx == m.Tree.SelectedIndex {
			fg, bg = termbox.ColorWhite, termbox.ColorBlue
		}
		printClipped(x, y+row, w, m.Tree.HorizontalScroll, line, fg, bg)
	}
}

func renderTreeLine(fn model.FlatNode, expanded model.ExpansionSet) string {
	n := fn.Node
	indent := ""
	for i := 0; i < fn.Depth; i++ {
		indent += "  "
	}

	id, hasID := n.Identity()
	isExpanded := !hasID || func() bool { _, ok := expanded[id]; return ok }()
	hasChildren := len(n.Children) > 0

	icon := "  "
	if hasChildren {
		if isExpanded {
			icon = "▼ "
		} else {
			icon = "▶ "
		}
	}

	typeName := "Unknown"
	if n.WidgetRuntimeType != nil {
		typeName = *n.WidgetRuntimeType
	} else if n.NodeType != nil {
		typeName = *n.NodeType
	}
	desc := "?"
	if n.Description != nil {
		desc = *n.Description
	}

	return fmt.Sprintf("%s%s%s (%s)", indent, icon, typeName, desc)
}

func drawDetails(m *model.Model, x, y, w, h int) {
	var node *inspector.DiagnosticsNode
	if m.Tree.SelectedDetails != nil {
		node = m.Tree.SelectedDetails
	} else {
		node = m.Tree.SelectedNode()
	}
	if node == nil {
		print(x, y, "No node selected", termbox.ColorDefault, termbox.ColorDefault)
		return
	}

	row := y
	typeName := "Unknown"
	if node.WidgetRuntimeType != nil {
		typeName = *node.WidgetRuntimeType
	}
	desc := "-"
	if node.Description != nil {
		desc = *node.Description
	}
	print(x, row, "Type: "+typeName, termbox.ColorDefault, termbox.ColorDefault)
	row++
	print(x, row, "Description: "+desc, termbox.ColorDefault, termbox.ColorDefault)
	row += 2

	for _, prop := range node.Properties {
		if row-y >= h {
			break
		}
		name := ""
		if prop.Name != nil {
			name = *prop.Name
		}
		pdesc := ""
		if prop.Description != nil {
			pdesc = *prop.Description
		}
		if name == "" && pdesc == "" {
			continue
		}
		print(x, row, "- "+name+": "+pdesc, termbox.ColorDefault, termbox.ColorDefault)
		row++
	}
}

func drawLogs(m *model.Model, x, y, w, h int) {
	m.Logs.Scroll(0, h) // reclamp without moving, picks up current viewport height
	lines := m.Logs.Lines
	start := m.Logs.ScrollOffset
	if m.Logs.AutoScroll {
		start = max0(len(lines) - h)
	}
	for row := 0; row < h && start+row < len(lines); row++ {
		l := lines[start+row]
		fg := termbox.ColorDefault
		if l.Error {
			fg = termbox.ColorRed
		}
		printClipped(x, y+row, w, 0, l.Text, fg, termbox.ColorDefault)
	}
}

func drawFileTree(m *model.Model, x, y, w, h int) {
	if m.FileTree == nil {
		print(x, y, "No project loaded", termbox.ColorDefault, termbox.ColorDefault)
		return
	}
	view := m.FileTree.FlattenedView()
	m.FileTree.UpdateScroll(h)

	for row := 0; row < h && m.FileTree.ScrollOffset+row < len(view); row++ {
		idx := m.FileTree.ScrollOffset + row
		fn := view[idx]
		indent := ""
		for i := 0; i < fn.Depth; i++ {
			indent += "  "
		}
		name := fn.Node.Name
		if fn.Node.IsDir {
			name += "/"
		}
		fg, bg := termbox.ColorDefault, termbox.ColorDefault
		if idx == m.FileTree.SelectedIndex {
			fg, bg = termbox.ColorWhite, termbox.ColorBlue
		}
		printClipped(x, y+row, w, 0, indent+name, fg, bg)
	}
}

func drawSource(m *model.Model, x, y, w, h int) {
	if m.Source == nil {
		print(x, y, "No file open", termbox.ColorDefault, termbox.ColorDefault)
		return
	}
	for row := 0; row < h && m.Source.ScrollOffset+row < len(m.Source.Lines); row++ {
		lineIdx := m.Source.ScrollOffset + row
		lineNum := lineIdx + 1
		key := model.BreakpointKey(m.Source.Path, lineNum)
		prefix := " "
		fg := termbox.ColorDefault
		if m.Breakpoints.Has(key) {
			prefix = "●"
			fg = termbox.ColorRed
		}
		bg := termbox.ColorDefault
		if m.Source.SelectedLine == lineIdx {
			bg = termbox.ColorDarkGray
		}
		text := fmt.Sprintf("%s%4d %s", prefix, lineNum, m.Source.Lines[lineIdx])
		printClipped(x, y+row, w, 0, text, fg, bg)
	}
}

func drawBreakpoints(m *model.Model, x, y, w, h int) {
	for i, key := range m.Breakpoints.Keys() {
		if i >= h {
			break
		}
		printClipped(x, y+i, w, 0, key, termbox.ColorDefault, termbox.ColorDefault)
	}
}

func drawStack(m *model.Model, x, y, w, h int) {
	if !m.DebugState.Paused {
		print(x, y, "Running...", termbox.ColorDefault, termbox.ColorDefault)
		return
	}
	print(x, y, "Paused: "+m.DebugState.Reason, termbox.ColorYellow, termbox.ColorDefault)
	if m.StackTrace == nil {
		return
	}
	for i, frame := range m.StackTrace.Frames {
		if i+1 >= h {
			break
		}
		printClipped(x, y+i+1, w, 0, "- "+frame.Function.Name, termbox.ColorDefault, termbox.ColorDefault)
	}
}

func print(x, y int, s string, fg, bg termbox.Attribute) {
	for _, c := range s {
		termbox.SetCell(x, y, c, fg, bg)
		x += runewidth.RuneWidth(c)
	}
}

// printClipped draws s starting from horizontal offset hscroll, clipped
// to width w — the tree/source rendering's horizontal-scroll window.
func printClipped(x, y, w, hscroll int, s string, fg, bg termbox.Attribute) {
	col := 0
	drawn := 0
	for _, c := range s {
		cw := runewidth.RuneWidth(c)
		if col+cw <= hscroll {
			col += cw
			continue
		}
		if drawn >= w {
			break
		}
		termbox.SetCell(x+drawn, y, c, fg, bg)
		drawn += cw
		col += cw
	}
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
