package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	termbox "github.com/nsf/termbox-go"
	log "github.com/sirupsen/logrus"

	"github.com/inspector-tui/inspector-tui/internal/applog"
	"github.com/inspector-tui/inspector-tui/internal/config"
	"github.com/inspector-tui/inspector-tui/internal/inspector"
	"github.com/inspector-tui/inspector-tui/internal/model"
	"github.com/inspector-tui/inspector-tui/internal/process"
	"github.com/inspector-tui/inspector-tui/internal/rpc"
	"github.com/inspector-tui/inspector-tui/internal/session"
	"github.com/inspector-tui/inspector-tui/internal/ui"
	"github.com/inspector-tui/inspector-tui/internal/watch"
)

// reloadMarkers are the attach-tool log-line substrings that signal a
// completed hot reload/restart, reproduced from
// original_source/src/flutter_daemon.rs's stdout-tagging convention.
var reloadMarkers = []string{"Reloaded", "Restarted"}

// RunApp wires together the process driver, the RPC transport, the session
// orchestrator, the filesystem watcher and the termbox UI, and runs the
// single-threaded main loop of spec.md §5 until ctx is cancelled or the
// attached process exits.
func RunApp(ctx context.Context, cfg *config.Config) error {
	m := model.New()

	hook := applog.NewPaneHook(m.Logs)
	if err := applog.Configure(levelName(cfg.Verbose), hook); err != nil {
		return err
	}

	fileTree, err := model.NewFileTree(cfg.WatchDir)
	if err != nil {
		log.WithError(err).Warn("app: failed to build file tree")
	} else {
		m.FileTree = fileTree
	}

	uriCh := make(chan string, 1)
	logCh := make(chan process.LogLine, 64)
	cmdCh := make(chan byte, 4)

	driver := &process.Driver{AppDir: cfg.AppDir, DeviceID: cfg.DeviceID}
	driverDone := make(chan error, 1)
	go func() { driverDone <- driver.Run(ctx, uriCh, logCh, cmdCh) }()

	m.ConnectionStatus = "Waiting for attach tool..."

	var uri string
	select {
	case uri = <-uriCh:
	case err := <-driverDone:
		return fmt.Errorf("attach tool exited before advertising a VM-service URI: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}

	handle, events, err := rpc.Connect(ctx, uri)
	if err != nil {
		return err
	}

	orch := session.New(handle, events)
	orchDone := make(chan error, 1)
	go func() { orchDone <- orch.Run(ctx) }()

	watcher := watch.New(cfg.WatchDir)
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("app: watcher exited")
		}
	}()

	if err := termbox.Init(); err != nil {
		return err
	}
	defer termbox.Close()
	termbox.SetInputMode(termbox.InputEsc)

	tbEvents := make(chan termbox.Event, 16)
	go func() {
		for {
			tbEvents <- termbox.PollEvent()
		}
	}()

	tab := ui.TabInspector
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-driverDone:
			return err

		case err := <-orchDone:
			if err != nil {
				log.WithError(err).Warn("app: session orchestrator exited")
			}
			return err

		case status := <-orch.Out.ConnectionStatus:
			m.ConnectionStatus = status

		case isolates := <-orch.Out.IsolateList:
			m.IsolateOptions = isolates
			if len(isolates) > 1 {
				m.Focus = model.FocusIsolateSelection
			}

		case tr := <-orch.Out.Tree:
			if tr.Err != nil {
				m.ConnectionStatus = "Tree fetch failed: " + tr.Err.Error()
				break
			}
			m.Tree.SetRootNode(tr.Tree)

		case details := <-orch.Out.Details:
			m.Tree.SelectedDetails = details

		case pe := <-orch.Out.DebugState:
			if pe.Paused {
				m.ApplyPause(pe.IsolateID, pe.Reason, pe.Stack)
			} else {
				m.ApplyResume()
			}

		case br := <-orch.Out.BreakpointResult:
			if br.Err != nil {
				m.Logs.Add("breakpoint request failed for "+br.Key+": "+br.Err.Error(), true)
				break
			}
			if br.PeerID != "" {
				m.Breakpoints.Add(br.Key, br.PeerID)
			}

		case line := <-logCh:
			m.Logs.Add(line.Text, line.Error)
			if !line.Error && containsAny(line.Text, reloadMarkers) {
				select {
				case orch.In.RefreshPulse <- struct{}{}:
				default:
				}
			}

		case <-watcher.Pulses:
			if m.AutoReload {
				select {
				case cmdCh <- process.CmdReload:
				default:
				}
			}

		case werr := <-watcher.Errors:
			log.WithError(werr).Warn("app: watcher error")

		case ev := <-tbEvents:
			if ev.Type != termbox.EventKey {
				continue
			}
			quit := handleKey(m, &tab, ev, orch, cmdCh)
			if quit {
				return nil
			}

		case <-ticker.C:
		}

		ui.Draw(m, tab)
	}
}

func levelName(verbose bool) string {
	if verbose {
		return "debug"
	}
	return "info"
}

// quitChild sends 'q' to the attached process's stdin before the terminal
// is torn down, per spec.md §3/§6.
func quitChild(cmdCh chan<- byte) {
	select {
	case cmdCh <- process.CmdQuit:
	default:
	}
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// handleKey applies one termbox key event to the model, issuing any
// resulting request to the orchestrator or the process driver, per
// spec.md §6. It returns true when the application should exit.
func handleKey(m *model.Model, tab *ui.Tab, ev termbox.Event, orch *session.Orchestrator, cmdCh chan<- byte) bool {
	if m.Focus == model.FocusIsolateSelection {
		return handleIsolateSelectionKey(m, ev, orch)
	}

	switch {
	case ev.Key == termbox.KeyCtrlC:
		quitChild(cmdCh)
		return true
	case ev.Ch == 'q':
		quitChild(cmdCh)
		return true
	case ev.Ch == 'l':
		m.ShowLogs = !m.ShowLogs
	case ev.Ch == '1':
		*tab = ui.TabInspector
	case ev.Ch == '2':
		*tab = ui.TabDebugger
	case ev.Key == termbox.KeyTab:
		m.CycleFocus()
	case ev.Ch == 'a':
		m.AutoReload = !m.AutoReload
	case ev.Ch == 'r':
		select {
		case cmdCh <- process.CmdReload:
		default:
		}
	case ev.Ch == 'R':
		select {
		case cmdCh <- process.CmdRestart:
		default:
		}
	case ev.Key == termbox.KeyF5:
		if m.DebugState.Paused {
			select {
			case orch.In.Resume <- session.ResumeRequest{IsolateID: m.DebugState.IsolateID}:
			default:
			}
		} else {
			select {
			case orch.In.RefreshPulse <- struct{}{}:
			default:
			}
		}
	case ev.Key == termbox.KeyF10:
		select {
		case orch.In.Resume <- session.ResumeRequest{IsolateID: m.DebugState.IsolateID, Step: inspector.StepOver}:
		default:
		}
	case ev.Key == termbox.KeyF11:
		select {
		case orch.In.Resume <- session.ResumeRequest{IsolateID: m.DebugState.IsolateID, Step: inspector.StepInto}:
		default:
		}
	default:
		switch *tab {
		case ui.TabInspector:
			handleInspectorKey(m, ev, orch)
		case ui.TabDebugger:
			handleDebuggerKey(m, ev, orch)
		}
	}
	return false
}

func handleIsolateSelectionKey(m *model.Model, ev termbox.Event, orch *session.Orchestrator) bool {
	if ev.Key == termbox.KeyEsc {
		return false
	}
	idx := int(ev.Ch - '1')
	if idx < 0 || idx >= len(m.IsolateOptions) {
		return false
	}
	chosen := m.IsolateOptions[idx]
	m.Focus = model.FocusTree
	select {
	case orch.In.SelectIsolate <- chosen.ID:
	default:
	}
	return false
}

func handleInspectorKey(m *model.Model, ev termbox.Event, orch *session.Orchestrator) {
	if m.Focus == model.FocusSearch {
		handleSearchKey(m, ev)
		return
	}

	switch {
	case ev.Ch == '/':
		m.Focus = model.FocusSearch
	case ev.Ch == 'f':
		m.Tree.RecenterOnSelection()
	case ev.Key == termbox.KeyArrowUp:
		m.Tree.MoveSelection(-1)
		requestSelectedDetails(m, orch)
	case ev.Key == termbox.KeyArrowDown:
		m.Tree.MoveSelection(1)
		requestSelectedDetails(m, orch)
	case ev.Key == termbox.KeyArrowLeft:
		if !m.Tree.CollapseSelected() {
			m.Tree.SelectParent()
		}
	case ev.Key == termbox.KeyArrowRight:
		m.Tree.ExpandSelected()
		m.Tree.SelectFirstChild()
	case ev.Key == termbox.KeySpace:
		m.Tree.ToggleExpand()
	case ev.Key == termbox.KeyPgup:
		m.Logs.Scroll(-10, 0)
	case ev.Key == termbox.KeyPgdn:
		m.Logs.Scroll(10, 0)
	}
}

func requestSelectedDetails(m *model.Model, orch *session.Orchestrator) {
	node := m.Tree.SelectedNode()
	if node == nil {
		return
	}
	id, ok := node.Identity()
	if !ok {
		return
	}
	select {
	case orch.In.DetailsWanted <- id:
	default:
	}
}

func handleSearchKey(m *model.Model, ev termbox.Event) {
	switch {
	case ev.Key == termbox.KeyEsc:
		m.Search.SetQuery("", m.Tree.Root())
		m.Focus = model.FocusTree
	case ev.Key == termbox.KeyEnter:
		if id, ok := m.Search.Current(); ok {
			m.Tree.JumpToMatch(id)
		}
		m.Focus = model.FocusTree
	case ev.Key == termbox.KeyArrowDown:
		m.Search.Next()
	case ev.Key == termbox.KeyArrowUp:
		m.Search.Prev()
	case ev.Key == termbox.KeyBackspace || ev.Key == termbox.KeyBackspace2:
		q := m.Search.Query
		if len(q) > 0 {
			runes := []rune(q)
			m.Search.SetQuery(string(runes[:len(runes)-1]), m.Tree.Root())
		}
	case ev.Ch != 0:
		m.Search.SetQuery(m.Search.Query+string(ev.Ch), m.Tree.Root())
	}
}

func handleDebuggerKey(m *model.Model, ev termbox.Event, orch *session.Orchestrator) {
	if m.Focus == model.FocusDebuggerSearch {
		handleDebuggerSearchKey(m, ev)
		return
	}

	switch {
	case ev.Ch == '/':
		m.Focus = model.FocusDebuggerSearch
	case ev.Key == termbox.KeyArrowUp:
		if m.Focus == model.FocusDebuggerSource && m.Source != nil {
			if m.Source.SelectedLine > 0 {
				m.Source.SelectedLine--
			}
		} else {
			m.FileTree.MoveSelection(-1)
		}
	case ev.Key == termbox.KeyArrowDown:
		if m.Focus == model.FocusDebuggerSource && m.Source != nil {
			if m.Source.SelectedLine < len(m.Source.Lines)-1 {
				m.Source.SelectedLine++
			}
		} else {
			m.FileTree.MoveSelection(1)
		}
	case ev.Key == termbox.KeyPgup:
		if m.Focus == model.FocusDebuggerSource && m.Source != nil {
			scrollSource(m.Source, -10)
		}
	case ev.Key == termbox.KeyPgdn:
		if m.Focus == model.FocusDebuggerSource && m.Source != nil {
			scrollSource(m.Source, 10)
		}
	case ev.Key == termbox.KeyEnter:
		activateFileTreeSelection(m)
	case ev.Key == termbox.KeyTab:
		if m.Focus == model.FocusDebuggerFiles {
			m.Focus = model.FocusDebuggerSource
		} else {
			m.Focus = model.FocusDebuggerFiles
		}
	case ev.Ch == 'b':
		toggleBreakpointAtCursor(m, orch)
	}
}

// scrollSource moves both the selected line and the scroll offset of a
// source buffer by delta, clamped to its line count, mirroring the
// LogPane.Scroll idiom used by the inspector tab.
func scrollSource(s *model.SourceViewer, delta int) {
	last := len(s.Lines) - 1
	if last < 0 {
		return
	}
	s.SelectedLine += delta
	if s.SelectedLine < 0 {
		s.SelectedLine = 0
	} else if s.SelectedLine > last {
		s.SelectedLine = last
	}
	s.ScrollOffset += delta
	if s.ScrollOffset < 0 {
		s.ScrollOffset = 0
	} else if s.ScrollOffset > last {
		s.ScrollOffset = last
	}
}

func handleDebuggerSearchKey(m *model.Model, ev termbox.Event) {
	switch {
	case ev.Key == termbox.KeyEsc:
		m.DebuggerSearch.SetFileQuery("", m.FileTree.Root())
		m.Focus = model.FocusDebuggerFiles
	case ev.Key == termbox.KeyEnter:
		if path, ok := m.DebuggerSearch.Current(); ok {
			m.FileTree.JumpToMatch(path)
		}
		m.Focus = model.FocusDebuggerFiles
	case ev.Key == termbox.KeyArrowDown:
		m.DebuggerSearch.Next()
	case ev.Key == termbox.KeyArrowUp:
		m.DebuggerSearch.Prev()
	case ev.Key == termbox.KeyBackspace || ev.Key == termbox.KeyBackspace2:
		q := m.DebuggerSearch.Query
		if len(q) > 0 {
			runes := []rune(q)
			m.DebuggerSearch.SetFileQuery(string(runes[:len(runes)-1]), m.FileTree.Root())
		}
	case ev.Ch != 0:
		m.DebuggerSearch.SetFileQuery(m.DebuggerSearch.Query+string(ev.Ch), m.FileTree.Root())
	}
}

func activateFileTreeSelection(m *model.Model) {
	node := m.FileTree.SelectedNode()
	if node == nil {
		return
	}
	if node.IsDir {
		m.FileTree.ToggleExpand()
		return
	}
	src, err := model.OpenFile(node.Path)
	if err != nil {
		log.WithError(err).Warn("app: failed to open source file")
		return
	}
	m.Source = src
	m.Focus = model.FocusDebuggerSource
}

func toggleBreakpointAtCursor(m *model.Model, orch *session.Orchestrator) {
	if m.Source == nil {
		return
	}
	line := m.Source.SelectedLine + 1
	peerID, hasPeerID := m.Breakpoints.PeerID(model.BreakpointKey(m.Source.Path, line))
	key, nowSet := m.ToggleBreakpointAt(m.Source.Path, line)
	if m.DebugState.IsolateID == "" {
		return
	}
	if nowSet {
		select {
		case orch.In.AddBreakpoint <- session.AddBreakpointRequest{
			Key:       key,
			IsolateID: m.DebugState.IsolateID,
			ScriptURI: "file://" + m.Source.Path,
			Line:      line,
		}:
		default:
		}
		return
	}
	if hasPeerID && peerID != "" {
		select {
		case orch.In.RemoveBreakpoint <- session.RemoveBreakpointRequest{
			Key:          key,
			IsolateID:    m.DebugState.IsolateID,
			BreakpointID: peerID,
		}:
		default:
		}
	}
}
