package model

// LogEntry is one line in the log pane.
type LogEntry struct {
	Text  string
	Error bool
}

// LogPane holds the log pane's lines and scroll state. spec.md §9 note 4
// flags the original's clamp (logs.len()-1, wrapping via saturating_sub
// for an empty log) as buggy when a viewport height is known; this
// implementation uses the intended bound, logs.len()-viewport_height,
// whenever height is known, and falls back to the original's simpler
// clamp only when it is not.
type LogPane struct {
	Lines        []LogEntry
	ScrollOffset int
	AutoScroll   bool
}

// NewLogPane constructs a LogPane with auto-scroll on, matching the
// original's default.
func NewLogPane() *LogPane {
	return &LogPane{AutoScroll: true}
}

// Add appends a line; if AutoScroll is on the scroll position tracks the
// tail on the next render.
func (p *LogPane) Add(text string, isError bool) {
	p.Lines = append(p.Lines, LogEntry{Text: text, Error: isError})
}

// Scroll moves the viewport by delta. A negative delta disables
// auto-scroll (the user is reading back); scrolling to (or past) the tail
// re-enables it.
func (p *LogPane) Scroll(delta int, viewportHeight int) {
	if delta < 0 {
		p.AutoScroll = false
		p.ScrollOffset = max0(p.ScrollOffset + delta)
		return
	}

	max := p.maxScroll(viewportHeight)
	next := p.ScrollOffset + delta
	if next > max {
		next = max
	}
	p.ScrollOffset = next
	if p.ScrollOffset >= max {
		p.AutoScroll = true
	}
}

func (p *LogPane) maxScroll(viewportHeight int) int {
	if len(p.Lines) == 0 {
		return 0
	}
	if viewportHeight > 0 {
		return max0(len(p.Lines) - viewportHeight)
	}
	return len(p.Lines) - 1
}
