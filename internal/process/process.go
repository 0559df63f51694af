// Package process drives the external attach tool: it spawns the process,
// scans its stdout for the VM-service URI, relays both output streams as
// log lines, and forwards single-character interactive commands to its
// stdin.
package process

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// uriPattern matches "available at: http://..." lines, reproduced from
// original_source/src/flutter_daemon.rs verbatim.
var uriPattern = regexp.MustCompile(`available at: (http://[\d.:]+/[^/]+/?)`)

// Command recognized on stdin.
const (
	CmdReload  = 'r'
	CmdRestart = 'R'
	CmdQuit    = 'q'
)

// LogLine is one line relayed from the child's stdout/stderr.
type LogLine struct {
	Text  string
	Error bool
}

// Driver spawns and owns one attach-tool child process.
type Driver struct {
	AppDir   string
	DeviceID string
	// Argv is the attach tool's argv[0] and leading args, before --verbose
	// and -d <device>; defaults to {"fvm", "flutter", "attach"} matching
	// the original tool invocation.
	Argv []string

	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// DefaultArgv is the reference attach-tool invocation.
var DefaultArgv = []string{"fvm", "flutter", "attach"}

// Run spawns the child and blocks until its stdout reaches EOF. uriCh
// receives the discovered WebSocket URI exactly once (fire-and-forget: if
// the channel isn't ready to receive, the send is dropped, matching
// spec.md §4.3). logCh receives the non-empty output lines of either
// stream; each send is non-blocking, so a line is dropped when logCh is
// full. cmdCh delivers single-character commands to forward to stdin.
func (d *Driver) Run(ctx context.Context, uriCh chan<- string, logCh chan<- LogLine, cmdCh <-chan byte) error {
	argv := d.Argv
	if len(argv) == 0 {
		argv = DefaultArgv
	}

	args := append([]string{}, argv[1:]...)
	args = append(args, "--verbose")
	if d.DeviceID != "" {
		args = append(args, "-d", d.DeviceID)
	}

	cmd := exec.CommandContext(ctx, argv[0], args...)
	cmd.Dir = d.AppDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "process: stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Wrap(err, "process: stderr pipe")
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, "process: stdin pipe")
	}
	d.stdin = stdin
	d.cmd = cmd

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "process: spawn")
	}

	go relayStderr(stderr, logCh)
	go d.writeCommands(cmdCh)

	d.relayStdout(stdout, uriCh, logCh)

	return cmd.Wait()
}

// relayStdout scans every stdout line for the URI pattern (publishing on
// first match only) and forwards non-empty lines to the log sink at info
// severity. It returns when stdout reaches EOF.
func (d *Driver) relayStdout(stdout io.Reader, uriCh chan<- string, logCh chan<- LogLine) {
	published := false
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		select {
		case logCh <- LogLine{Text: line}:
		default:
		}

		if !published {
			if m := uriPattern.FindStringSubmatch(line); m != nil {
				uri := strings.Replace(m[1], "http://", "ws://", 1)
				select {
				case uriCh <- uri:
					published = true
				default:
					// Channel not ready to receive; this is unreachable in
					// practice since it is primed empty and only one URI is
					// ever sent, per spec.md §4.3.
					published = true
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		log.WithError(err).Warn("process: stdout scan error")
	}
}

// relayStderr forwards non-empty stderr lines tagged error-severity.
func relayStderr(stderr io.Reader, logCh chan<- LogLine) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case logCh <- LogLine{Text: line, Error: true}:
		default:
		}
	}
}

// writeCommands forwards single-character commands to stdin. A write
// failure is logged but does not tear down the driver.
func (d *Driver) writeCommands(cmdCh <-chan byte) {
	for c := range cmdCh {
		if _, err := d.stdin.Write([]byte{c}); err != nil {
			log.WithError(err).Warn("process: failed to write command to child stdin")
		}
	}
}
