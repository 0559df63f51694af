package process

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURIPatternExtractsAndConvertsScheme(t *testing.T) {
	line := "Observatory listening on 127.0.0.1:1234, available at: http://127.0.0.1:1234/abcDEF=/"
	m := uriPattern.FindStringSubmatch(line)
	require.NotNil(t, m)
	uri := strings.Replace(m[1], "http://", "ws://", 1)
	assert.Equal(t, "ws://127.0.0.1:1234/abcDEF=/", uri)
}

func TestURIPatternNoMatch(t *testing.T) {
	line := "Launching lib/main.dart on sdk gphone..."
	m := uriPattern.FindStringSubmatch(line)
	assert.Nil(t, m)
}

func TestRelayStdoutPublishesURIOnce(t *testing.T) {
	input := strings.NewReader(strings.Join([]string{
		"Launching lib/main.dart",
		"Observatory listening on 127.0.0.1:1234, available at: http://127.0.0.1:1234/abcDEF=/",
		"available at: http://127.0.0.1:9999/other/",
		"",
	}, "\n"))

	d := &Driver{}
	uriCh := make(chan string, 2)
	logCh := make(chan LogLine, 10)
	d.relayStdout(input, uriCh, logCh)

	require.Len(t, uriCh, 1)
	assert.Equal(t, "ws://127.0.0.1:1234/abcDEF=/", <-uriCh)

	var lines []string
	close(logCh)
	for l := range logCh {
		lines = append(lines, l.Text)
	}
	assert.Len(t, lines, 3)
}

func TestRelayStderrTagsErrorSeverity(t *testing.T) {
	input := strings.NewReader("Some exception thrown\n\nAnother line\n")
	logCh := make(chan LogLine, 10)
	relayStderr(input, logCh)
	close(logCh)

	var lines []LogLine
	for l := range logCh {
		lines = append(lines, l)
	}
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.True(t, l.Error)
	}
}
