package server

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectSignals(src io.Reader) []MonitorSignal {
	out := make(chan MonitorSignal, 16)
	go NewLogMonitor(src, out).Run()

	var signals []MonitorSignal
	for sig := range out {
		signals = append(signals, sig)
	}
	return signals
}

func kinds(signals []MonitorSignal, kind SignalKind) []MonitorSignal {
	var matched []MonitorSignal
	for _, sig := range signals {
		if sig.Kind == kind {
			matched = append(matched, sig)
		}
	}
	return matched
}

func TestClassify(t *testing.T) {
	tests := []struct {
		line string
		want LineClass
	}{
		{`[12:00:01] [Server thread/INFO]: Done (3.21s)! For help, type "help"`, LineStartup},
		{`For help, type "help"`, LineStartup},
		{"[12:01:00] [Server thread/INFO]: Steve joined the game", LineJoined},
		{"[12:02:00] [Server thread/INFO]: Steve left the game", LineLeft},
		{"[12:00:00] [Server thread/INFO]: Preparing level \"world\"", LinePlain},
		{"", LinePlain},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.line), tt.line)
	}

	both := Classify("Done joined the game")
	assert.True(t, both.Has(LineStartup))
	assert.True(t, both.Has(LineJoined))
	assert.False(t, both.Has(LineLeft))
}

func TestLogMonitorForwardsEveryLine(t *testing.T) {
	input := "Starting minecraft server version 1.20.4\r\n" +
		"Preparing spawn area: 83%\n" +
		"Done (2.5s)! For help, type \"help\"\n" +
		"no trailing newline"

	signals := collectSignals(strings.NewReader(input))
	lines := kinds(signals, SignalLine)

	require.Len(t, lines, 4)
	assert.Equal(t, "Starting minecraft server version 1.20.4", lines[0].Line)
	assert.Equal(t, "no trailing newline", lines[3].Line)
}

func TestLogMonitorReadyFiresOnce(t *testing.T) {
	input := "Done (2.5s)! For help, type \"help\"\n" +
		"Done saving\n" +
		"For help, type \"help\"\n"

	signals := collectSignals(strings.NewReader(input))

	assert.Len(t, kinds(signals, SignalReady), 1)
	// The log line precedes its classification.
	require.GreaterOrEqual(t, len(signals), 2)
	assert.Equal(t, SignalLine, signals[0].Kind)
	assert.Equal(t, SignalReady, signals[1].Kind)
}

func TestLogMonitorPlayers(t *testing.T) {
	input := "Alex left the game\n" +
		"Steve joined the game\n" +
		"Alex joined the game\n" +
		"Steve left the game\n"

	signals := collectSignals(strings.NewReader(input))

	assert.Len(t, kinds(signals, SignalJoined), 2)
	assert.Len(t, kinds(signals, SignalLeft), 2)
}

func TestLogMonitorReplacesInvalidUTF8(t *testing.T) {
	input := "bad \xff\xfe bytes\nnext line\n"

	lines := kinds(collectSignals(strings.NewReader(input)), SignalLine)

	require.Len(t, lines, 2)
	assert.Equal(t, "bad � bytes", lines[0].Line)
	assert.Equal(t, "next line", lines[1].Line)
}

func TestLogMonitorLongLine(t *testing.T) {
	long := strings.Repeat("x", 256*1024)

	lines := kinds(collectSignals(strings.NewReader(long+"\nafter\n")), SignalLine)

	require.Len(t, lines, 2)
	assert.Len(t, lines[0].Line, len(long))
}

// flakyReader fails a few reads before serving its content.
type flakyReader struct {
	failures int
	content  io.Reader
}

func (r *flakyReader) Read(p []byte) (int, error) {
	if r.failures > 0 {
		r.failures--
		return 0, errors.New("transient read error")
	}
	return r.content.Read(p)
}

func TestLogMonitorSkipsTransientErrors(t *testing.T) {
	src := &flakyReader{failures: 3, content: strings.NewReader("Steve joined the game\n")}

	signals := collectSignals(src)

	assert.Len(t, kinds(signals, SignalJoined), 1)
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("device gone") }

func TestLogMonitorGivesUpOnPersistentErrors(t *testing.T) {
	signals := collectSignals(brokenReader{})
	assert.Empty(t, signals)
}
