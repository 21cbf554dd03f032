package server

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"log"
	"strings"
)

// Markers recognised in the server's console output.
const (
	readyMarker = "Done"
	helpMarker  = `For help, type "help"`
	joinMarker  = "joined the game"
	leaveMarker = "left the game"
)

// LineClass is a bit set describing what a console line means.
type LineClass uint8

const (
	LinePlain   LineClass = 0
	LineStartup LineClass = 1 << iota
	LineJoined
	LineLeft
)

func (c LineClass) Has(flag LineClass) bool { return c&flag != 0 }

// Classify inspects one console line. A line may carry the startup marker
// and a join or leave marker at once; join wins over leave.
func Classify(line string) LineClass {
	class := LinePlain
	if strings.Contains(line, readyMarker) || strings.Contains(line, helpMarker) {
		class |= LineStartup
	}
	if strings.Contains(line, joinMarker) {
		class |= LineJoined
	} else if strings.Contains(line, leaveMarker) {
		class |= LineLeft
	}
	return class
}

// SignalKind identifies a message sent by the LogMonitor.
type SignalKind int

const (
	SignalLine SignalKind = iota
	SignalReady
	SignalJoined
	SignalLeft
)

// MonitorSignal is one message from a LogMonitor to its consumer.
type MonitorSignal struct {
	Kind SignalKind
	Line string
}

// maxConsecutiveReadErrors ends a monitor whose stream keeps failing without
// ever returning EOF.
const maxConsecutiveReadErrors = 16

// LogMonitor reads a server's standard output line by line and turns it into
// MonitorSignals. It owns only the read end of the stream and the send side
// of its channel.
type LogMonitor struct {
	src io.Reader
	out chan<- MonitorSignal
}

// NewLogMonitor binds a monitor to src. Signals are sent on out, which is
// closed when the stream ends.
func NewLogMonitor(src io.Reader, out chan<- MonitorSignal) *LogMonitor {
	return &LogMonitor{src: src, out: out}
}

// Run blocks until the stream reaches end-of-input or is closed.
func (m *LogMonitor) Run() {
	defer close(m.out)

	reader := bufio.NewReader(m.src)
	started := false
	failures := 0

	for {
		raw, err := reader.ReadString('\n')
		if raw != "" {
			failures = 0
			m.handleLine(raw, &started)
		}
		if err == nil {
			continue
		}
		if isStreamClosed(err) {
			return
		}
		failures++
		if failures >= maxConsecutiveReadErrors {
			log.Printf("[Monitor] Giving up on server output after %d read errors: %v", failures, err)
			return
		}
		log.Printf("[Monitor] Skipping unreadable output: %v", err)
	}
}

func (m *LogMonitor) handleLine(raw string, started *bool) {
	line := strings.TrimRight(raw, "\r\n")
	line = strings.ToValidUTF8(line, "�")

	m.out <- MonitorSignal{Kind: SignalLine, Line: line}

	class := Classify(line)
	if !*started && class.Has(LineStartup) {
		*started = true
		m.out <- MonitorSignal{Kind: SignalReady, Line: line}
	}
	switch {
	case class.Has(LineJoined):
		m.out <- MonitorSignal{Kind: SignalJoined, Line: line}
	case class.Has(LineLeft):
		m.out <- MonitorSignal{Kind: SignalLeft, Line: line}
	}
}

func isStreamClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, fs.ErrClosed)
}
