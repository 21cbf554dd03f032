package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

const (
	DefaultStopPollInterval = 500 * time.Millisecond
	DefaultStopPollAttempts = 10
)

// Options configures a Supervisor.
type Options struct {
	// Table is consulted for orphaned server processes and resource samples.
	Table ProcessTable
	// NewCommand builds the launch command. Defaults to JavaCommand("java").
	NewCommand CommandFactory
	// StopPollInterval and StopPollAttempts bound the wait after killing an
	// orphaned process.
	StopPollInterval time.Duration
	StopPollAttempts int
}

// ownedProcess is a server process spawned by this supervisor.
type ownedProcess struct {
	pid     int32
	process *os.Process
	console *consoleWriter
	// done is closed once the process has exited and its streams are drained.
	done chan struct{}
}

// Supervisor owns the lifecycle of one locally spawned server process.
type Supervisor struct {
	cfgMu  sync.RWMutex
	config *ServerConfig

	// opMu serializes Start and Stop so a stop's final Offline cannot land
	// on a process started while it was finishing.
	opMu sync.Mutex

	procMu sync.Mutex
	proc   *ownedProcess

	status  statusCell
	players playerCounter

	table        ProcessTable
	newCommand   CommandFactory
	pollInterval time.Duration
	pollAttempts int

	events *eventBus
}

// NewSupervisor creates an Offline supervisor with no configuration.
func NewSupervisor(opts Options) *Supervisor {
	if opts.Table == nil {
		opts.Table = NewSystemProcessTable("java")
	}
	if opts.NewCommand == nil {
		opts.NewCommand = JavaCommand("java")
	}
	if opts.StopPollInterval <= 0 {
		opts.StopPollInterval = DefaultStopPollInterval
	}
	if opts.StopPollAttempts <= 0 {
		opts.StopPollAttempts = DefaultStopPollAttempts
	}
	return &Supervisor{
		table:        opts.Table,
		newCommand:   opts.NewCommand,
		pollInterval: opts.StopPollInterval,
		pollAttempts: opts.StopPollAttempts,
		events:       newEventBus(),
	}
}

// Subscribe registers a sink for status, log and player events.
func (s *Supervisor) Subscribe(sink EventSink) {
	s.events.subscribe(sink)
}

// SetConfig replaces the launch descriptor. A running process is unaffected
// until it is restarted.
func (s *Supervisor) SetConfig(cfg ServerConfig) error {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfgMu.Lock()
	s.config = &cfg
	s.cfgMu.Unlock()
	log.Printf("[Supervisor] Configured server %q at %s", cfg.DisplayName(), cfg.Path)
	return nil
}

// Config returns a copy of the current launch descriptor, or nil.
func (s *Supervisor) Config() *ServerConfig {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	if s.config == nil {
		return nil
	}
	cfg := *s.config
	return &cfg
}

// Status returns the current lifecycle status.
func (s *Supervisor) Status() LifecycleStatus {
	return s.status.get()
}

// PlayerCount returns the last known number of online players.
func (s *Supervisor) PlayerCount() int {
	return s.players.value()
}

// OwnsProcess reports whether a process spawned by this supervisor is alive.
func (s *Supervisor) OwnsProcess() bool {
	return s.owned() != nil
}

func (s *Supervisor) owned() *ownedProcess {
	s.procMu.Lock()
	defer s.procMu.Unlock()
	return s.proc
}

// Start launches the configured server. It returns once the process has been
// spawned; the status stays Starting until the server prints its ready banner.
func (s *Supervisor) Start() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	cfg := s.Config()
	if cfg == nil {
		return ErrConfigurationMissing
	}

	pid, found, err := s.table.FindServerProcess(cfg.Path)
	if err != nil {
		log.Printf("[Supervisor] Warning: process scan failed, continuing: %v", err)
	} else if found {
		return &ProcessAlreadyRunningError{PID: pid}
	}

	if s.owned() != nil {
		return ErrAlreadyRunning
	}
	if _, _, ok := s.status.apply(TriggerStart); !ok {
		return ErrAlreadyRunning
	}
	s.emitStatus(StatusStarting)
	log.Printf("[Supervisor] Starting server %q...", cfg.DisplayName())

	proc, err := s.spawn(*cfg)
	if err != nil {
		s.applyAndEmit(TriggerLaunchFailed)
		log.Printf("[Supervisor] Launch failed: %v", err)
		return &LaunchError{Reason: err}
	}
	log.Printf("[Supervisor] Server process started (pid %d)", proc.pid)
	return nil
}

func (s *Supervisor) spawn(cfg ServerConfig) (*ownedProcess, error) {
	if err := acceptEULA(cfg.Path); err != nil {
		return nil, err
	}

	cmd := s.newCommand(cfg)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	proc := &ownedProcess{
		pid:     int32(cmd.Process.Pid),
		process: cmd.Process,
		console: &consoleWriter{w: stdin},
		done:    make(chan struct{}),
	}
	s.procMu.Lock()
	s.proc = proc
	s.procMu.Unlock()

	signals := make(chan MonitorSignal, 64)
	go NewLogMonitor(stdout, signals).Run()

	go func() {
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.drainStderr(stderr)
		}()

		s.consume(signals)
		wg.Wait()

		// Wait must follow the stream reads: it closes the pipes.
		if err := cmd.Wait(); err != nil {
			log.Printf("[Supervisor] Server process %d exited: %v", proc.pid, err)
		} else {
			log.Printf("[Supervisor] Server process %d exited", proc.pid)
		}
		_ = proc.console.Close()

		s.procMu.Lock()
		if s.proc == proc {
			s.proc = nil
		}
		s.procMu.Unlock()

		s.applyAndEmit(TriggerExited)
		close(proc.done)
	}()

	return proc, nil
}

// consume applies monitor signals to the shared state until the monitor ends.
func (s *Supervisor) consume(signals <-chan MonitorSignal) {
	for sig := range signals {
		switch sig.Kind {
		case SignalLine:
			s.events.emit(Event{Type: EventLogLine, Line: sig.Line})
		case SignalReady:
			if _, to, ok := s.status.apply(TriggerReady); ok {
				log.Printf("[Supervisor] Server is ready")
				s.emitStatus(to)
			}
		case SignalJoined:
			s.emitPlayers(s.players.increment())
		case SignalLeft:
			s.emitPlayers(s.players.decrement())
		}
	}
}

func (s *Supervisor) drainStderr(stderr io.Reader) {
	lines := make(chan MonitorSignal, 16)
	go NewLogMonitor(stderr, lines).Run()
	for sig := range lines {
		if sig.Kind == SignalLine {
			s.events.emit(Event{Type: EventLogLine, Line: sig.Line})
		}
	}
}

// Stop terminates the server, whether owned or orphaned. It reports whether a
// process was found and stopped. Nothing running is not an error.
func (s *Supervisor) Stop() (bool, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.applyAndEmit(TriggerStop)

	s.procMu.Lock()
	proc := s.proc
	s.proc = nil
	s.procMu.Unlock()

	if proc != nil {
		log.Printf("[Supervisor] Killing server process %d", proc.pid)
		if err := proc.process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			log.Printf("[Supervisor] Warning: kill failed: %v", err)
		}
		<-proc.done
		s.applyAndEmit(TriggerStopped)
		return true, nil
	}

	cfg := s.Config()
	if cfg == nil {
		s.applyAndEmit(TriggerStopped)
		return false, ErrConfigurationMissing
	}

	stopped := s.stopOrphan(cfg.Path)
	s.applyAndEmit(TriggerStopped)
	return stopped, nil
}

func (s *Supervisor) stopOrphan(dir string) bool {
	pid, found, err := s.table.FindServerProcess(dir)
	if err != nil {
		log.Printf("[Supervisor] Warning: process scan failed: %v", err)
		return false
	}
	if !found {
		return false
	}

	log.Printf("[Supervisor] Killing orphaned server process %d", pid)
	if err := s.table.Kill(pid); err != nil {
		if errors.Is(err, ErrProcessNotFound) {
			return true
		}
		log.Printf("[Supervisor] Warning: failed to kill orphan %d: %v", pid, err)
	}

	for attempt := 0; attempt < s.pollAttempts; attempt++ {
		time.Sleep(s.pollInterval)
		exists, err := s.table.Exists(pid)
		if err == nil && !exists {
			log.Printf("[Supervisor] Orphaned process %d exited", pid)
			return true
		}
	}
	log.Printf("[Supervisor] Warning: orphaned process %d still present after %v", pid,
		time.Duration(s.pollAttempts)*s.pollInterval)
	return true
}

// SendCommand writes text to the owned server's console.
func (s *Supervisor) SendCommand(text string) error {
	proc := s.owned()
	if proc == nil {
		return ErrNoOwnedProcess
	}
	return proc.console.WriteCommand(text)
}

// Shutdown kills an owned server process and stops event delivery. It is
// meant for controller exit; orphans are left alone.
func (s *Supervisor) Shutdown() {
	s.procMu.Lock()
	proc := s.proc
	s.procMu.Unlock()

	if proc != nil {
		log.Printf("[Supervisor] Shutting down, killing server process %d", proc.pid)
		if err := proc.process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			log.Printf("[Supervisor] Warning: kill failed: %v", err)
		}
		<-proc.done
	}
	s.events.close()
}

func (s *Supervisor) applyAndEmit(t Trigger) {
	if _, to, ok := s.status.apply(t); ok {
		s.emitStatus(to)
	}
}

func (s *Supervisor) emitStatus(status LifecycleStatus) {
	s.events.emit(Event{Type: EventStatusUpdate, Status: status})
}

func (s *Supervisor) emitPlayers(n int) {
	s.events.emit(Event{Type: EventPlayerUpdate, Players: n})
}
