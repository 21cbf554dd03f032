package server

import (
	"fmt"
	"sync"
)

// LifecycleStatus is the supervisor's view of the managed server.
type LifecycleStatus int

const (
	StatusOffline LifecycleStatus = iota
	StatusStarting
	StatusRunning
	StatusStopping
)

var statusNames = map[LifecycleStatus]string{
	StatusOffline:  "Offline",
	StatusStarting: "Starting",
	StatusRunning:  "Running",
	StatusStopping: "Stopping",
}

func (s LifecycleStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("LifecycleStatus(%d)", int(s))
}

// MarshalText renders the status the way clients expect it ("Offline", "Running", ...).
func (s LifecycleStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *LifecycleStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus converts a status name back into a LifecycleStatus.
func ParseStatus(name string) (LifecycleStatus, error) {
	for status, n := range statusNames {
		if n == name {
			return status, nil
		}
	}
	return StatusOffline, fmt.Errorf("unknown lifecycle status %q", name)
}

// Trigger is an input to the lifecycle state machine.
type Trigger int

const (
	TriggerStart Trigger = iota
	TriggerLaunchFailed
	TriggerReady
	TriggerStop
	TriggerStopped
	TriggerExited
)

func (t Trigger) String() string {
	switch t {
	case TriggerStart:
		return "start"
	case TriggerLaunchFailed:
		return "launch-failed"
	case TriggerReady:
		return "ready"
	case TriggerStop:
		return "stop"
	case TriggerStopped:
		return "stopped"
	case TriggerExited:
		return "exited"
	default:
		return fmt.Sprintf("Trigger(%d)", int(t))
	}
}

// Transition returns the status that follows s on trigger t. The boolean is
// false when the trigger does not apply in s, in which case s is returned.
//
//	Offline  --start-->          Starting
//	Starting --launch-failed-->  Offline
//	Starting --ready-->          Running
//	*        --stop-->           Stopping
//	*        --stopped/exited--> Offline
func Transition(s LifecycleStatus, t Trigger) (LifecycleStatus, bool) {
	switch t {
	case TriggerStart:
		if s == StatusOffline {
			return StatusStarting, true
		}
	case TriggerLaunchFailed:
		if s == StatusStarting {
			return StatusOffline, true
		}
	case TriggerReady:
		// A second banner while already Running is harmless.
		if s == StatusStarting || s == StatusRunning {
			return StatusRunning, true
		}
	case TriggerStop:
		return StatusStopping, true
	case TriggerStopped, TriggerExited:
		return StatusOffline, true
	}
	return s, false
}

// statusCell holds the current status. Every write goes through apply so the
// transition table is the only way the status changes.
type statusCell struct {
	mu     sync.Mutex
	status LifecycleStatus
}

func (c *statusCell) get() LifecycleStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// apply runs a trigger and reports the old and new status.
func (c *statusCell) apply(t Trigger) (from, to LifecycleStatus, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	from = c.status
	to, ok = Transition(from, t)
	c.status = to
	return from, to, ok
}

// playerCounter tracks online players. It never goes below zero.
type playerCounter struct {
	mu    sync.Mutex
	count int
}

func (p *playerCounter) increment() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	return p.count
}

// decrement lowers the count unless it is already zero.
func (p *playerCounter) decrement() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.count > 0 {
		p.count--
	}
	return p.count
}

func (p *playerCounter) value() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}
