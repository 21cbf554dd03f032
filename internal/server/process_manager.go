package server

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessUsage is a point-in-time resource sample for one process.
type ProcessUsage struct {
	CPU         float64
	MemoryBytes uint64
}

// ProcessTable is the view of the operating system's process table the
// supervisor needs for orphan detection, orphan termination and stats.
type ProcessTable interface {
	// FindServerProcess returns the pid of a running server whose working
	// directory is dir, or whose command line mentions dir.
	FindServerProcess(dir string) (pid int32, found bool, err error)

	// Exists reports whether pid is still in the process table.
	Exists(pid int32) (bool, error)

	// Kill forcibly terminates pid.
	Kill(pid int32) error

	// Sample returns CPU and resident memory for pid.
	Sample(pid int32) (ProcessUsage, error)
}

// ErrProcessNotFound is returned by ProcessTable implementations when the pid is gone.
var ErrProcessNotFound = errors.New("process not found")

// SystemProcessTable implements ProcessTable on top of gopsutil.
type SystemProcessTable struct {
	runtimeName string

	mu sync.Mutex
	// CPU percentages are measured between consecutive samples of the same
	// handle, so handles are cached per pid.
	sampled map[int32]*process.Process
}

// NewSystemProcessTable creates a process table that treats any process
// whose name contains runtimeName (case-insensitive) as a server candidate.
func NewSystemProcessTable(runtimeName string) *SystemProcessTable {
	if runtimeName == "" {
		runtimeName = "java"
	}
	return &SystemProcessTable{
		runtimeName: strings.ToLower(runtimeName),
		sampled:     make(map[int32]*process.Process),
	}
}

func (t *SystemProcessTable) FindServerProcess(dir string) (int32, bool, error) {
	procs, err := process.Processes()
	if err != nil {
		return 0, false, fmt.Errorf("failed to list processes: %w", err)
	}

	target := filepath.Clean(dir)
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		if !strings.Contains(strings.ToLower(name), t.runtimeName) {
			continue
		}
		// Processes owned by other users often hide cwd and args. Missing
		// fields simply don't match.
		cwd, _ := p.Cwd()
		args, _ := p.CmdlineSlice()
		if matchesServerProcess(name, cwd, args, t.runtimeName, target) {
			return p.Pid, true, nil
		}
	}
	return 0, false, nil
}

// matchesServerProcess applies the orphan heuristic to one process.
// The substring test on arguments can match a sibling directory whose path
// starts with target.
func matchesServerProcess(name, cwd string, args []string, runtimeName, target string) bool {
	if !strings.Contains(strings.ToLower(name), strings.ToLower(runtimeName)) {
		return false
	}
	if target == "" {
		return false
	}
	if cwd != "" && filepath.Clean(cwd) == target {
		return true
	}
	for _, arg := range args {
		if strings.Contains(arg, target) {
			return true
		}
	}
	return false
}

func (t *SystemProcessTable) Exists(pid int32) (bool, error) {
	exists, err := process.PidExists(pid)
	if err != nil {
		return false, fmt.Errorf("failed to check pid %d: %w", pid, err)
	}
	if !exists {
		t.forget(pid)
	}
	return exists, nil
}

func (t *SystemProcessTable) Kill(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return ErrProcessNotFound
		}
		return fmt.Errorf("failed to open pid %d: %w", pid, err)
	}
	if err := p.Kill(); err != nil {
		return fmt.Errorf("failed to kill pid %d: %w", pid, err)
	}
	return nil
}

func (t *SystemProcessTable) Sample(pid int32) (ProcessUsage, error) {
	p, first, err := t.handle(pid)
	if err != nil {
		return ProcessUsage{}, err
	}

	var cpu float64
	if first {
		// No previous sample: fall back to the average since process start.
		cpu, err = p.CPUPercent()
		_, _ = p.Percent(0)
	} else {
		cpu, err = p.Percent(0)
	}
	if err != nil {
		t.forget(pid)
		return ProcessUsage{}, fmt.Errorf("failed to read cpu for pid %d: %w", pid, err)
	}

	mem, err := p.MemoryInfo()
	if err != nil {
		t.forget(pid)
		return ProcessUsage{}, fmt.Errorf("failed to read memory for pid %d: %w", pid, err)
	}
	return ProcessUsage{CPU: cpu, MemoryBytes: mem.RSS}, nil
}

func (t *SystemProcessTable) handle(pid int32) (*process.Process, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.sampled[pid]; ok {
		return p, false, nil
	}
	p, err := process.NewProcess(pid)
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return nil, false, ErrProcessNotFound
		}
		return nil, false, fmt.Errorf("failed to open pid %d: %w", pid, err)
	}
	t.sampled[pid] = p
	return p, true, nil
}

func (t *SystemProcessTable) forget(pid int32) {
	t.mu.Lock()
	delete(t.sampled, pid)
	t.mu.Unlock()
}
