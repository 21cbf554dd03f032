package server

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	readyScript = `echo 'Starting minecraft server'
echo '[12:00:00] [Server thread/INFO]: Done (1.2s)! For help, type "help"'
while read line; do echo "$line"; done`
	silentScript = `while read line; do :; done`
	crashScript  = `echo 'Done (0.1s)!'; echo 'fatal error' >&2; exit 1`
)

// fakeTable models the process table: orphans by directory, liveness by pid.
type fakeTable struct {
	mu           sync.Mutex
	orphans      map[string]int32
	alive        map[int32]bool
	killed       []int32
	survivesKill bool
	usage        ProcessUsage
}

func newFakeTable() *fakeTable {
	return &fakeTable{
		orphans: make(map[string]int32),
		alive:   make(map[int32]bool),
		usage:   ProcessUsage{CPU: 12.5, MemoryBytes: 512 << 20},
	}
}

func (f *fakeTable) addOrphan(dir string, pid int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orphans[dir] = pid
	f.alive[pid] = true
}

func (f *fakeTable) FindServerProcess(dir string) (int32, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pid, ok := f.orphans[dir]
	if !ok || !f.alive[pid] {
		return 0, false, nil
	}
	return pid, true, nil
}

func (f *fakeTable) Exists(pid int32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid], nil
}

func (f *fakeTable) Kill(pid int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, pid)
	if !f.survivesKill {
		f.alive[pid] = false
	}
	return nil
}

func (f *fakeTable) Sample(pid int32) (ProcessUsage, error) {
	return f.usage, nil
}

// eventRecorder is an EventSink that keeps everything it receives.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) HandleEvent(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *eventRecorder) statuses() []LifecycleStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []LifecycleStatus
	for _, e := range r.events {
		if e.Type == EventStatusUpdate {
			out = append(out, e.Status)
		}
	}
	return out
}

func (r *eventRecorder) lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Type == EventLogLine {
			out = append(out, e.Line)
		}
	}
	return out
}

func (r *eventRecorder) lastPlayers() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == EventPlayerUpdate {
			return r.events[i].Players, true
		}
	}
	return 0, false
}

func (r *eventRecorder) playerUpdates() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, e := range r.events {
		if e.Type == EventPlayerUpdate {
			out = append(out, e.Players)
		}
	}
	return out
}

type harness struct {
	sup    *Supervisor
	table  *fakeTable
	events *eventRecorder
	dir    string
	spawns *atomic.Int32
}

func newHarness(t *testing.T, script string) *harness {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	h := &harness{
		table:  newFakeTable(),
		events: &eventRecorder{},
		dir:    t.TempDir(),
		spawns: &atomic.Int32{},
	}
	h.sup = NewSupervisor(Options{
		Table: h.table,
		NewCommand: func(cfg ServerConfig) *exec.Cmd {
			h.spawns.Add(1)
			cmd := exec.Command("sh", "-c", script)
			cmd.Dir = cfg.Path
			return cmd
		},
		StopPollInterval: time.Millisecond,
		StopPollAttempts: 3,
	})
	h.sup.Subscribe(h.events)
	t.Cleanup(h.sup.Shutdown)
	return h
}

func (h *harness) configure(t *testing.T) {
	t.Helper()
	require.NoError(t, h.sup.SetConfig(ServerConfig{
		Path:    h.dir,
		JarName: "server.jar",
		MinRAM:  "1G",
		MaxRAM:  "2G",
	}))
}

func waitForStatus(t *testing.T, sup *Supervisor, want LifecycleStatus) {
	t.Helper()
	require.Eventually(t, func() bool { return sup.Status() == want }, 5*time.Second, 10*time.Millisecond,
		"status never became %s", want)
}

func TestSupervisorEndToEnd(t *testing.T) {
	h := newHarness(t, readyScript)
	h.configure(t)

	require.NoError(t, h.sup.Start())

	eula, err := os.ReadFile(filepath.Join(h.dir, "eula.txt"))
	require.NoError(t, err)
	assert.Equal(t, "eula=true\n", string(eula))

	waitForStatus(t, h.sup, StatusRunning)
	assert.True(t, h.sup.OwnsProcess())

	stats := h.sup.Stats()
	assert.Equal(t, StatusRunning, stats.Status)
	assert.Equal(t, 0, stats.PlayerCount)
	assert.Equal(t, 12.5, stats.CPU)

	require.NoError(t, h.sup.SendCommand("  Steve joined the game  "))
	require.Eventually(t, func() bool { return h.sup.PlayerCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		n, ok := h.events.lastPlayers()
		return ok && n == 1
	}, 5*time.Second, 10*time.Millisecond)

	stopped, err := h.sup.Stop()
	require.NoError(t, err)
	assert.True(t, stopped)
	assert.Equal(t, StatusOffline, h.sup.Status())
	assert.False(t, h.sup.OwnsProcess())

	require.Eventually(t, func() bool {
		statuses := h.events.statuses()
		return len(statuses) > 0 && statuses[len(statuses)-1] == StatusOffline
	}, 5*time.Second, 10*time.Millisecond)

	statuses := h.events.statuses()
	require.GreaterOrEqual(t, len(statuses), 4)
	assert.Equal(t, []LifecycleStatus{StatusStarting, StatusRunning, StatusStopping}, statuses[:3])
	assert.Contains(t, h.events.lines(), "Steve joined the game")

	// Player count is kept after the process is gone.
	assert.Equal(t, 1, h.sup.Stats().PlayerCount)
}

func TestSupervisorLeaveAtZeroStillReportsCount(t *testing.T) {
	h := newHarness(t, readyScript)
	h.configure(t)

	require.NoError(t, h.sup.Start())
	waitForStatus(t, h.sup, StatusRunning)

	require.NoError(t, h.sup.SendCommand("Alex left the game"))
	require.Eventually(t, func() bool { return len(h.events.playerUpdates()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []int{0}, h.events.playerUpdates())
	assert.Equal(t, 0, h.sup.PlayerCount())
}

func TestSupervisorStopAndStartDoNotInterleave(t *testing.T) {
	h := newHarness(t, silentScript)
	h.configure(t)

	for i := 0; i < 20; i++ {
		require.NoError(t, h.sup.Start())

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = h.sup.Stop()
		}()
		go func() {
			defer wg.Done()
			_ = h.sup.Start()
		}()
		wg.Wait()

		// Either the restart won and is still starting, or the stop won and
		// nothing is running.
		if h.sup.OwnsProcess() {
			require.Equal(t, StatusStarting, h.sup.Status(), "iteration %d", i)
		} else {
			require.Equal(t, StatusOffline, h.sup.Status(), "iteration %d", i)
		}

		_, err := h.sup.Stop()
		require.NoError(t, err)
		require.Equal(t, StatusOffline, h.sup.Status())
	}
}

func TestSupervisorStartTwice(t *testing.T) {
	h := newHarness(t, silentScript)
	h.configure(t)

	require.NoError(t, h.sup.Start())
	err := h.sup.Start()
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, int32(1), h.spawns.Load())
	assert.Equal(t, StatusStarting, h.sup.Status())

	stopped, err := h.sup.Stop()
	require.NoError(t, err)
	assert.True(t, stopped)
}

func TestSupervisorConcurrentStartsSpawnOnce(t *testing.T) {
	h := newHarness(t, silentScript)
	h.configure(t)

	var wg sync.WaitGroup
	var successes atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if h.sup.Start() == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(1), h.spawns.Load())
}

func TestSupervisorStartRejectsExistingProcess(t *testing.T) {
	h := newHarness(t, silentScript)
	h.configure(t)
	h.table.addOrphan(h.dir, 4242)

	err := h.sup.Start()

	var already *ProcessAlreadyRunningError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, int32(4242), already.PID)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, StatusOffline, h.sup.Status())
	assert.Equal(t, int32(0), h.spawns.Load())
}

func TestSupervisorRequiresConfig(t *testing.T) {
	h := newHarness(t, silentScript)

	err := h.sup.Start()
	assert.ErrorIs(t, err, ErrConfigurationMissing)
	assert.Equal(t, KindConfiguration, KindOf(err))

	stopped, err := h.sup.Stop()
	assert.ErrorIs(t, err, ErrConfigurationMissing)
	assert.False(t, stopped)
	assert.Equal(t, StatusOffline, h.sup.Status())
}

func TestSupervisorLaunchFailure(t *testing.T) {
	table := newFakeTable()
	events := &eventRecorder{}
	sup := NewSupervisor(Options{
		Table:      table,
		NewCommand: JavaCommand(filepath.Join(t.TempDir(), "no-such-java")),
	})
	sup.Subscribe(events)
	t.Cleanup(sup.Shutdown)

	require.NoError(t, sup.SetConfig(ServerConfig{Path: t.TempDir(), JarName: "server.jar"}))

	err := sup.Start()
	var launch *LaunchError
	require.ErrorAs(t, err, &launch)
	assert.Equal(t, KindLaunch, KindOf(err))
	assert.Equal(t, StatusOffline, sup.Status())
	assert.False(t, sup.OwnsProcess())

	require.Eventually(t, func() bool { return len(events.statuses()) == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []LifecycleStatus{StatusStarting, StatusOffline}, events.statuses())
}

func TestSupervisorLaunchFailsWhenDirectoryMissing(t *testing.T) {
	h := newHarness(t, silentScript)
	require.NoError(t, h.sup.SetConfig(ServerConfig{
		Path:    filepath.Join(h.dir, "does", "not", "exist"),
		JarName: "server.jar",
	}))

	err := h.sup.Start()
	var launch *LaunchError
	require.ErrorAs(t, err, &launch)
	assert.Equal(t, StatusOffline, h.sup.Status())
	assert.Equal(t, int32(0), h.spawns.Load())
}

func TestSupervisorDetectsCrash(t *testing.T) {
	h := newHarness(t, crashScript)
	h.configure(t)

	require.NoError(t, h.sup.Start())

	waitForStatus(t, h.sup, StatusOffline)
	require.Eventually(t, func() bool { return !h.sup.OwnsProcess() }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		for _, line := range h.events.lines() {
			if line == "fatal error" {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	// A crashed server can be started again.
	require.NoError(t, h.sup.Start())
	waitForStatus(t, h.sup, StatusOffline)
	assert.Equal(t, int32(2), h.spawns.Load())
}

func TestSupervisorStopWithNothingRunning(t *testing.T) {
	h := newHarness(t, silentScript)
	h.configure(t)

	stopped, err := h.sup.Stop()
	require.NoError(t, err)
	assert.False(t, stopped)
	assert.Equal(t, StatusOffline, h.sup.Status())
}

func TestSupervisorStopsOrphan(t *testing.T) {
	h := newHarness(t, silentScript)
	h.configure(t)
	h.table.addOrphan(h.dir, 4242)

	stopped, err := h.sup.Stop()
	require.NoError(t, err)
	assert.True(t, stopped)
	assert.Equal(t, []int32{4242}, h.table.killed)
	assert.Equal(t, StatusOffline, h.sup.Status())
}

func TestSupervisorStopsStubbornOrphan(t *testing.T) {
	h := newHarness(t, silentScript)
	h.configure(t)
	h.table.addOrphan(h.dir, 4242)
	h.table.survivesKill = true

	stopped, err := h.sup.Stop()
	require.NoError(t, err)
	assert.True(t, stopped)
	assert.Equal(t, StatusOffline, h.sup.Status())
}

func TestSupervisorOrphanStats(t *testing.T) {
	h := newHarness(t, silentScript)
	h.configure(t)
	h.table.addOrphan(h.dir, 4242)

	stats := h.sup.Stats()
	assert.Equal(t, StatusRunning, stats.Status)
	assert.Greater(t, stats.CPU, 0.0)
	assert.Greater(t, stats.Memory, uint64(0))
	// The stored status is not changed by a query.
	assert.Equal(t, StatusOffline, h.sup.Status())
}

func TestSupervisorOfflineStats(t *testing.T) {
	h := newHarness(t, silentScript)

	stats := h.sup.Stats()
	assert.Equal(t, ServerStats{Status: StatusOffline}, stats)
}

func TestSupervisorSendCommandWithoutProcess(t *testing.T) {
	h := newHarness(t, silentScript)
	h.configure(t)
	h.table.addOrphan(h.dir, 4242)

	err := h.sup.SendCommand("say hello")
	assert.ErrorIs(t, err, ErrNoOwnedProcess)
	assert.Equal(t, KindNotSupported, KindOf(err))
}

func TestSupervisorRejectsInvalidConfig(t *testing.T) {
	h := newHarness(t, silentScript)

	err := h.sup.SetConfig(ServerConfig{Path: h.dir, JarName: "server.jar", MaxRAM: "lots"})
	var invalid *InvalidConfigError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "max_ram", invalid.Field)
	assert.Equal(t, KindConfiguration, KindOf(err))
	assert.Nil(t, h.sup.Config())

	require.NoError(t, h.sup.SetConfig(ServerConfig{Path: h.dir + "/", JarName: "server.jar"}))
	cfg := h.sup.Config()
	require.NotNil(t, cfg)
	assert.Equal(t, h.dir, cfg.Path)
	assert.Equal(t, DefaultMinRAM, cfg.MinRAM)
	assert.Equal(t, []string{"-Xms1G", "-Xmx2G", "-jar", "server.jar", "nogui"}, cfg.JavaArgs())
}

func TestShutdownKillsOwnedProcess(t *testing.T) {
	h := newHarness(t, silentScript)
	h.configure(t)
	require.NoError(t, h.sup.Start())

	h.sup.Shutdown()

	assert.False(t, h.sup.OwnsProcess())
	assert.Equal(t, StatusOffline, h.sup.Status())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, KindUnknown, KindOf(errors.New("other")))
	assert.Equal(t, KindIO, KindOf(&StreamError{Op: "write", Err: os.ErrClosed}))
	assert.Equal(t, "conflict", KindConflict.String())
}
