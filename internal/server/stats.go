package server

import "log"

// ServerStats is a point-in-time snapshot of the managed server.
type ServerStats struct {
	CPU         float64         `json:"cpu"`
	Memory      uint64          `json:"memory"`
	Status      LifecycleStatus `json:"status"`
	PlayerCount int             `json:"player_count"`
}

// Stats samples the owned process, or an orphaned one found in the configured
// directory. With neither, it reports Offline with zero usage. The player count
// keeps its last value when no process is present.
func (s *Supervisor) Stats() ServerStats {
	players := s.players.value()

	if proc := s.owned(); proc != nil && !exited(proc) {
		usage, err := s.table.Sample(proc.pid)
		if err == nil {
			return ServerStats{
				CPU:         usage.CPU,
				Memory:      usage.MemoryBytes,
				Status:      s.status.get(),
				PlayerCount: players,
			}
		}
		log.Printf("[Supervisor] Failed to sample server process %d: %v", proc.pid, err)
	}

	if cfg := s.Config(); cfg != nil {
		if pid, found, err := s.table.FindServerProcess(cfg.Path); err == nil && found {
			if usage, err := s.table.Sample(pid); err == nil {
				status := s.status.get()
				// A server running outside our control is still running.
				if status == StatusOffline {
					status = StatusRunning
				}
				return ServerStats{
					CPU:         usage.CPU,
					Memory:      usage.MemoryBytes,
					Status:      status,
					PlayerCount: players,
				}
			}
		}
	}

	return ServerStats{Status: StatusOffline, PlayerCount: players}
}

func exited(proc *ownedProcess) bool {
	select {
	case <-proc.done:
		return true
	default:
		return false
	}
}
