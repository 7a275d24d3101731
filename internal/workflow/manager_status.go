package workflow

import "subalign/internal/tasks"

// StatusSummary is a point-in-time view of the pool.
type StatusSummary struct {
	Running       bool         `json:"running"`
	Workers       int          `json:"workers"`
	Busy          int          `json:"busy"`
	Queued        int          `json:"queued"`
	QueueCapacity int          `json:"queue_capacity"`
	Tasks         tasks.Counts `json:"tasks"`
}

// Status returns pool and task counters.
func (m *Manager) Status() StatusSummary {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	return StatusSummary{
		Running:       running,
		Workers:       m.workers,
		Busy:          int(m.busy.Load()),
		Queued:        len(m.queue),
		QueueCapacity: cap(m.queue),
		Tasks:         m.store.Counts(),
	}
}
