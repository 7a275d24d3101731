package tasks

import (
	"fmt"
	"sync"
	"time"
)

// Store maps task ids to their latest state. One lock guards the whole map.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]Task
	order []string
	now   func() time.Time
}

// Counts summarizes tasks per status.
type Counts struct {
	Total      int `json:"total"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Error      int `json:"error"`
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{tasks: make(map[string]Task), now: time.Now}
}

// Create records a new task under id. Ids are never reused.
func (s *Store) Create(id string, task Task) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidTask)
	}
	if err := task.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[id]; exists {
		return fmt.Errorf("%w: %s", ErrTaskExists, id)
	}
	now := s.now().UTC()
	task.ID = id
	task.CreatedAt = now
	task.UpdatedAt = now
	s.tasks[id] = task
	s.order = append(s.order, id)
	return nil
}

// Get returns a copy of the task state.
func (s *Store) Get(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	return task, ok
}

// Update replaces the task state. Progress never moves backwards while a task
// is processing and finished tasks are immutable.
func (s *Store) Update(id string, task Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if current.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTaskFinished, id, current.Status)
	}
	if task.Status == StatusProcessing && task.Progress < current.Progress {
		return fmt.Errorf("%w: progress %d below %d", ErrInvalidTask, task.Progress, current.Progress)
	}
	task.ID = id
	task.CreatedAt = current.CreatedAt
	task.UpdatedAt = s.now().UTC()
	s.tasks[id] = task
	return nil
}

// List returns every task in creation order.
func (s *Store) List() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id])
	}
	return out
}

// Counts returns per-status totals.
func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var counts Counts
	for _, task := range s.tasks {
		counts.Total++
		switch task.Status {
		case StatusProcessing:
			counts.Processing++
		case StatusCompleted:
			counts.Completed++
		case StatusError:
			counts.Error++
		}
	}
	return counts
}
