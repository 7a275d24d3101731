package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"subalign/internal/alignment"
	"subalign/internal/logging"
	"subalign/internal/observe"
	"subalign/internal/tasks"
)

var (
	// ErrQueueFull is returned when every queue slot is taken.
	ErrQueueFull = errors.New("task queue is full")
	// ErrNotRunning is returned when jobs arrive before Start or after Stop.
	ErrNotRunning = errors.New("workflow manager is not running")
)

// Runner processes one job.
type Runner interface {
	Run(ctx context.Context, job alignment.Job, report alignment.ProgressFunc) alignment.Outcome
}

// Notifier receives every finished task.
type Notifier interface {
	NotifyTaskFinished(ctx context.Context, audioName string, task tasks.Task) error
}

// Options sizes the pool.
type Options struct {
	Workers   int
	QueueSize int
	// Notifier is optional.
	Notifier Notifier
}

// Manager coordinates the task store, the job queue, and the workers.
type Manager struct {
	store   *tasks.Store
	runner  Runner
	logger  *slog.Logger
	metrics *observe.Metrics
	notify  Notifier
	workers int

	queue chan alignment.Job
	busy  atomic.Int32

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// NewManager constructs a stopped manager. Non-positive sizes fall back to
// one worker and a queue of one.
func NewManager(store *tasks.Store, runner Runner, opts Options, logger *slog.Logger, metrics *observe.Metrics) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	return &Manager{
		store:   store,
		runner:  runner,
		logger:  logging.NewComponentLogger(logger, "workflow"),
		metrics: metrics,
		notify:  opts.Notifier,
		workers: opts.Workers,
		queue:   make(chan alignment.Job, opts.QueueSize),
	}
}

// Store returns the task store the manager writes to.
func (m *Manager) Store() *tasks.Store {
	return m.store
}
