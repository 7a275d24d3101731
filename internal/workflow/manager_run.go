package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"subalign/internal/alignment"
	"subalign/internal/logging"
	"subalign/internal/services"
	"subalign/internal/staging"
	"subalign/internal/tasks"
)

// Start launches the workers. They run until Stop is called or ctx ends.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	if m.runner == nil || m.store == nil {
		return errors.New("workflow runner not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	for i := range m.workers {
		group.Go(func() error {
			return m.work(groupCtx, i)
		})
	}
	m.cancel = cancel
	m.group = group
	m.running = true

	m.logger.Info("workflow started",
		logging.Int("workers", m.workers),
		logging.Int("queue_size", cap(m.queue)),
		logging.String(logging.FieldEventType, "workflow_started"),
	)
	return nil
}

// Stop cancels the workers, waits for them, and fails queued jobs that never
// started. Tasks interrupted mid-run are failed by their worker.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	group := m.group
	m.running = false
	m.cancel = nil
	m.group = nil
	m.mu.Unlock()

	cancel()
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Error("worker exited with error", logging.Error(err))
	}

	drained := 0
	for {
		select {
		case job := <-m.queue:
			m.failShutdown(job)
			drained++
		default:
			m.logger.Info("workflow stopped",
				logging.Int("abandoned_tasks", drained),
				logging.String(logging.FieldEventType, "workflow_stopped"),
			)
			return
		}
	}
}

// Enqueue records job as a processing task and queues it. On ErrQueueFull or
// ErrNotRunning no task exists and the caller still owns the staged files.
func (m *Manager) Enqueue(ctx context.Context, job alignment.Job) (tasks.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return tasks.Task{}, ErrNotRunning
	}
	if len(m.queue) >= cap(m.queue) {
		return tasks.Task{}, ErrQueueFull
	}
	if err := m.store.Create(job.TaskID, tasks.Processing(job.BatchID)); err != nil {
		return tasks.Task{}, err
	}
	// Only Enqueue sends and it holds mu, so the capacity check above
	// guarantees this send does not block.
	m.queue <- job
	m.metrics.TaskSubmitted(ctx)

	task, _ := m.store.Get(job.TaskID)
	logging.WithContext(services.WithTaskID(ctx, job.TaskID), m.logger).Info("task queued",
		logging.String("batch_id", job.BatchID),
		logging.String("model_size", job.ModelSize),
		logging.String("format", string(job.Output.Format)),
		logging.Int("queued", len(m.queue)),
		logging.String(logging.FieldEventType, "task_queued"),
	)
	return task, nil
}

func (m *Manager) work(ctx context.Context, worker int) error {
	logger := m.logger.With(logging.Int("worker", worker))
	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-m.queue:
			if ctx.Err() != nil {
				m.failShutdown(job)
				return nil
			}
			m.process(ctx, logger, job)
		}
	}
}

func (m *Manager) process(ctx context.Context, logger *slog.Logger, job alignment.Job) {
	m.busy.Add(1)
	defer m.busy.Add(-1)
	taskCtx := services.WithTaskID(ctx, job.TaskID)
	logger = logging.WithContext(taskCtx, logger)

	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "worker panicked", "worker_panic",
				logging.Any("panic", r),
				logging.String(logging.FieldErrorHint, "report this failure with the log file"),
			)
			m.finish(taskCtx, logger, job, alignment.Outcome{
				Kind: tasks.KindAlignment,
				Err:  fmt.Errorf("internal error: %v", r),
			})
		}
	}()

	logger.Info("task started", logging.String(logging.FieldEventType, "task_started"))
	outcome := m.runner.Run(taskCtx, job, func(percent int) {
		m.updateProgress(logger, job.TaskID, percent)
	})
	m.finish(taskCtx, logger, job, outcome)
}

func (m *Manager) updateProgress(logger *slog.Logger, id string, percent int) {
	current, ok := m.store.Get(id)
	if !ok || current.Status.Terminal() {
		return
	}
	if err := m.store.Update(id, current.WithProgress(percent)); err != nil {
		logger.Warn("progress update rejected",
			logging.Int("progress", percent),
			logging.Error(err),
			logging.String(logging.FieldEventType, "progress_update_failed"),
		)
	}
}

func (m *Manager) finish(ctx context.Context, logger *slog.Logger, job alignment.Job, outcome alignment.Outcome) {
	final := outcome.Task(job.BatchID)
	if err := m.store.Update(job.TaskID, final); err != nil {
		logging.ErrorWithContext(logger, "failed to record task result", "task_update_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "task state may be stale"),
		)
		return
	}
	m.metrics.TaskFinished(context.WithoutCancel(ctx), string(final.Status), string(final.ErrorKind), outcome.Duration)

	if m.notify == nil {
		return
	}
	final.ID = job.TaskID
	if err := m.notify.NotifyTaskFinished(context.WithoutCancel(ctx), job.AudioName, final); err != nil {
		logging.WarnWithContext(logger, "task notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "no push notification for this task"),
		)
	}
}

func (m *Manager) failShutdown(job alignment.Job) {
	ctx := services.WithTaskID(context.Background(), job.TaskID)
	logger := logging.WithContext(ctx, m.logger)
	m.finish(ctx, logger, job, alignment.Outcome{
		Kind: tasks.KindCancelled,
		Err:  errors.New("server shutting down"),
	})
	if err := staging.Remove(job.StagedFiles...); err != nil {
		logging.WarnWithContext(logger, "failed to remove staged upload", "staging_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale upload remains until the next restart"),
		)
	}
}
