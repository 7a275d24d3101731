package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/browser"

	"subalign/internal/alignment"
	"subalign/internal/config"
	"subalign/internal/deps"
	"subalign/internal/logging"
	"subalign/internal/models"
	"subalign/internal/notifications"
	"subalign/internal/observe"
	"subalign/internal/preflight"
	"subalign/internal/staging"
	"subalign/internal/tasks"
	"subalign/internal/workflow"
)

// Daemon owns every long-lived component of the server.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	version  string
	store    *tasks.Store
	provider *models.Provider
	workflow *workflow.Manager
	metrics  *observe.Provider
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	openBrowser func(url string) error
	browserDone chan struct{}

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Address      string
	LockFilePath string
	ModelLoaded  string
	Workflow     workflow.StatusSummary
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithVersion sets the version reported by /api/health.
func WithVersion(version string) Option {
	return func(d *Daemon) {
		d.version = version
	}
}

// WithBrowserOpener replaces the system browser launcher.
func WithBrowserOpener(open func(url string) error) Option {
	return func(d *Daemon) {
		d.openBrowser = open
	}
}

// WithMetrics attaches an initialised metrics pipeline.
func WithMetrics(p *observe.Provider) Option {
	return func(d *Daemon) {
		d.metrics = p
	}
}

// New constructs a daemon around loader, which produces alignment models.
func New(cfg *config.Config, logger *slog.Logger, loader models.Loader, opts ...Option) (*Daemon, error) {
	if cfg == nil || logger == nil || loader == nil {
		return nil, errors.New("daemon requires config, logger, and model loader")
	}

	d := &Daemon{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "daemon"),
		store:       tasks.NewStore(),
		lockPath:    cfg.LockPath(),
		lock:        flock.New(cfg.LockPath()),
		openBrowser: openSystemBrowser,
	}
	for _, opt := range opts {
		opt(d)
	}

	var metrics *observe.Metrics
	if d.metrics != nil {
		metrics = d.metrics.Metrics
	}
	d.provider = models.NewProvider(loader,
		models.WithLogger(logger),
		models.WithLoadObserver(func(ev models.LoadEvent) {
			metrics.ModelLoaded(context.Background(), ev.Size, ev.Duration, ev.Err)
		}),
	)
	runner := alignment.NewRunner(d.provider, cfg.Paths.OutputDir, logger)
	d.workflow = workflow.NewManager(d.store, runner, workflow.Options{
		Workers:   cfg.Workers.Count,
		QueueSize: cfg.Workers.QueueSize,
		Notifier:  notifications.NewService(cfg),
	}, logger, metrics)

	server, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = server
	return d, nil
}

// Start acquires the instance lock, then brings up the pool and the listener.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another subalign server is already using this data directory")
	}

	swept := staging.CleanStale(d.cfg.Paths.UploadDir, 0, d.logger)
	if len(swept.Removed) > 0 {
		d.logger.Info("removed uploads left by a previous run",
			logging.Int("removed", len(swept.Removed)),
			logging.String(logging.FieldEventType, "staging_swept"),
		)
	}

	for _, check := range d.Preflight(ctx) {
		if check.Passed {
			continue
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", check.Name),
			logging.String("detail", check.Detail),
			logging.String(logging.FieldErrorHint, "free disk space or fix directory permissions"),
			logging.String(logging.FieldImpact, "uploads or subtitle writes may fail"),
		)
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.workflow.Stop()
		d.abortStart()
		return err
	}

	d.running.Store(true)
	d.logger.Info("subalign server started",
		logging.String("address", d.api.address()),
		logging.String("lock", d.lockPath),
		logging.String("output_dir", d.cfg.Paths.OutputDir),
		logging.String(logging.FieldEventType, "daemon_started"),
	)

	if d.cfg.Aligner.Preload {
		go d.preload(d.ctx)
	}
	if d.cfg.Server.OpenBrowser {
		d.browserDone = make(chan struct{})
		go d.launchBrowser(d.ctx, d.browserDone)
	}
	return nil
}

func (d *Daemon) abortStart() {
	d.cancel()
	d.ctx = nil
	d.cancel = nil
	_ = d.lock.Unlock()
}

// Stop shuts down the listener and pool, unloads the model and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.browserDone != nil {
		<-d.browserDone
		d.browserDone = nil
	}
	d.workflow.Stop()
	d.provider.Close()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start fails"),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("subalign server stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and flushes metrics.
func (d *Daemon) Close() error {
	d.Stop()
	if d.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return d.metrics.Shutdown(ctx)
	}
	return nil
}

// Address returns the bound listener address, or "" before Start.
func (d *Daemon) Address() string {
	return d.api.address()
}

// URL returns the browser-facing base URL of the running server.
func (d *Daemon) URL() string {
	return browserURL(d.api.address())
}

// Store exposes the task store.
func (d *Daemon) Store() *tasks.Store {
	return d.store
}

// Provider exposes the model provider.
func (d *Daemon) Provider() *models.Provider {
	return d.provider
}

// Dependencies reports external program availability.
func (d *Daemon) Dependencies() []deps.Status {
	return deps.Snapshot(d.cfg.LauncherBinary())
}

// Preflight checks the directories the server writes to.
func (d *Daemon) Preflight(ctx context.Context) []preflight.Result {
	return preflight.RunAll(ctx, d.cfg)
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	loaded, _ := d.provider.Loaded()
	return Status{
		Running:      d.running.Load(),
		Address:      d.api.address(),
		LockFilePath: d.lockPath,
		ModelLoaded:  loaded,
		Workflow:     d.workflow.Status(),
	}
}

func (d *Daemon) preload(ctx context.Context) {
	size := d.cfg.Aligner.DefaultModel
	d.logger.Info("preloading model", logging.String("model_size", size))
	if _, err := d.provider.Get(ctx, size); err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.WarnWithContext(d.logger, "model preload failed", "model_preload_failed",
			logging.String("model_size", size),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the aligner launcher; the first request will retry the load"),
			logging.String(logging.FieldImpact, "first alignment will wait for the model"),
		)
	}
}

func (d *Daemon) launchBrowser(ctx context.Context, done chan struct{}) {
	defer close(done)
	delay := time.Duration(d.cfg.Server.BrowserDelayMS) * time.Millisecond
	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}
	url := d.URL()
	if err := d.openBrowser(url); err != nil {
		logging.WarnWithContext(d.logger, "could not open browser", "browser_open_failed",
			logging.String("url", url),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "open the URL manually"),
			logging.String(logging.FieldImpact, "none; the server is running"),
		)
		return
	}
	d.logger.Info("opened browser", logging.String("url", url))
}

func openSystemBrowser(url string) error {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	return browser.OpenURL(url)
}
