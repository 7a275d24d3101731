package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"subalign/internal/logging"
	"subalign/internal/services"
	"subalign/internal/subtitles"
)

// Model aligns a transcript against an audio file.
type Model interface {
	Size() string
	Align(ctx context.Context, audioPath, text, language string) (*subtitles.Result, error)
}

// Resident is implemented by models backed by a long-lived process. The
// provider reloads a resident model that is no longer alive and closes the
// one it evicts.
type Resident interface {
	Model
	Alive() bool
	Close() error
}

// ErrEvicted is returned by a resident model that was closed after a caller
// obtained it. Callers may Get the size again.
var ErrEvicted = errors.New("model was evicted")

// Loader materializes a model of the given size. Loads are expensive.
type Loader interface {
	Load(ctx context.Context, size string) (Model, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, size string) (Model, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, size string) (Model, error) {
	return f(ctx, size)
}

// LoadEvent describes one finished load attempt.
type LoadEvent struct {
	Size     string
	Evicted  string
	Duration time.Duration
	Err      error
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the provider logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithLoadObserver registers a callback invoked after every load attempt.
func WithLoadObserver(fn func(LoadEvent)) Option {
	return func(p *Provider) {
		p.observe = fn
	}
}

// Provider caches a single loaded model.
type Provider struct {
	loader  Loader
	logger  *slog.Logger
	observe func(LoadEvent)

	// sem serializes loads and guards current. A channel is used so waiters
	// can give up when their context ends.
	sem     chan struct{}
	current Model
	loaded  atomic.Value
	loads   atomic.Int64
}

// NewProvider constructs a provider around loader.
func NewProvider(loader Loader, opts ...Option) *Provider {
	p := &Provider{
		loader: loader,
		logger: logging.NewNop(),
		sem:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(logging.String(logging.FieldComponent, "models"))
	p.loaded.Store("")
	return p
}

// Get returns the cached model for size, loading it first when the slot is
// empty or holds a different size.
func (p *Provider) Get(ctx context.Context, size string) (Model, error) {
	size = strings.ToLower(strings.TrimSpace(size))
	if size == "" {
		return nil, services.Wrap(services.ErrValidation, "model", "get", "model size is required", nil)
	}
	if p.loader == nil {
		return nil, services.Wrap(services.ErrConfiguration, "model", "get", "no model loader configured", nil)
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.sem }()

	if p.current != nil && p.current.Size() == size {
		if alive(p.current) {
			return p.current, nil
		}
		p.logger.Warn("resident model exited; reloading",
			logging.String("model_size", size),
			logging.String(logging.FieldEventType, "model_exited"),
		)
		p.current = nil
		p.loaded.Store("")
	}

	evicted := ""
	if p.current != nil {
		evicted = p.current.Size()
	}
	p.logger.Info("loading model",
		logging.String("model_size", size),
		logging.String("evicting", evicted),
	)
	start := time.Now()
	model, err := p.loader.Load(ctx, size)
	p.loads.Add(1)
	event := LoadEvent{Size: size, Evicted: evicted, Duration: time.Since(start), Err: err}
	if err == nil && model == nil {
		err = errors.New("loader returned no model")
		event.Err = err
	}
	if p.observe != nil {
		p.observe(event)
	}
	if err != nil {
		p.logger.Warn("model load failed",
			logging.String("model_size", size),
			logging.Error(err),
			logging.String(logging.FieldEventType, "model_load_failed"),
			logging.String(logging.FieldErrorHint, "check the aligner launcher and network access for the first download"),
		)
		return nil, fmt.Errorf("load model %s: %w", size, err)
	}
	if p.current != nil {
		go p.release(p.current)
	}
	p.current = model
	p.loaded.Store(size)
	p.logger.Info("model loaded",
		logging.String("model_size", size),
		logging.Duration("duration", event.Duration),
	)
	return model, nil
}

// Close releases the resident model, if any. Later calls to Get load again.
func (p *Provider) Close() {
	p.sem <- struct{}{}
	defer func() { <-p.sem }()
	if p.current != nil {
		p.release(p.current)
		p.current = nil
		p.loaded.Store("")
	}
}

// release closes an evicted model. Closing waits for an alignment already
// running on it, so it happens off the load path.
func (p *Provider) release(model Model) {
	resident, ok := model.(Resident)
	if !ok {
		return
	}
	if err := resident.Close(); err != nil {
		p.logger.Warn("failed to close evicted model",
			logging.String("model_size", model.Size()),
			logging.Error(err),
			logging.String(logging.FieldEventType, "model_close_failed"),
		)
	}
}

func alive(model Model) bool {
	resident, ok := model.(Resident)
	return !ok || resident.Alive()
}

// Loaded reports the size currently held in the slot.
func (p *Provider) Loaded() (string, bool) {
	size, _ := p.loaded.Load().(string)
	return size, size != ""
}

// Loads returns how many load attempts the provider has made.
func (p *Provider) Loads() int64 {
	return p.loads.Load()
}
