package stablets

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"subalign/internal/models"
	"subalign/internal/services"
	"subalign/internal/subtitles"
)

//go:embed helper.py
var helperScript string

// Loader starts one helper process per loaded model size.
type Loader struct {
	cfg   Config
	start ProcessStarter
}

// NewLoader creates a loader with the given configuration.
func NewLoader(cfg Config) *Loader {
	if cfg.Device == "" {
		cfg.Device = CPUDevice
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	return &Loader{cfg: cfg, start: startExecProcess}
}

// WithProcessStarter replaces process creation (for testing).
func (l *Loader) WithProcessStarter(start ProcessStarter) {
	l.start = start
}

// Load starts a helper, which loads the model once and then serves align
// requests until the returned model is closed.
func (l *Loader) Load(ctx context.Context, size string) (models.Model, error) {
	if len(l.cfg.Launcher) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "model", "load", "aligner launcher is empty", nil)
	}
	proc, err := l.start(ctx, l.cfg.Launcher[0], l.helperArgs(size)...)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "model", "load", "start stable-ts helper", err)
	}
	m := newModel(size, proc, l.cfg)
	if err := m.awaitReady(ctx); err != nil {
		m.kill()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrExternalTool, "model", "load", "stable-ts "+size, err)
	}
	return m, nil
}

// helperArgs builds the argument list after the launcher binary.
func (l *Loader) helperArgs(size string) []string {
	args := make([]string, 0, len(l.cfg.Launcher)+6)
	args = append(args, l.cfg.Launcher[1:]...)
	return append(args, "-c", helperScript, "--model", size, "--device", l.cfg.Device)
}

type request struct {
	ID       int64  `json:"id"`
	Audio    string `json:"audio"`
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	Output   string `json:"output"`
}

type reply struct {
	Event string `json:"event"`
	ID    int64  `json:"id"`
	Error string `json:"error,omitempty"`
}

// Model is a stable-ts model held by a running helper process. Requests are
// served one at a time.
type Model struct {
	size string
	cfg  Config
	proc Process

	replies chan reply
	exited  chan struct{}
	exitErr error

	stop     chan struct{}
	stopOnce sync.Once
	closed   atomic.Bool

	mu  sync.Mutex
	seq int64
}

func newModel(size string, proc Process, cfg Config) *Model {
	m := &Model{
		size:    size,
		cfg:     cfg,
		proc:    proc,
		replies: make(chan reply),
		exited:  make(chan struct{}),
		stop:    make(chan struct{}),
	}
	go m.watch()
	return m
}

// watch forwards replies until stdout closes, then reaps the process.
func (m *Model) watch() {
	scanner := bufio.NewScanner(m.proc.Stdout())
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		var r reply
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil || r.Event == "" {
			continue
		}
		select {
		case m.replies <- r:
		case <-m.stop:
		}
	}
	_, _ = io.Copy(io.Discard, m.proc.Stdout())
	m.exitErr = m.proc.Wait()
	close(m.exited)
}

func (m *Model) awaitReady(ctx context.Context) error {
	select {
	case r := <-m.replies:
		if r.Event == "ready" {
			return nil
		}
		return errors.New(r.Error)
	case <-m.exited:
		return m.exitError()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Model) exitError() error {
	if m.exitErr != nil {
		return fmt.Errorf("helper exited: %w", m.exitErr)
	}
	return errors.New("helper exited")
}

// Size returns the model size name.
func (m *Model) Size() string {
	return m.size
}

// Alive reports whether the helper can still serve requests.
func (m *Model) Alive() bool {
	if m.closed.Load() {
		return false
	}
	select {
	case <-m.exited:
		return false
	default:
		return true
	}
}

// Close asks the helper to exit after any request in flight, killing it if
// it does not stop within the configured timeout.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.stopOnce.Do(func() { close(m.stop) })
	_ = m.proc.Stdin().Close()
	select {
	case <-m.exited:
		return nil
	case <-time.After(m.cfg.StopTimeout):
		m.kill()
		<-m.exited
		return fmt.Errorf("stable-ts helper for %s did not exit within %s", m.size, m.cfg.StopTimeout)
	}
}

func (m *Model) kill() {
	m.closed.Store(true)
	m.stopOnce.Do(func() { close(m.stop) })
	_ = m.proc.Kill()
}

// Align runs forced alignment of text against the audio file.
func (m *Model) Align(ctx context.Context, audioPath, text, language string) (*subtitles.Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, services.Wrap(services.ErrValidation, "align", "prepare", "transcript is empty", nil)
	}
	if _, err := os.Stat(audioPath); err != nil {
		return nil, services.Wrap(services.ErrNotFound, "align", "prepare", "audio file missing", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.Load() {
		return nil, fmt.Errorf("stable-ts %s: %w", m.size, models.ErrEvicted)
	}

	textFile, err := os.CreateTemp(m.cfg.WorkDir, "subalign-text-*.txt")
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "align", "prepare", "create transcript file", err)
	}
	textPath := textFile.Name()
	defer os.Remove(textPath)
	_, writeErr := textFile.WriteString(text)
	closeErr := textFile.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		return nil, services.Wrap(services.ErrTransient, "align", "prepare", "write transcript file", err)
	}

	outFile, err := os.CreateTemp(m.cfg.WorkDir, "subalign-result-*.json")
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "align", "prepare", "create result file", err)
	}
	outPath := outFile.Name()
	outFile.Close()
	defer os.Remove(outPath)

	m.seq++
	req := request{ID: m.seq, Audio: audioPath, Text: textPath, Language: language, Output: outPath}
	line, err := json.Marshal(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "align", "encode", "request", err)
	}
	if _, err := m.proc.Stdin().Write(append(line, '\n')); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "align", "stable-ts", "send request", err)
	}

	for {
		select {
		case r := <-m.replies:
			if r.ID != req.ID {
				continue
			}
			if r.Event == "error" {
				return nil, services.Wrap(services.ErrExternalTool, "align", "stable-ts", "alignment failed", errors.New(r.Error))
			}
			return m.readResult(outPath, language)
		case <-m.exited:
			return nil, services.Wrap(services.ErrExternalTool, "align", "stable-ts", "alignment failed", m.exitError())
		case <-ctx.Done():
			// A request cannot be interrupted; drop the helper so the next Get reloads.
			m.kill()
			return nil, ctx.Err()
		}
	}
}

func (m *Model) readResult(path, language string) (*subtitles.Result, error) {
	result, err := subtitles.LoadResult(path)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "align", "parse", "unreadable alignment output", err)
	}
	if result.Language == "" {
		result.Language = language
	}
	return result, nil
}
