package stablets_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"subalign/internal/models"
	"subalign/internal/services"
	"subalign/internal/services/stablets"
)

const alignPayload = `{"segments":[{"start":0.0,"end":1.2,"text":" Hello there","words":[{"word":" Hello","start":0.0,"end":0.5},{"word":" there","start":0.5,"end":1.2}]}]}`

// behavior scripts a fake helper. align answers one request and returns an
// error message, or "" after writing the output file.
type behavior struct {
	loadErr string
	align   func(req map[string]any) string
	block   bool
}

// fakeHelper speaks the helper's line protocol over in-memory pipes.
type fakeHelper struct {
	args []string

	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter

	done     chan struct{}
	killed   chan struct{}
	killOnce sync.Once
	exitErr  error

	mu       sync.Mutex
	requests []map[string]any
}

func newFakeHelper(args []string, b behavior) *fakeHelper {
	h := &fakeHelper{args: args, done: make(chan struct{}), killed: make(chan struct{})}
	h.stdinR, h.stdinW = io.Pipe()
	h.stdoutR, h.stdoutW = io.Pipe()
	go h.serve(b)
	return h
}

func (h *fakeHelper) serve(b behavior) {
	defer close(h.done)
	defer h.stdoutW.Close()
	enc := json.NewEncoder(h.stdoutW)
	if b.loadErr != "" {
		_ = enc.Encode(map[string]any{"event": "error", "error": b.loadErr})
		h.exitErr = errors.New("exit status 1")
		return
	}
	_ = enc.Encode(map[string]any{"event": "ready"})

	scanner := bufio.NewScanner(h.stdinR)
	for scanner.Scan() {
		var req map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		h.mu.Lock()
		h.requests = append(h.requests, req)
		h.mu.Unlock()
		if b.block {
			<-h.killed
			return
		}
		msg := ""
		if b.align != nil {
			msg = b.align(req)
		}
		if msg != "" {
			_ = enc.Encode(map[string]any{"event": "error", "id": req["id"], "error": msg})
			continue
		}
		_ = enc.Encode(map[string]any{"event": "done", "id": req["id"]})
	}
}

func (h *fakeHelper) Stdin() io.WriteCloser { return h.stdinW }

func (h *fakeHelper) Stdout() io.Reader { return h.stdoutR }

func (h *fakeHelper) Wait() error {
	<-h.done
	return h.exitErr
}

func (h *fakeHelper) Kill() error {
	h.killOnce.Do(func() {
		close(h.killed)
		_ = h.stdinR.CloseWithError(errors.New("killed"))
	})
	return nil
}

func (h *fakeHelper) wasKilled() bool {
	select {
	case <-h.killed:
		return true
	default:
		return false
	}
}

func (h *fakeHelper) exited(t *testing.T) {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("helper never exited")
	}
}

type starter struct {
	behavior behavior

	mu      sync.Mutex
	helpers []*fakeHelper
}

func (s *starter) start(_ context.Context, name string, args ...string) (stablets.Process, error) {
	h := newFakeHelper(append([]string{name}, args...), s.behavior)
	s.mu.Lock()
	s.helpers = append(s.helpers, h)
	s.mu.Unlock()
	return h, nil
}

// modelLoads counts started helpers whose script loads a model.
func (s *starter) modelLoads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.helpers {
		for _, arg := range h.args {
			if strings.Contains(arg, "stable_whisper.load_model(") {
				n++
				break
			}
		}
	}
	return n
}

func (s *starter) helper(i int) *fakeHelper {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.helpers[i]
}

func writeOutput(req map[string]any) string {
	if err := os.WriteFile(req["output"].(string), []byte(alignPayload), 0o644); err != nil {
		return err.Error()
	}
	return ""
}

func newLoader(t *testing.T, b behavior) (*stablets.Loader, *starter, string) {
	t.Helper()
	dir := t.TempDir()
	s := &starter{behavior: b}
	loader := stablets.NewLoader(stablets.Config{
		Launcher:    []string{"uv", "run", "python"},
		Device:      stablets.CUDADevice,
		WorkDir:     dir,
		StopTimeout: time.Second,
	})
	loader.WithProcessStarter(s.start)
	return loader, s, dir
}

func writeAudio(t *testing.T, dir string) string {
	t.Helper()
	audio := filepath.Join(dir, "talk.wav")
	if err := os.WriteFile(audio, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return audio
}

func TestLoadStartsHelperWithLauncherArgs(t *testing.T) {
	loader, s, _ := newLoader(t, behavior{})
	model, err := loader.Load(context.Background(), "small")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer model.(*stablets.Model).Close()

	if model.Size() != "small" {
		t.Fatalf("unexpected size %q", model.Size())
	}
	args := s.helper(0).args
	if args[0] != "uv" || args[1] != "run" || args[2] != "python" || args[3] != "-c" {
		t.Fatalf("launcher args not forwarded: %v", args)
	}
	tail := strings.Join(args[5:], " ")
	if tail != "--model small --device cuda" {
		t.Fatalf("unexpected helper args: %q", tail)
	}
}

func TestAlignReusesOneHelperProcess(t *testing.T) {
	var texts []string
	loader, s, dir := newLoader(t, behavior{align: func(req map[string]any) string {
		data, err := os.ReadFile(req["text"].(string))
		if err != nil {
			return err.Error()
		}
		texts = append(texts, string(data))
		if req["language"] != "en" {
			return "unexpected language"
		}
		return writeOutput(req)
	}})
	audio := writeAudio(t, dir)

	model, err := loader.Load(context.Background(), "base")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer model.(*stablets.Model).Close()

	for i := 0; i < 3; i++ {
		result, err := model.Align(context.Background(), audio, "Hello there", "en")
		if err != nil {
			t.Fatalf("Align %d failed: %v", i, err)
		}
		if result.Text() != "Hello there" || len(result.Segments[0].Words) != 2 || result.Language != "en" {
			t.Fatalf("unexpected result: %#v", result)
		}
	}
	if got := s.modelLoads(); got != 1 {
		t.Fatalf("expected one model load for three alignments, got %d", got)
	}
	if len(texts) != 3 || texts[2] != "Hello there" {
		t.Fatalf("helper saw transcripts %q", texts)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, "subalign-*"))
	if len(leftovers) != 0 {
		t.Fatalf("expected temp files to be removed, found %v", leftovers)
	}
}

func TestProviderLoadsHelperOnceAcrossTasks(t *testing.T) {
	loader, s, dir := newLoader(t, behavior{align: writeOutput})
	audio := writeAudio(t, dir)
	provider := models.NewProvider(loader)
	defer provider.Close()

	for i := 0; i < 3; i++ {
		model, err := provider.Get(context.Background(), "base")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if _, err := model.Align(context.Background(), audio, "Hello there", "en"); err != nil {
			t.Fatalf("Align failed: %v", err)
		}
	}
	if provider.Loads() != 1 || s.modelLoads() != 1 {
		t.Fatalf("provider loads=%d, helper model loads=%d", provider.Loads(), s.modelLoads())
	}
}

func TestProviderEvictionStopsPreviousHelper(t *testing.T) {
	loader, s, _ := newLoader(t, behavior{align: writeOutput})
	provider := models.NewProvider(loader)
	defer provider.Close()

	if _, err := provider.Get(context.Background(), "base"); err != nil {
		t.Fatalf("Get(base) failed: %v", err)
	}
	if _, err := provider.Get(context.Background(), "small"); err != nil {
		t.Fatalf("Get(small) failed: %v", err)
	}
	base := s.helper(0)
	base.exited(t)
	if base.wasKilled() {
		t.Fatal("evicted helper should exit on stdin close, not be killed")
	}
}

func TestLoadReportsHelperLoadError(t *testing.T) {
	loader, _, _ := newLoader(t, behavior{loadErr: "ModuleNotFoundError: No module named 'stable_whisper'"})
	_, err := loader.Load(context.Background(), "base")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "stable_whisper") {
		t.Fatalf("expected helper message in %v", err)
	}
}

func TestLoadRequiresLauncher(t *testing.T) {
	_, err := stablets.NewLoader(stablets.Config{}).Load(context.Background(), "base")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestAlignRejectsMissingAudio(t *testing.T) {
	loader, _, dir := newLoader(t, behavior{align: writeOutput})
	model, err := loader.Load(context.Background(), "tiny")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer model.(*stablets.Model).Close()

	_, err = model.Align(context.Background(), filepath.Join(dir, "missing.wav"), "text", "")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestAlignReportsHelperFailureAndStaysLoaded(t *testing.T) {
	loader, _, dir := newLoader(t, behavior{align: func(map[string]any) string {
		return "RuntimeError: cuda out of memory"
	}})
	audio := writeAudio(t, dir)
	model, err := loader.Load(context.Background(), "base")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	resident := model.(*stablets.Model)
	defer resident.Close()

	_, err = model.Align(context.Background(), audio, "text", "zh")
	if !errors.Is(err, services.ErrExternalTool) || !strings.Contains(err.Error(), "cuda out of memory") {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !resident.Alive() {
		t.Fatal("a failed request should not stop the helper")
	}
}

func TestClosedModelReportsEviction(t *testing.T) {
	loader, s, dir := newLoader(t, behavior{align: writeOutput})
	audio := writeAudio(t, dir)
	model, err := loader.Load(context.Background(), "base")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	resident := model.(*stablets.Model)
	if err := resident.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	s.helper(0).exited(t)
	if resident.Alive() {
		t.Fatal("closed model should not be alive")
	}
	if _, err := model.Align(context.Background(), audio, "text", "en"); !errors.Is(err, models.ErrEvicted) {
		t.Fatalf("expected eviction error, got %v", err)
	}
}

func TestCancelledAlignKillsHelper(t *testing.T) {
	loader, s, dir := newLoader(t, behavior{block: true})
	audio := writeAudio(t, dir)
	model, err := loader.Load(context.Background(), "base")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	resident := model.(*stablets.Model)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := model.Align(ctx, audio, "text", "en"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	helper := s.helper(0)
	helper.exited(t)
	if !helper.wasKilled() || resident.Alive() {
		t.Fatal("cancelled request should kill the helper")
	}
}
