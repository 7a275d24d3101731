package alignment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"subalign/internal/logging"
	"subalign/internal/models"
	"subalign/internal/subtitles"
	"subalign/internal/tasks"
	"subalign/internal/testsupport"
)

type fakeModel struct {
	size   string
	result *subtitles.Result
	err    error
}

func (m *fakeModel) Size() string { return m.size }

func (m *fakeModel) Align(_ context.Context, _, _, _ string) (*subtitles.Result, error) {
	return m.result, m.err
}

type fakeSource struct {
	model models.Model
	err   error
}

func (s fakeSource) Get(context.Context, string) (models.Model, error) {
	return s.model, s.err
}

func sampleResult() *subtitles.Result {
	return &subtitles.Result{
		Language: "en",
		Segments: []subtitles.Segment{{
			Start: 0, End: 1.5, Text: "hello world",
			Words: []subtitles.Word{
				{Word: "hello", Start: 0, End: 0.7},
				{Word: " world", Start: 0.7, End: 1.5},
			},
		}},
	}
}

func stageInputs(t *testing.T) (audio, text string) {
	t.Helper()
	dir := t.TempDir()
	return testsupport.StageUpload(t, dir, "task", "talk.mp3"), testsupport.StageUpload(t, dir, "task", "talk.txt")
}

func newJob(audio, text string) Job {
	return Job{
		TaskID:      "task",
		AudioPath:   audio,
		AudioName:   "talk.mp3",
		Text:        "hello world",
		Language:    "en",
		ModelSize:   "base",
		Output:      subtitles.Options{Format: subtitles.FormatSRT, Mode: subtitles.ModeSegment},
		StagedFiles: []string{audio, text},
	}
}

func assertRemoved(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected %s removed, stat err=%v", p, err)
		}
	}
}

func TestRunWritesBatchOutput(t *testing.T) {
	out := t.TempDir()
	audio, text := stageInputs(t)
	runner := NewRunner(fakeSource{model: &fakeModel{size: "base", result: sampleResult()}}, out, logging.NewNop())

	job := newJob(audio, text)
	job.BatchID = "b1"
	var progress []int
	outcome := runner.Run(context.Background(), job, func(p int) { progress = append(progress, p) })

	if !outcome.OK() {
		t.Fatalf("run failed: %v", outcome.Err)
	}
	if outcome.OutputFile != "b1/talk.srt" {
		t.Fatalf("output file = %q", outcome.OutputFile)
	}
	want := []int{tasks.ProgressModel, tasks.ProgressAlignment, tasks.ProgressOutput}
	if !slices.Equal(progress, want) {
		t.Fatalf("progress = %v, want %v", progress, want)
	}
	data, err := os.ReadFile(filepath.Join(out, "b1", "talk.srt"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "00:00:00,000 --> 00:00:01,500") {
		t.Fatalf("unexpected srt:\n%s", data)
	}
	assertRemoved(t, audio, text)

	task := outcome.Task(job.BatchID)
	if task.Status != tasks.StatusCompleted || task.Progress != tasks.ProgressDone || task.OutputFile != "b1/talk.srt" {
		t.Fatalf("unexpected task %+v", task)
	}
}

func TestRunWithoutBatchWritesAtRoot(t *testing.T) {
	out := t.TempDir()
	audio, text := stageInputs(t)
	runner := NewRunner(fakeSource{model: &fakeModel{size: "base", result: sampleResult()}}, out, logging.NewNop())

	job := newJob(audio, text)
	job.Output = subtitles.Options{Format: subtitles.FormatTSV}
	outcome := runner.Run(context.Background(), job, nil)
	if !outcome.OK() || outcome.OutputFile != "talk.tsv" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if _, err := os.Stat(filepath.Join(out, "talk.tsv")); err != nil {
		t.Fatalf("expected artifact: %v", err)
	}
}

func TestRunModelFailureCleansUp(t *testing.T) {
	audio, text := stageInputs(t)
	runner := NewRunner(fakeSource{err: errors.New("no such model")}, t.TempDir(), logging.NewNop())

	var progress []int
	outcome := runner.Run(context.Background(), newJob(audio, text), func(p int) { progress = append(progress, p) })
	if outcome.OK() || outcome.Kind != tasks.KindModel {
		t.Fatalf("expected model failure, got %+v", outcome)
	}
	if !slices.Equal(progress, []int{tasks.ProgressModel}) {
		t.Fatalf("progress = %v", progress)
	}
	assertRemoved(t, audio, text)

	task := outcome.Task("")
	if task.Status != tasks.StatusError || !strings.Contains(task.Error, "no such model") {
		t.Fatalf("unexpected task %+v", task)
	}
}

func TestRunAlignmentFailure(t *testing.T) {
	audio, text := stageInputs(t)
	model := &fakeModel{size: "base", err: errors.New("decode failed")}
	runner := NewRunner(fakeSource{model: model}, t.TempDir(), logging.NewNop())

	outcome := runner.Run(context.Background(), newJob(audio, text), nil)
	if outcome.Kind != tasks.KindAlignment {
		t.Fatalf("kind = %q, want alignment", outcome.Kind)
	}
	assertRemoved(t, audio, text)
}

// sequenceSource hands out models in order, repeating the last.
type sequenceSource struct {
	models []models.Model
	gets   int
}

func (s *sequenceSource) Get(context.Context, string) (models.Model, error) {
	m := s.models[min(s.gets, len(s.models)-1)]
	s.gets++
	return m, nil
}

func TestRunRetriesEvictedModelOnce(t *testing.T) {
	audio, text := stageInputs(t)
	evicted := &fakeModel{size: "base", err: fmt.Errorf("stable-ts base: %w", models.ErrEvicted)}
	source := &sequenceSource{models: []models.Model{evicted, &fakeModel{size: "base", result: sampleResult()}}}
	runner := NewRunner(source, t.TempDir(), logging.NewNop())

	outcome := runner.Run(context.Background(), newJob(audio, text), nil)
	if !outcome.OK() {
		t.Fatalf("expected success after reload, got %+v", outcome)
	}
	if source.gets != 2 {
		t.Fatalf("expected 2 model lookups, got %d", source.gets)
	}
}

func TestRunEmptyResultFails(t *testing.T) {
	audio, text := stageInputs(t)
	model := &fakeModel{size: "base", result: &subtitles.Result{Language: "en"}}
	out := t.TempDir()
	runner := NewRunner(fakeSource{model: model}, out, logging.NewNop())

	outcome := runner.Run(context.Background(), newJob(audio, text), nil)
	if !errors.Is(outcome.Err, ErrEmptyResult) || outcome.Kind != tasks.KindAlignment {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	entries, _ := os.ReadDir(out)
	if len(entries) != 0 {
		t.Fatalf("expected no artifacts, got %d", len(entries))
	}
}

func TestRunRejectsInvalidSRTTimings(t *testing.T) {
	audio, text := stageInputs(t)
	result := &subtitles.Result{Segments: []subtitles.Segment{
		{Start: 2, End: 3, Text: "second"},
		{Start: 1, End: 0.5, Text: "backwards"},
	}}
	out := t.TempDir()
	runner := NewRunner(fakeSource{model: &fakeModel{size: "base", result: result}}, out, logging.NewNop())

	outcome := runner.Run(context.Background(), newJob(audio, text), nil)
	if !errors.Is(outcome.Err, ErrInvalidSubtitles) || outcome.Kind != tasks.KindOutput {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	for _, issue := range []string{"negative_duration", "out_of_order"} {
		if !strings.Contains(outcome.Err.Error(), issue) {
			t.Fatalf("expected %s in %v", issue, outcome.Err)
		}
	}
	entries, _ := os.ReadDir(out)
	if len(entries) != 0 {
		t.Fatalf("expected no artifacts, got %d", len(entries))
	}
	assertRemoved(t, audio, text)
}

func TestRunRejectsUnknownFormat(t *testing.T) {
	audio, text := stageInputs(t)
	runner := NewRunner(fakeSource{model: &fakeModel{size: "base", result: sampleResult()}}, t.TempDir(), logging.NewNop())

	job := newJob(audio, text)
	job.Output.Format = "vtt"
	var progress []int
	outcome := runner.Run(context.Background(), job, func(p int) { progress = append(progress, p) })
	if outcome.Kind != tasks.KindValidation {
		t.Fatalf("kind = %q, want validation", outcome.Kind)
	}
	if len(progress) != 0 {
		t.Fatalf("expected no progress, got %v", progress)
	}
	assertRemoved(t, audio, text)
}

func TestRunRejectsTraversalBatch(t *testing.T) {
	audio, text := stageInputs(t)
	runner := NewRunner(fakeSource{model: &fakeModel{size: "base", result: sampleResult()}}, t.TempDir(), logging.NewNop())

	job := newJob(audio, text)
	job.BatchID = "../escape"
	outcome := runner.Run(context.Background(), job, nil)
	if outcome.Kind != tasks.KindValidation {
		t.Fatalf("kind = %q, want validation", outcome.Kind)
	}
}

func TestRunCancelled(t *testing.T) {
	audio, text := stageInputs(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := NewRunner(fakeSource{err: context.Canceled}, t.TempDir(), logging.NewNop())

	outcome := runner.Run(ctx, newJob(audio, text), nil)
	if outcome.Kind != tasks.KindCancelled {
		t.Fatalf("kind = %q, want cancelled", outcome.Kind)
	}
	assertRemoved(t, audio, text)
}
