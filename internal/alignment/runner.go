package alignment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"subalign/internal/fileutil"
	"subalign/internal/logging"
	"subalign/internal/models"
	"subalign/internal/services"
	"subalign/internal/staging"
	"subalign/internal/subtitles"
	"subalign/internal/tasks"
	"subalign/internal/textutil"
)

// ErrEmptyResult is reported when the aligner finishes without producing any
// timed segment.
var ErrEmptyResult = errors.New("alignment produced no segments")

// ErrInvalidSubtitles is reported when rendered SRT fails the timing checks.
var ErrInvalidSubtitles = errors.New("rendered subtitles are invalid")

// ModelSource hands out loaded models by size.
type ModelSource interface {
	Get(ctx context.Context, size string) (models.Model, error)
}

// Runner executes alignment jobs.
type Runner struct {
	models     ModelSource
	outputRoot string
	logger     *slog.Logger
}

// NewRunner builds a runner that writes artifacts below outputRoot.
func NewRunner(source ModelSource, outputRoot string, logger *slog.Logger) *Runner {
	return &Runner{
		models:     source,
		outputRoot: outputRoot,
		logger:     logging.NewComponentLogger(logger, "worker"),
	}
}

// OutputRoot returns the directory artifacts are written under.
func (r *Runner) OutputRoot() string {
	return r.outputRoot
}

// Run processes job and reports progress through report. It never panics on
// model or I/O failures; they come back in the Outcome.
func (r *Runner) Run(ctx context.Context, job Job, report ProgressFunc) Outcome {
	start := time.Now()
	if report == nil {
		report = func(int) {}
	}
	ctx = services.WithTaskID(ctx, job.TaskID)
	defer r.cleanup(ctx, job)

	outputFile, kind, err := r.run(ctx, job, report)
	outcome := Outcome{OutputFile: outputFile, Kind: kind, Err: err, Duration: time.Since(start)}

	logger := logging.WithContext(ctx, r.logger)
	if err != nil {
		logging.WarnWithContext(logger, "alignment failed", "alignment_failed",
			logging.String("kind", string(kind)),
			logging.String("model_size", job.ModelSize),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hintFor(kind)),
			logging.String(logging.FieldImpact, "no subtitle file for this task"),
		)
		return outcome
	}
	logger.Info("alignment completed",
		logging.String("output_file", outputFile),
		logging.String("format", string(job.Output.Format)),
		logging.Duration("duration", outcome.Duration),
		logging.String(logging.FieldEventType, "alignment_completed"),
	)
	return outcome
}

func (r *Runner) run(ctx context.Context, job Job, report ProgressFunc) (string, tasks.ErrorKind, error) {
	if err := validate(job); err != nil {
		return "", tasks.KindValidation, err
	}

	report(tasks.ProgressModel)
	stageCtx := services.WithStage(ctx, "model")
	model, err := r.models.Get(stageCtx, job.ModelSize)
	if err != nil {
		return "", kindFor(ctx, err, tasks.KindModel), err
	}

	report(tasks.ProgressAlignment)
	stageCtx = services.WithStage(ctx, "align")
	logging.WithContext(stageCtx, r.logger).Debug("aligning transcript",
		logging.String("model_size", model.Size()),
		logging.String("language", job.Language),
		logging.Int("transcript_runes", len([]rune(job.Text))),
	)
	result, err := model.Align(stageCtx, job.AudioPath, job.Text, job.Language)
	if errors.Is(err, models.ErrEvicted) {
		// Another size replaced this one between Get and Align.
		if model, err = r.models.Get(services.WithStage(ctx, "model"), job.ModelSize); err != nil {
			return "", kindFor(ctx, err, tasks.KindModel), err
		}
		result, err = model.Align(stageCtx, job.AudioPath, job.Text, job.Language)
	}
	if err != nil {
		return "", kindFor(ctx, err, tasks.KindAlignment), err
	}
	if result == nil || result.Empty() {
		return "", tasks.KindAlignment, ErrEmptyResult
	}

	report(tasks.ProgressOutput)
	outputFile, err := r.write(job, result)
	if err != nil {
		return "", kindFor(ctx, err, tasks.KindOutput), err
	}
	return outputFile, "", nil
}

func validate(job Job) error {
	if job.Text == "" {
		return services.Wrap(services.ErrValidation, "validate", "transcript", "transcript is empty", nil)
	}
	if job.BatchID != "" && !textutil.IsSafePathElement(job.BatchID) {
		return services.Wrap(services.ErrValidation, "validate", "batch", fmt.Sprintf("invalid batch id %q", job.BatchID), nil)
	}
	if _, err := subtitles.ParseFormat(string(job.Output.Format)); err != nil {
		return services.Wrap(services.ErrValidation, "validate", "format", "", err)
	}
	return nil
}

// write renders the result into OUTPUT_ROOT[/batch]/<audio base>.<format> and
// returns the slash-separated path relative to the output root.
func (r *Runner) write(job Job, result *subtitles.Result) (string, error) {
	dir := r.outputRoot
	if job.BatchID != "" {
		dir = filepath.Join(r.outputRoot, job.BatchID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, "write", "mkdir", dir, err)
	}
	name := subtitles.FileName(job.AudioName, job.Output.Format)
	var buf bytes.Buffer
	if err := subtitles.Write(&buf, result, job.Output); err != nil {
		return "", err
	}
	if job.Output.Format == subtitles.FormatSRT {
		if issues := subtitles.ValidateSRTContent(buf.String()); len(issues) > 0 {
			return "", fmt.Errorf("%w: %s", ErrInvalidSubtitles, strings.Join(issues, "; "))
		}
	}
	target := filepath.Join(dir, name)
	if err := fileutil.WriteFileAtomic(target, 0o644, func(w io.Writer) error {
		_, err := w.Write(buf.Bytes())
		return err
	}); err != nil {
		return "", services.Wrap(services.ErrTransient, "write", string(job.Output.Format), name, err)
	}
	if job.BatchID != "" {
		return path.Join(job.BatchID, name), nil
	}
	return name, nil
}

func (r *Runner) cleanup(ctx context.Context, job Job) {
	if err := staging.Remove(job.StagedFiles...); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "failed to remove staged upload", "staging_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check upload_dir permissions"),
			logging.String(logging.FieldImpact, "stale upload remains until the next restart"),
		)
	}
}

// kindFor maps an error onto the task taxonomy, falling back to the stage
// that produced it.
func kindFor(ctx context.Context, err error, fallback tasks.ErrorKind) tasks.ErrorKind {
	switch {
	case errors.Is(err, context.Canceled), ctx.Err() != nil:
		return tasks.KindCancelled
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, subtitles.ErrUnknownFormat),
		errors.Is(err, subtitles.ErrUnknownMode):
		return tasks.KindValidation
	default:
		return fallback
	}
}

func hintFor(kind tasks.ErrorKind) string {
	switch kind {
	case tasks.KindModel:
		return "check the aligner launcher, stable-ts install, and network access for the first model download"
	case tasks.KindAlignment:
		return "check that the audio decodes with ffmpeg and the transcript matches the language"
	case tasks.KindOutput:
		return "check output_dir permissions and free space"
	case tasks.KindValidation:
		return "fix the request parameters and resubmit"
	case tasks.KindCancelled:
		return "resubmit after the server restarts"
	default:
		return "check logs for details"
	}
}
