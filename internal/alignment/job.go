package alignment

import (
	"time"

	"subalign/internal/subtitles"
	"subalign/internal/tasks"
)

// Job is everything a worker needs to process one task.
type Job struct {
	TaskID string
	// AudioPath is the staged audio file handed to the aligner.
	AudioPath string
	// AudioName is the name the client uploaded; it names the output file.
	AudioName string
	// Text is the transcript, already read and trimmed.
	Text      string
	Language  string
	ModelSize string
	BatchID   string
	Output    subtitles.Options
	// StagedFiles are removed when the run ends, whatever the result.
	StagedFiles []string
}

// Outcome is the result of a run: an output path on success, or an error
// with its kind.
type Outcome struct {
	OutputFile string
	Kind       tasks.ErrorKind
	Err        error
	Duration   time.Duration
}

// OK reports whether the run produced an artifact.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Task converts the outcome into the terminal task record.
func (o Outcome) Task(batchID string) tasks.Task {
	if o.OK() {
		return tasks.Completed(batchID, o.OutputFile)
	}
	return tasks.Failed(batchID, o.Kind, o.Err.Error())
}

// ProgressFunc receives progress checkpoints in increasing order.
type ProgressFunc func(percent int)
