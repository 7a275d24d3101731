package tasks

import (
	"fmt"
	"strings"
	"time"
)

// Status is the externally visible lifecycle of a task.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether no further updates are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// ErrorKind tags a failed task with the stage that produced the failure.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindModel      ErrorKind = "model"
	KindAlignment  ErrorKind = "alignment"
	KindOutput     ErrorKind = "output"
	KindCancelled  ErrorKind = "cancelled"
)

// Progress checkpoints reported while a task runs.
const (
	ProgressQueued    = 0
	ProgressModel     = 10
	ProgressAlignment = 30
	ProgressOutput    = 80
	ProgressDone      = 100
)

// Task is one alignment request and its current state.
type Task struct {
	ID         string    `json:"task_id"`
	Status     Status    `json:"status"`
	Progress   int       `json:"progress"`
	BatchID    string    `json:"batch_id"`
	OutputFile string    `json:"output_file,omitempty"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Processing returns a freshly accepted task.
func Processing(batchID string) Task {
	return Task{Status: StatusProcessing, Progress: ProgressQueued, BatchID: batchID}
}

// Completed returns a finished task pointing at its artifact.
func Completed(batchID, outputFile string) Task {
	return Task{
		Status:     StatusCompleted,
		Progress:   ProgressDone,
		BatchID:    batchID,
		OutputFile: outputFile,
	}
}

// Failed returns a task that ended with an error.
func Failed(batchID string, kind ErrorKind, message string) Task {
	if strings.TrimSpace(message) == "" {
		message = "alignment failed"
	}
	return Task{
		Status:    StatusError,
		Progress:  0,
		BatchID:   batchID,
		Error:     message,
		ErrorKind: kind,
	}
}

// WithProgress returns a copy of a processing task at the given percentage.
func (t Task) WithProgress(progress int) Task {
	t.Progress = progress
	return t
}

// Validate checks the field combination allowed for the task's status.
func (t Task) Validate() error {
	switch t.Status {
	case StatusProcessing:
		if t.OutputFile != "" || t.Error != "" {
			return fmt.Errorf("%w: processing task carries a result", ErrInvalidTask)
		}
		if t.Progress < 0 || t.Progress >= ProgressDone {
			return fmt.Errorf("%w: progress %d out of range", ErrInvalidTask, t.Progress)
		}
	case StatusCompleted:
		if t.OutputFile == "" || t.Error != "" {
			return fmt.Errorf("%w: completed task needs an output file and no error", ErrInvalidTask)
		}
	case StatusError:
		if t.Error == "" || t.OutputFile != "" {
			return fmt.Errorf("%w: failed task needs an error and no output file", ErrInvalidTask)
		}
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTask, t.Status)
	}
	return nil
}
