package tasks

import "errors"

var (
	// ErrTaskExists is returned when an id is created twice.
	ErrTaskExists = errors.New("task already exists")
	// ErrTaskNotFound is returned for ids the store has never seen.
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidTask is returned when a record breaks the status field rules.
	ErrInvalidTask = errors.New("invalid task state")
	// ErrTaskFinished is returned when a terminal task is updated again.
	ErrTaskFinished = errors.New("task already finished")
)
