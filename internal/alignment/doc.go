// Package alignment runs one alignment task from staged inputs to a written
// subtitle file.
//
// Runner.Run acquires the model, aligns the transcript, renders the requested
// format into the output tree, and reports coarse progress (10, 30, 80) along
// the way. It never touches the task store: the caller receives an Outcome
// and decides how to record it. Staged inputs are removed whether the run
// succeeds or fails.
package alignment
