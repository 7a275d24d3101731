// Package workflow runs alignment jobs on a bounded worker pool.
//
// The Manager owns a fixed-capacity queue and a set of worker goroutines
// started under an errgroup. Enqueue records the task as processing before
// handing the job to the queue, so a client can poll its id immediately. A
// full queue is rejected up front and no task is created. Workers translate
// the alignment runner's progress callbacks and Outcome into task store
// updates; Stop fails anything still queued so no task is left processing
// forever.
package workflow
