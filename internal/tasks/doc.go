// Package tasks holds the in-memory record of every alignment request the
// process has accepted.
//
// The Store is the single source of truth for task state. Nothing is
// persisted: records live for the life of the process and are never removed.
// Workers own the writes for their task and replace the whole record on each
// update; the HTTP layer only reads.
package tasks
