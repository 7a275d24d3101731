// Package staging holds uploaded inputs until a worker consumes them.
//
// Files are written as <task_id>_<sanitized original name> in a single flat
// upload directory. The task id prefix keeps concurrent uploads with the same
// name apart and lets startup sweep files orphaned by a previous run.
package staging
