// Package services defines shared utilities consumed by the alignment worker
// and the external model integration.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, worker stage names, and request
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures carry a
//     stable classification all the way to the task record.
//
// Use these helpers when wiring new worker logic so error reporting stays
// uniform between the HTTP layer and the background pool.
package services
