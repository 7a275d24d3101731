// Package daemon coordinates the long-running subalign server process.
//
// It wires configuration, the task store, the model provider, the workflow
// pool, and the HTTP server into a single lifecycle with flock-based locking
// to prevent two servers from sharing a data directory. Start sweeps upload
// leftovers from a previous run, optionally preloads the default model, and
// opens the browser once the listener is up; Stop shuts the listener down
// gracefully before failing whatever is still queued.
//
// Keep orchestration here: request handling lives in internal/api and task
// execution in internal/workflow and internal/alignment.
package daemon
