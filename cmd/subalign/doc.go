// Package main hosts the subalign CLI entrypoint and command graph.
//
// The Cobra command tree runs the alignment server in the foreground and
// queries a running server over its HTTP API for models, tasks, and task
// status. Configuration scaffolding lives here too. Heavy lifting stays in
// the internal packages; commands only resolve configuration and render
// results.
package main
