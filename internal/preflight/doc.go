// Package preflight provides readiness checks for the filesystem paths
// subalign writes to.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs any failure.
//   - The /api/health endpoint runs RunAll on every request and reports the
//     server as degraded when a check fails.
package preflight
