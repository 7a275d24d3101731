// Package textutil provides filename helpers for user supplied names.
//
// Upload names and batch labels come straight from the browser; these helpers
// turn them into single, safe path elements before anything touches disk.
package textutil
