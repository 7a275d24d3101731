// Package stablets drives stable-ts through a small embedded Python helper.
//
// The helper runs in two modes. "load" imports stable_whisper and loads the
// requested model, which downloads the weights on first use and leaves them
// in the local cache. "align" loads the model again, aligns a transcript
// against an audio file, and writes the result as JSON. The Go side parses
// that JSON into a subtitles.Result.
//
// The interpreter is started through a configurable launcher (uv by default)
// so stable-ts does not have to be installed globally. Tests replace the
// process runner with a stub.
package stablets
