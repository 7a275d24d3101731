// Package subtitles turns an alignment result into subtitle artifacts.
//
// It owns the result model parsed from the aligner, the highlight tag
// formatter used for word-level captions, and one writer per supported output
// format (SRT, ASS, JSON, TSV). The set of formats is closed: ParseFormat
// rejects anything else so a task can never finish without producing a file.
package subtitles
