package preflight

import (
	"context"

	"subalign/internal/config"
)

// MinFreeBytes is the free space the output directory needs for subtitle
// files and the upload directory needs for staged audio.
const MinFreeBytes = 256 << 20

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Upload directory", cfg.Paths.UploadDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
	}
	if ctx.Err() != nil {
		return results
	}
	results = append(results,
		CheckFreeSpace("Upload disk space", cfg.Paths.UploadDir, MinFreeBytes),
		CheckFreeSpace("Output disk space", cfg.Paths.OutputDir, MinFreeBytes),
	)
	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
