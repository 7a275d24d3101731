package stablets

import "time"

// Config captures runtime settings for the helper process.
type Config struct {
	// Launcher is the command that starts Python, e.g. ["uv", "run", "--with", "stable-ts", "python"].
	Launcher []string
	// Device is "cpu" or "cuda".
	Device string
	// WorkDir holds per-call transcript and result files. Defaults to the OS temp dir.
	WorkDir string
	// StopTimeout bounds how long Close waits for the helper to exit before
	// killing it.
	StopTimeout time.Duration
}

const (
	CPUDevice  = "cpu"
	CUDADevice = "cuda"

	defaultStopTimeout = 10 * time.Second
	stderrTailBytes    = 4000
)
