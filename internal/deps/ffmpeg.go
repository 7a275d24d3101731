package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// CheckFFmpegForLauncher reports the ffmpeg binary Whisper will execute.
//
// Whisper spawns "ffmpeg" from the helper process's PATH. Virtualenv and
// conda launchers commonly put their bin directory first, so an ffmpeg next
// to the resolved launcher wins over the system one.
func CheckFFmpegForLauncher(launcher string) Status {
	result := Status{
		Name:        "FFmpeg",
		Description: "Decodes uploaded audio for Whisper",
	}

	launcherBinary := strings.TrimSpace(launcher)
	if launcherBinary != "" {
		if resolved, err := exec.LookPath(launcherBinary); err == nil {
			if candidate, ok := ffmpegSidecarCandidate(resolved); ok {
				if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
					result.Command = candidate
					result.Available = true
					return result
				}
			}
		}
	}

	ffmpegName := "ffmpeg"
	if ffmpegPath, err := exec.LookPath(ffmpegName); err == nil {
		result.Command = ffmpegPath
		result.Available = true
		return result
	}

	result.Command = ffmpegName
	result.Available = false
	result.Detail = fmt.Sprintf("binary %q not found", ffmpegName)
	return result
}

func ffmpegSidecarCandidate(launcherPath string) (string, bool) {
	if launcherPath == "" {
		return "", false
	}
	name := "ffmpeg"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(launcherPath), name), true
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
