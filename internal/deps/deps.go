// Package deps locates the external binaries the pipeline shells out to.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"bisub/internal/config"
)

// Requirement names one external binary.
type Requirement struct {
	Name        string
	Command     string
	Description string
	// Optional binaries degrade a feature when missing instead of blocking
	// startup.
	Optional bool
}

// Status is a Requirement plus the outcome of looking it up.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries the configured pipeline needs.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	tools := cfg.Tools
	return []Requirement{
		{Name: "FFmpeg", Command: tools.FFmpeg, Description: "Extracts audio and burns subtitles into video"},
		{Name: "FFprobe", Command: ResolveFFprobe(tools.FFmpeg, tools.FFprobe), Description: "Reads media duration and stream languages"},
		{Name: "WhisperX", Command: tools.WhisperX, Description: "Launches the speech recognizer", Optional: true},
		{Name: "nvidia-smi", Command: tools.NvidiaSMI, Description: "Reports accelerator memory", Optional: true},
	}
}

// CheckBinaries looks up every requirement on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	out := make([]Status, len(requirements))
	for i, req := range requirements {
		command := strings.TrimSpace(req.Command)
		out[i] = Status{
			Name:        req.Name,
			Command:     command,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch _, err := exec.LookPath(command); {
		case command == "":
			out[i].Detail = "command not configured"
		case err != nil:
			out[i].Detail = fmt.Sprintf("binary %q not found", command)
		default:
			out[i].Available = true
		}
	}
	return out
}

// MissingRequired names the unavailable non-optional binaries.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s.Name)
		}
	}
	return missing
}

// ResolveFFprobe picks the ffprobe to run: the configured command when it is
// on PATH, else an executable ffprobe beside the resolved ffmpeg, else the
// configured name unchanged.
func ResolveFFprobe(ffmpegCommand, ffprobeCommand string) string {
	probe := strings.TrimSpace(ffprobeCommand)
	if probe == "" {
		probe = "ffprobe"
	}
	if _, err := exec.LookPath(probe); err == nil {
		return probe
	}
	ffmpegCommand = strings.TrimSpace(ffmpegCommand)
	if ffmpegCommand == "" {
		return probe
	}
	ffmpegPath, err := exec.LookPath(ffmpegCommand)
	if err != nil {
		return probe
	}
	sibling := filepath.Join(filepath.Dir(ffmpegPath), exeName("ffprobe"))
	if info, err := os.Stat(sibling); err == nil && executable(info) {
		return sibling
	}
	return probe
}

func exeName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func executable(info os.FileInfo) bool {
	if info.IsDir() {
		return false
	}
	return runtime.GOOS == "windows" || info.Mode().Perm()&0o111 != 0
}
