package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const dirPrefix = "job-"

// Layout names the files a job keeps in its staging directory.
type Layout struct {
	Root          string
	Audio         string
	RecognizerDir string
}

// ForJob returns the layout rooted at a job's staging directory.
func ForJob(root string) Layout {
	return Layout{
		Root:          root,
		Audio:         filepath.Join(root, "audio.wav"),
		RecognizerDir: filepath.Join(root, "recognizer"),
	}
}

// Ensure creates the layout's directories.
func (l Layout) Ensure() error {
	// RecognizerDir sits under Root, so one MkdirAll creates both.
	if err := os.MkdirAll(l.RecognizerDir, 0o755); err != nil {
		return fmt.Errorf("create staging dir %q: %w", l.RecognizerDir, err)
	}
	return nil
}

// Reclaim deletes a job's staging directory. Missing directories and empty
// roots are ignored.
func Reclaim(root string) error {
	if root = strings.TrimSpace(root); root == "" {
		return nil
	}
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("remove staging dir %q: %w", root, err)
	}
	return nil
}

// JobIDFromDir parses the id out of a job-<id> directory name.
func JobIDFromDir(name string) (int64, bool) {
	digits, ok := strings.CutPrefix(name, dirPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	return id, err == nil && id > 0
}
