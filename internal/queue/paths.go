package queue

import (
	"fmt"
	"path/filepath"
	"strings"
)

// StagingRoot returns the per-job working directory rooted at base.
func (j Job) StagingRoot(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	return filepath.Join(base, fmt.Sprintf("job-%d", j.ID))
}

// OutputStem returns the file name stem used for the job's deliverables.
// It mirrors the input name so results land next to each other in the
// output directory, with the job ID appended to keep reruns distinct.
func (j Job) OutputStem() string {
	name := filepath.Base(strings.TrimSpace(j.InputPath))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." {
		name = "media"
	}
	return fmt.Sprintf("%s.job-%d", name, j.ID)
}
