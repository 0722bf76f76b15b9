package profiler

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"bisub/internal/config"
	"bisub/internal/deps"
)

// Accelerator describes one detected GPU.
type Accelerator struct {
	Name     string
	MemoryMB int
}

// Probe gathers the facts Resolve decides on. Both functions are replaced
// in tests.
type Probe struct {
	Binaries     func(reqs []deps.Requirement) []deps.Status
	Accelerators func(ctx context.Context) ([]Accelerator, error)
}

// SystemProbe inspects the host using the configured tool names.
func SystemProbe(cfg *config.Config) Probe {
	smi := "nvidia-smi"
	if cfg != nil && cfg.Tools.NvidiaSMI != "" {
		smi = cfg.Tools.NvidiaSMI
	}
	return Probe{
		Binaries: deps.CheckBinaries,
		Accelerators: func(ctx context.Context) ([]Accelerator, error) {
			return queryNvidiaSMI(ctx, smi)
		},
	}
}

const smiTimeout = 10 * time.Second

func queryNvidiaSMI(ctx context.Context, binary string) ([]Accelerator, error) {
	if _, err := exec.LookPath(binary); err != nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, smiTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, binary, "--query-gpu=name,memory.total", "--format=csv,noheader,nounits") //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", binary, err)
	}
	return parseNvidiaSMI(output)
}

// parseNvidiaSMI reads "name, memory" CSV lines.
func parseNvidiaSMI(output []byte) ([]Accelerator, error) {
	var out []Accelerator
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		idx := strings.LastIndex(line, ",")
		if idx < 0 {
			return nil, fmt.Errorf("unexpected nvidia-smi line %q", line)
		}
		mem, err := strconv.Atoi(strings.TrimSpace(line[idx+1:]))
		if err != nil {
			return nil, fmt.Errorf("unexpected nvidia-smi memory %q: %w", line[idx+1:], err)
		}
		out = append(out, Accelerator{Name: strings.TrimSpace(line[:idx]), MemoryMB: mem})
	}
	return out, scanner.Err()
}
