package profiler

import (
	"context"
	"fmt"
	"strings"

	"bisub/internal/config"
	"bisub/internal/deps"
	"bisub/internal/services"
)

// Device values.
const (
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

// Profile is the resolved execution environment. It does not change after
// Resolve returns.
type Profile struct {
	Device        string
	Model         string
	ModelMemoryMB int
	Accelerator   *Accelerator
	MaxInputBytes int64
	Locale        string
	Tools         []deps.Status
	// Notes explains fallbacks taken while resolving.
	Notes []string
}

// UsesAccelerator reports whether recognition runs on the GPU.
func (p Profile) UsesAccelerator() bool {
	return p.Device == DeviceCUDA
}

// Resolve builds the profile for cfg from what probe reports.
func Resolve(ctx context.Context, cfg *config.Config, probe Probe) (Profile, error) {
	if cfg == nil {
		return Profile{}, services.Wrap(services.ErrConfiguration, "profile", "resolve", "config is required", nil)
	}
	if probe.Binaries == nil {
		probe.Binaries = deps.CheckBinaries
	}

	profile := Profile{
		MaxInputBytes: cfg.MaxInputBytes(),
		Locale:        cfg.Environment.Locale,
	}
	profile.Tools = probe.Binaries(deps.Requirements(cfg))
	if missing := deps.MissingRequired(profile.Tools); len(missing) > 0 {
		return Profile{}, services.Wrap(services.ErrConfiguration, "profile", "check tools",
			fmt.Sprintf("required tools not found: %s", strings.Join(missing, ", ")), nil)
	}

	smallest := Smallest()
	profile.Device = DeviceCPU
	profile.Model = smallest.Name
	profile.ModelMemoryMB = smallest.MemoryMB

	if cfg.Environment.Device == DeviceCPU {
		profile.Notes = append(profile.Notes, "cpu forced by configuration")
	} else {
		gpu, note := pickAccelerator(ctx, probe)
		if note != "" {
			profile.Notes = append(profile.Notes, note)
		}
		if gpu != nil {
			budget := gpu.MemoryMB
			if cfg.Environment.MemoryBudgetMB > 0 && cfg.Environment.MemoryBudgetMB < budget {
				budget = cfg.Environment.MemoryBudgetMB
			}
			if model, ok := LargestFitting(budget); ok {
				profile.Device = DeviceCUDA
				profile.Accelerator = gpu
				profile.Model = model.Name
				profile.ModelMemoryMB = model.MemoryMB
			} else {
				profile.Notes = append(profile.Notes, fmt.Sprintf("no model fits %d MB; using cpu", budget))
			}
		}
	}

	if override := cfg.Recognition.Model; override != "" {
		profile.Model = override
		profile.ModelMemoryMB = 0
		for _, m := range Ladder {
			if m.Name == override {
				profile.ModelMemoryMB = m.MemoryMB
			}
		}
		profile.Notes = append(profile.Notes, fmt.Sprintf("model %s set by configuration", override))
	}
	return profile, nil
}

// pickAccelerator returns the GPU with the most memory, or nil with a note
// explaining why none is used.
func pickAccelerator(ctx context.Context, probe Probe) (*Accelerator, string) {
	if probe.Accelerators == nil {
		return nil, "no accelerator probe; using cpu"
	}
	gpus, err := probe.Accelerators(ctx)
	if err != nil {
		return nil, fmt.Sprintf("accelerator probe failed: %v; using cpu", err)
	}
	if len(gpus) == 0 {
		return nil, "no accelerator detected; using cpu"
	}
	best := gpus[0]
	for _, g := range gpus[1:] {
		if g.MemoryMB > best.MemoryMB {
			best = g
		}
	}
	return &best, ""
}
