package profiler

// ModelSize is one rung of the recognition model ladder.
type ModelSize struct {
	Name string
	// MemoryMB is the accelerator memory the model needs to run.
	MemoryMB int
}

// Ladder lists supported models from smallest to largest.
var Ladder = []ModelSize{
	{Name: "tiny", MemoryMB: 1024},
	{Name: "base", MemoryMB: 1024},
	{Name: "small", MemoryMB: 2048},
	{Name: "medium", MemoryMB: 5120},
	{Name: "large-v3", MemoryMB: 10240},
}

// Smallest returns the first rung of the ladder.
func Smallest() ModelSize {
	return Ladder[0]
}

// LargestFitting returns the largest model whose memory need fits budgetMB.
func LargestFitting(budgetMB int) (ModelSize, bool) {
	var best ModelSize
	found := false
	for _, m := range Ladder {
		if m.MemoryMB <= budgetMB {
			best, found = m, true
		}
	}
	return best, found
}

// KnownModel reports whether name is on the ladder.
func KnownModel(name string) bool {
	for _, m := range Ladder {
		if m.Name == name {
			return true
		}
	}
	return false
}
