package translation

// batch is a group of unique texts sharing a language pair.
type batch struct {
	source string
	target string
	keys   []dedupKey
}

func (b batch) texts() []string {
	out := make([]string, len(b.keys))
	for i, k := range b.keys {
		out[i] = k.text
	}
	return out
}

// buildBatches groups keys, in first-seen order, into batches of at most
// maxUnits entries and maxChars characters. A single text longer than
// maxChars travels alone.
func buildBatches(keys []dedupKey, maxUnits, maxChars int) []batch {
	if maxUnits <= 0 {
		maxUnits = 1
	}
	var (
		batches []batch
		current batch
		chars   int
	)
	flush := func() {
		if len(current.keys) > 0 {
			batches = append(batches, current)
		}
		current = batch{}
		chars = 0
	}
	for _, key := range keys {
		size := len([]rune(key.text))
		samePair := len(current.keys) == 0 || (current.source == key.source && current.target == key.target)
		fits := len(current.keys) < maxUnits && (maxChars <= 0 || chars+size <= maxChars)
		if len(current.keys) > 0 && (!samePair || !fits) {
			flush()
		}
		if len(current.keys) == 0 {
			current.source = key.source
			current.target = key.target
		}
		current.keys = append(current.keys, key)
		chars += size
	}
	flush()
	return batches
}
