package translation

import "strings"

// Status reports the outcome for a single unit.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Unit is one segment's text queued for translation.
type Unit struct {
	Index  int    `json:"index"`
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
	Target string `json:"target"`
}

// Result pairs a unit's index with its translation.
type Result struct {
	Index  int    `json:"index"`
	Text   string `json:"text,omitempty"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// OK reports whether the unit was translated.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// ByIndex maps results to their segment index.
func ByIndex(results []Result) map[int]Result {
	out := make(map[int]Result, len(results))
	for _, r := range results {
		out[r.Index] = r
	}
	return out
}

// Stats summarizes one Translate call.
type Stats struct {
	Units          int
	Unique         int
	Batches        int
	Requests       int
	Failed         int
	ShortCircuited int
}

type dedupKey struct {
	source string
	target string
	text   string
}

// normalizeText flattens a unit to a single line; the wire format separates
// units with newlines.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.Join(strings.Fields(text), " ")
}
