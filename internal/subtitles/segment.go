package subtitles

import (
	"strings"
	"time"

	"bisub/internal/config"
	"bisub/internal/translation"
)

// Word is a single recognized word with its timing, in seconds.
type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Segment is a timed unit of recognized speech. Times are in seconds.
type Segment struct {
	Index      int     `json:"index"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Language   string  `json:"language,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Words      []Word  `json:"words,omitempty"`
}

// Duration returns the segment length.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Options holds the synchronizer thresholds.
type Options struct {
	MaxDisplay time.Duration
	MinDisplay time.Duration
	MergeGap   time.Duration
	SilenceGap time.Duration
}

// OptionsFromConfig converts the [subtitles] section to Options.
func OptionsFromConfig(cfg config.Subtitles) Options {
	return Options{
		MaxDisplay: seconds(cfg.MaxDisplaySeconds),
		MinDisplay: seconds(cfg.MinDisplaySeconds),
		MergeGap:   seconds(cfg.MergeGapSeconds),
		SilenceGap: seconds(cfg.SilenceGapSeconds),
	}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// span is a segment in flight through the synchronizer, with the
// translation it carries, the input segment indices it covers, and those of
// them without a usable translation.
type span struct {
	seg     Segment
	tr      *translation.Result
	members []int
	failed  []int
}

func newSpans(segments []Segment, translations []translation.Result) []span {
	byIndex := translation.ByIndex(translations)
	spans := make([]span, 0, len(segments))
	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		sp := span{seg: seg, members: []int{seg.Index}}
		r, ok := byIndex[seg.Index]
		if ok {
			sp.tr = &r
		}
		if !ok || !r.OK() {
			sp.failed = []int{seg.Index}
		}
		spans = append(spans, sp)
	}
	return spans
}

// unpack reindexes spans 0..n-1 and returns the segments and the
// translations they carry.
func unpack(spans []span) ([]Segment, []translation.Result) {
	segments := make([]Segment, len(spans))
	var results []translation.Result
	for i, sp := range spans {
		seg := sp.seg
		seg.Index = i
		segments[i] = seg
		if sp.tr != nil {
			r := *sp.tr
			r.Index = i
			results = append(results, r)
		}
	}
	return segments, results
}

// joinsWithSpace reports whether text separates words with spaces. Scripts
// written without spaces (Chinese, Japanese) are split by rune instead.
func joinsWithSpace(text string) bool {
	return strings.ContainsRune(strings.TrimSpace(text), ' ')
}

func tokens(text string) ([]string, string) {
	text = strings.TrimSpace(text)
	if joinsWithSpace(text) {
		return strings.Fields(text), " "
	}
	runes := []rune(text)
	out := make([]string, len(runes))
	for i, r := range runes {
		out[i] = string(r)
	}
	return out, ""
}

// sliceProportional cuts text into len(weights) consecutive pieces whose
// sizes follow the weights.
func sliceProportional(text string, weights []float64) []string {
	parts := make([]string, len(weights))
	toks, sep := tokens(text)
	if len(toks) == 0 || len(weights) == 0 {
		return parts
	}
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		parts[0] = strings.Join(toks, sep)
		return parts
	}
	var cum float64
	prev := 0
	for i, w := range weights {
		cum += w
		next := int(float64(len(toks))*cum/total + 0.5)
		if i == len(weights)-1 {
			next = len(toks)
		}
		if next < prev {
			next = prev
		}
		parts[i] = strings.Join(toks[prev:next], sep)
		prev = next
	}
	return parts
}

func joinText(a, b string) string {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
