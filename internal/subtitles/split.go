package subtitles

import (
	"math"
	"strings"

	"bisub/internal/translation"
)

// Split breaks every segment longer than opts.MaxDisplay into pieces that
// fit. Each piece inherits a proportional slice of the segment's translation.
// The returned segments are reindexed from zero and the returned
// translations are keyed by the new indices. Blank segments are dropped.
// Splitting is idempotent.
func Split(segments []Segment, translations []translation.Result, opts Options) ([]Segment, []translation.Result) {
	return unpack(splitSpans(newSpans(segments, translations), opts))
}

func splitSpans(spans []span, opts Options) []span {
	max := opts.MaxDisplay.Seconds()
	if max <= 0 {
		return spans
	}
	out := make([]span, 0, len(spans))
	for _, sp := range spans {
		out = append(out, splitSpan(sp, max, opts.SilenceGap.Seconds())...)
	}
	return out
}

func splitSpan(sp span, max, silence float64) []span {
	if sp.seg.Duration() <= max {
		return []span{sp}
	}
	if cut, ok := silenceCut(sp.seg.Words, sp.seg.Start, sp.seg.End, silence); ok {
		left, right := cutAtWord(sp, cut)
		return append(splitSpan(left, max, silence), splitSpan(right, max, silence)...)
	}
	return splitEvenly(sp, max)
}

// silenceCut returns the index of the word after which the widest-enough gap
// nearest the segment midpoint falls.
func silenceCut(words []Word, start, end, silence float64) (int, bool) {
	if len(words) < 2 || silence <= 0 {
		return 0, false
	}
	mid := (start + end) / 2
	best := -1
	bestDist := math.Inf(1)
	for i := 0; i < len(words)-1; i++ {
		gap := words[i+1].Start - words[i].End
		if gap < silence {
			continue
		}
		at := (words[i].End + words[i+1].Start) / 2
		if dist := math.Abs(at - mid); dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best, best >= 0
}

func cutAtWord(sp span, cut int) (span, span) {
	sep := ""
	if joinsWithSpace(sp.seg.Text) {
		sep = " "
	}
	leftWords := append([]Word(nil), sp.seg.Words[:cut+1]...)
	rightWords := append([]Word(nil), sp.seg.Words[cut+1:]...)

	left, right := sp, sp
	left.seg.Words, right.seg.Words = leftWords, rightWords
	left.seg.End = leftWords[len(leftWords)-1].End
	right.seg.Start = rightWords[0].Start
	left.seg.Text = wordText(leftWords, sep)
	right.seg.Text = wordText(rightWords, sep)

	weights := []float64{
		float64(len([]rune(left.seg.Text))),
		float64(len([]rune(right.seg.Text))),
	}
	pieces := splitTranslation(sp.tr, weights)
	left.tr, right.tr = pieces[0], pieces[1]
	return left, right
}

func splitEvenly(sp span, max float64) []span {
	n := int(math.Ceil(sp.seg.Duration() / max))
	if n < 2 {
		return []span{sp}
	}
	step := sp.seg.Duration() / float64(n)
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
	}
	texts := sliceProportional(sp.seg.Text, weights)
	trs := splitTranslation(sp.tr, weights)

	out := make([]span, n)
	for i := 0; i < n; i++ {
		piece := sp
		piece.seg.Start = sp.seg.Start + step*float64(i)
		piece.seg.End = sp.seg.Start + step*float64(i+1)
		if i == n-1 {
			piece.seg.End = sp.seg.End
		}
		piece.seg.Text = texts[i]
		piece.seg.Words = wordsWithin(sp.seg.Words, piece.seg.Start, piece.seg.End)
		piece.tr = trs[i]
		out[i] = piece
	}
	return out
}

func splitTranslation(tr *translation.Result, weights []float64) []*translation.Result {
	out := make([]*translation.Result, len(weights))
	if tr == nil {
		return out
	}
	if !tr.OK() {
		for i := range out {
			r := *tr
			out[i] = &r
		}
		return out
	}
	texts := sliceProportional(tr.Text, weights)
	for i, text := range texts {
		r := *tr
		r.Text = text
		out[i] = &r
	}
	return out
}

func wordText(words []Word, sep string) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if t := strings.TrimSpace(w.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, sep)
}

func wordsWithin(words []Word, start, end float64) []Word {
	var out []Word
	for _, w := range words {
		mid := (w.Start + w.End) / 2
		if mid >= start && mid < end {
			out = append(out, w)
		}
	}
	return out
}
