package subtitles

import "bisub/internal/translation"

// Merge joins adjacent segments when either is shorter than opts.MinDisplay,
// the gap between them is under opts.MergeGap, and the joined segment does
// not exceed opts.MaxDisplay. Texts are joined with a space. A merged
// translation is failed when either part failed.
func Merge(segments []Segment, translations []translation.Result, opts Options) ([]Segment, []translation.Result) {
	return unpack(mergeSpans(newSpans(segments, translations), opts))
}

func mergeSpans(spans []span, opts Options) []span {
	if len(spans) < 2 {
		return spans
	}
	min := opts.MinDisplay.Seconds()
	gapLimit := opts.MergeGap.Seconds()
	max := opts.MaxDisplay.Seconds()

	out := make([]span, 0, len(spans))
	cur := spans[0]
	for _, next := range spans[1:] {
		short := cur.seg.Duration() < min || next.seg.Duration() < min
		gap := next.seg.Start - cur.seg.End
		fits := max <= 0 || next.seg.End-cur.seg.Start <= max
		if short && gap >= 0 && gap < gapLimit && fits {
			cur = mergePair(cur, next)
			continue
		}
		out = append(out, cur)
		cur = next
	}
	return append(out, cur)
}

func mergePair(a, b span) span {
	merged := a
	merged.seg.End = b.seg.End
	merged.seg.Text = joinText(a.seg.Text, b.seg.Text)
	merged.seg.Words = append(append([]Word(nil), a.seg.Words...), b.seg.Words...)
	if b.seg.Confidence < merged.seg.Confidence {
		merged.seg.Confidence = b.seg.Confidence
	}
	merged.members = append(append([]int(nil), a.members...), b.members...)
	merged.failed = append(append([]int(nil), a.failed...), b.failed...)
	merged.tr = mergeTranslation(a.tr, b.tr)
	return merged
}

func mergeTranslation(a, b *translation.Result) *translation.Result {
	if a == nil && b == nil {
		return nil
	}
	if a == nil || b == nil || !a.OK() || !b.OK() {
		r := translation.Result{Status: translation.StatusFailed}
		for _, part := range []*translation.Result{a, b} {
			if part != nil && part.Error != "" {
				r.Error = part.Error
				break
			}
		}
		if r.Error == "" {
			r.Error = "translation missing for merged segment"
		}
		return &r
	}
	return &translation.Result{Status: translation.StatusOK, Text: joinText(a.Text, b.Text)}
}
