package subtitles

import (
	"fmt"
	"math"
	"strings"
	"time"

	"bisub/internal/services"
	"bisub/internal/translation"
)

// Entry is one displayed subtitle cue.
type Entry struct {
	Index     int
	Start     time.Duration
	End       time.Duration
	Primary   string
	Secondary string
	// Segments lists the recognized segment indices this entry covers.
	Segments []int
	Degraded bool
}

// Degradation records a segment whose entry fell back to source text
// because its translation was missing or failed.
type Degradation struct {
	SegmentIndex int
	Reason       string
}

// Document is an ordered, non-overlapping sequence of entries.
type Document struct {
	Mode     string
	Entries  []Entry
	Degraded []Degradation
}

// Synchronize builds the subtitle document for segments and their
// translations. Translations are keyed by segment index; an index with no
// result, or a failed result, degrades to source text when mode displays
// translations. The only error is services.ErrSynchronization, returned when
// the segments cannot be laid out without overlap.
func Synchronize(segments []Segment, translations []translation.Result, mode Mode, opts Options) (Document, error) {
	if mode == nil {
		mode = Bilingual{}
	}
	spans := newSpans(segments, translations)
	spans = splitSpans(spans, opts)
	spans = mergeSpans(spans, opts)

	doc := Document{Mode: mode.Name(), Entries: make([]Entry, 0, len(spans))}
	for _, sp := range spans {
		source := flatten(sp.seg.Text)
		translated := ""
		ok := sp.tr != nil && sp.tr.OK()
		if ok {
			translated = flatten(sp.tr.Text)
		}
		primary, secondary, degraded := mode.compose(source, translated, ok)
		if degraded {
			doc.Degraded = append(doc.Degraded, degradations(sp)...)
		}
		doc.Entries = append(doc.Entries, Entry{
			Start:     toMillis(sp.seg.Start),
			End:       toMillis(sp.seg.End),
			Primary:   primary,
			Secondary: secondary,
			Segments:  sp.members,
			Degraded:  degraded,
		})
	}

	doc.Entries = layout(doc.Entries)
	if err := doc.Check(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// layout numbers entries and settles their millisecond windows. An entry
// whose start rounds onto the next entry's start has no window of its own
// and is folded into that entry.
func layout(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for i := 0; i < len(entries); i++ {
		e := entries[i]
		for i+1 < len(entries) && entries[i+1].Start <= e.Start {
			e = absorb(e, entries[i+1])
			i++
		}
		if e.End <= e.Start {
			e.End = e.Start + time.Millisecond
		}
		if i+1 < len(entries) && e.End > entries[i+1].Start {
			next := entries[i+1].Start
			e.End = next - time.Millisecond
			if e.End <= e.Start {
				e.End = next
			}
		}
		e.Index = len(out) + 1
		out = append(out, e)
	}
	return out
}

func absorb(e, next Entry) Entry {
	e.Primary = joinText(e.Primary, next.Primary)
	e.Secondary = joinText(e.Secondary, next.Secondary)
	e.End = max(e.End, next.End)
	e.Segments = append(append([]int(nil), e.Segments...), next.Segments...)
	e.Degraded = e.Degraded || next.Degraded
	return e
}

// Check verifies that entries are ordered, non-empty in time, and do not
// overlap.
func (d Document) Check() error {
	for i, e := range d.Entries {
		if e.End <= e.Start {
			return services.Wrap(services.ErrSynchronization, "synchronizing", "check entries",
				fmt.Sprintf("entry %d ends at %s, not after its start %s", e.Index, formatTimestamp(e.End), formatTimestamp(e.Start)), nil)
		}
		if i == 0 {
			continue
		}
		prev := d.Entries[i-1]
		if e.Start < prev.Start {
			return services.Wrap(services.ErrSynchronization, "synchronizing", "check entries",
				fmt.Sprintf("entry %d starts before entry %d", e.Index, prev.Index), nil)
		}
		if prev.End > e.Start {
			return services.Wrap(services.ErrSynchronization, "synchronizing", "check entries",
				fmt.Sprintf("entry %d overlaps entry %d", prev.Index, e.Index), nil)
		}
	}
	return nil
}

func degradations(sp span) []Degradation {
	reason := "translation missing"
	if sp.tr != nil && sp.tr.Error != "" {
		reason = sp.tr.Error
	} else if sp.tr != nil {
		reason = "translation failed"
	}
	indices := sp.failed
	if len(indices) == 0 {
		indices = sp.members
	}
	out := make([]Degradation, 0, len(indices))
	for _, idx := range indices {
		out = append(out, Degradation{SegmentIndex: idx, Reason: reason})
	}
	return out
}

func toMillis(sec float64) time.Duration {
	return time.Duration(math.Round(sec*1000)) * time.Millisecond
}

func flatten(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
