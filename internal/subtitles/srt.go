package subtitles

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bisub/internal/fileutil"
)

// durationSlack is how far the last cue may run past the media before
// validation reports a mismatch.
const durationSlack = 2 * time.Second

// SRT renders the document. Rendering the same document twice yields
// identical bytes.
func (d Document) SRT() []byte {
	var buf bytes.Buffer
	for i, e := range d.Entries {
		if i > 0 {
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "%d\n%s --> %s\n", e.Index, formatTimestamp(e.Start), formatTimestamp(e.End))
		buf.WriteString(e.Primary)
		buf.WriteByte('\n')
		if e.Secondary != "" {
			buf.WriteString(e.Secondary)
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// WriteFile renders the document to path through a temporary file so a
// reader never sees a partial document.
func (d Document) WriteFile(path string) error {
	if err := fileutil.WriteAtomic(path, d.SRT(), 0o644); err != nil {
		return fmt.Errorf("write subtitle: %w", err)
	}
	return nil
}

// ParseSRT reads SRT content. The first text line of each cue becomes the
// primary text and any further lines the secondary text.
func ParseSRT(data []byte) (Document, error) {
	content := strings.TrimPrefix(string(data), "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var doc Document
	for n, block := range strings.Split(strings.TrimSpace(content), "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		if len(lines) < 2 {
			return Document{}, fmt.Errorf("cue %d: missing timing line", n+1)
		}
		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			return Document{}, fmt.Errorf("cue %d: invalid index %q", n+1, lines[0])
		}
		start, end, err := parseTimingLine(lines[1])
		if err != nil {
			return Document{}, fmt.Errorf("cue %d: %w", index, err)
		}
		entry := Entry{Index: index, Start: start, End: end}
		if len(lines) > 2 {
			entry.Primary = strings.TrimSpace(lines[2])
		}
		if len(lines) > 3 {
			entry.Secondary = strings.TrimSpace(strings.Join(lines[3:], " "))
		}
		doc.Entries = append(doc.Entries, entry)
	}
	return doc, nil
}

// Bounds returns the first start and last end across all entries.
func (d Document) Bounds() (time.Duration, time.Duration) {
	if len(d.Entries) == 0 {
		return 0, 0
	}
	first := d.Entries[0].Start
	var last time.Duration
	for _, e := range d.Entries {
		if e.Start < first {
			first = e.Start
		}
		if e.End > last {
			last = e.End
		}
	}
	return first, last
}

// ValidateSRTContent checks an SRT file for format issues. An empty slice
// means validation passed. mediaDuration may be zero when unknown.
func ValidateSRTContent(path string, mediaDuration time.Duration) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return []string{fmt.Sprintf("read_error: %v", err)}
	}
	if strings.TrimSpace(string(data)) == "" {
		return []string{"empty_subtitle_file"}
	}
	doc, err := ParseSRT(data)
	if err != nil {
		return []string{fmt.Sprintf("timestamp_parse_error: %v", err)}
	}
	if len(doc.Entries) == 0 {
		return []string{"empty_subtitle_file"}
	}

	var issues []string
	for i, e := range doc.Entries {
		if e.Index != i+1 {
			issues = append(issues, fmt.Sprintf("index_gap: cue %d numbered %d", i+1, e.Index))
			break
		}
	}
	if err := doc.Check(); err != nil {
		issues = append(issues, fmt.Sprintf("ordering: %v", err))
	}
	for _, e := range doc.Entries {
		if e.Primary == "" {
			issues = append(issues, fmt.Sprintf("empty_cue: %d", e.Index))
			break
		}
	}
	if mediaDuration > 0 {
		if _, last := doc.Bounds(); last > mediaDuration+durationSlack {
			issues = append(issues, fmt.Sprintf("duration_mismatch: delta=%.1fs", (last-mediaDuration).Seconds()))
		}
	}
	return issues
}

func parseTimingLine(line string) (time.Duration, time.Duration, error) {
	parts := strings.Split(line, "-->")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid timing line %q", line)
	}
	start, err := parseSRTTimestamp(parts[0])
	if err != nil {
		return 0, 0, err
	}
	end, err := parseSRTTimestamp(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseSRTTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	// Some tools write a period before the milliseconds.
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond
	return total, nil
}

func formatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
