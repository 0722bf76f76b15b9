package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler renders one line per record:
//
//	2026-01-02T15:04:05Z INFO [job 7 translating] translation: batch dispatched units=20
//
// The job, stage, and component attributes become the line prefix; the rest
// follow the message as key=value pairs.
type consoleHandler struct {
	mu        *sync.Mutex
	out       io.Writer
	level     slog.Leveler
	addSource bool

	prefix consolePrefix
	group  string
	pairs  []consolePair
}

type consolePrefix struct {
	job       string
	stage     string
	component string
}

type consolePair struct {
	key   string
	value string
}

func newConsoleHandler(out io.Writer, level slog.Leveler, addSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, out: out, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.pairs = append([]consolePair(nil), h.pairs...)
	for _, attr := range attrs {
		clone.absorb(h.group, attr)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.pairs = append([]consolePair(nil), h.pairs...)
	clone.group = joinKey(h.group, name)
	return &clone
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}
	line := *h
	line.pairs = append([]consolePair(nil), h.pairs...)
	record.Attrs(func(attr slog.Attr) bool {
		line.absorb(h.group, attr)
		return true
	})

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	b.WriteString(ts.UTC().Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(levelLabel(record.Level))
	b.WriteByte(' ')
	line.prefix.write(&b)

	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	b.WriteString(msg)

	if h.addSource && record.PC != 0 {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&b, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	for _, pair := range line.pairs {
		b.WriteByte(' ')
		b.WriteString(pair.key)
		b.WriteByte('=')
		b.WriteString(pair.value)
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

// absorb routes attr into the prefix when it is an ungrouped job, stage, or
// component field, and into the key=value list otherwise. The first value
// seen for a prefix field wins.
func (h *consoleHandler) absorb(group string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	if attr.Value.Kind() == slog.KindGroup {
		inner := group
		if attr.Key != "" {
			inner = joinKey(group, attr.Key)
		}
		for _, member := range attr.Value.Group() {
			h.absorb(inner, member)
		}
		return
	}
	if group == "" {
		var slot *string
		switch attr.Key {
		case FieldJobID:
			slot = &h.prefix.job
		case FieldStage:
			slot = &h.prefix.stage
		case FieldComponent:
			slot = &h.prefix.component
		}
		if slot != nil {
			if *slot == "" {
				*slot = plainText(attr.Value)
			}
			return
		}
	}
	key := joinKey(group, attr.Key)
	if key == "" {
		return
	}
	h.pairs = append(h.pairs, consolePair{key: key, value: quoteIfNeeded(plainText(attr.Value))})
}

func (p consolePrefix) write(b *strings.Builder) {
	switch {
	case p.job != "" && p.stage != "":
		fmt.Fprintf(b, "[job %s %s] ", p.job, p.stage)
	case p.job != "":
		fmt.Fprintf(b, "[job %s] ", p.job)
	case p.stage != "":
		fmt.Fprintf(b, "[%s] ", p.stage)
	}
	if p.component != "" {
		b.WriteString(p.component)
		b.WriteString(": ")
	}
}

func joinKey(group, key string) string {
	switch {
	case group == "":
		return key
	case key == "":
		return group
	default:
		return group + "." + key
	}
}

func plainText(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
