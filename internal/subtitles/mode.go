package subtitles

import (
	"fmt"
	"strings"
)

// Mode selects which texts an entry carries. The set is closed: Bilingual,
// SourceOnly and TranslatedOnly.
type Mode interface {
	Name() string
	// NeedsTranslation reports whether the mode displays translated text.
	NeedsTranslation() bool
	compose(source, translated string, ok bool) (primary, secondary string, degraded bool)
}

// Bilingual shows the source line with the translation beneath it.
type Bilingual struct{}

// SourceOnly shows only the recognized text.
type SourceOnly struct{}

// TranslatedOnly shows only the translation.
type TranslatedOnly struct{}

func (Bilingual) Name() string      { return "bilingual" }
func (SourceOnly) Name() string     { return "source" }
func (TranslatedOnly) Name() string { return "translated" }

func (Bilingual) NeedsTranslation() bool      { return true }
func (SourceOnly) NeedsTranslation() bool     { return false }
func (TranslatedOnly) NeedsTranslation() bool { return true }

func (Bilingual) compose(source, translated string, ok bool) (string, string, bool) {
	if !ok {
		return source, "", true
	}
	return source, translated, false
}

func (SourceOnly) compose(source, _ string, _ bool) (string, string, bool) {
	return source, "", false
}

func (TranslatedOnly) compose(source, translated string, ok bool) (string, string, bool) {
	if !ok || strings.TrimSpace(translated) == "" {
		return source, "", !ok
	}
	return translated, "", false
}

// ParseMode resolves a mode name. The empty string selects Bilingual.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "bilingual", "both":
		return Bilingual{}, nil
	case "source", "source-only", "source_only", "original":
		return SourceOnly{}, nil
	case "translated", "translated-only", "translated_only", "translation":
		return TranslatedOnly{}, nil
	default:
		return nil, fmt.Errorf("unknown subtitle mode %q", value)
	}
}

// Modes lists the accepted mode names.
func Modes() []string {
	return []string{Bilingual{}.Name(), SourceOnly{}.Name(), TranslatedOnly{}.Name()}
}
