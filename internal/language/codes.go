package language

import (
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Auto asks for the source language to be taken from recognition or detection.
const Auto = "auto"

// known lists the languages the translation endpoint serves. api is the
// endpoint's own code where it differs from ISO 639-1. aliases holds
// ISO 639-2 codes (terminologic then bibliographic) and English names.
var known = []struct {
	iso1, api, name string
	aliases         []string
}{
	{"en", "", "English", []string{"eng", "english"}},
	{"zh", "", "Chinese", []string{"zho", "chi", "chinese", "mandarin"}},
	{"es", "spa", "Spanish", []string{"spa", "spanish"}},
	{"fr", "fra", "French", []string{"fra", "fre", "french"}},
	{"de", "", "German", []string{"deu", "ger", "german"}},
	{"it", "", "Italian", []string{"ita", "italian"}},
	{"pt", "", "Portuguese", []string{"por", "portuguese"}},
	{"ja", "jp", "Japanese", []string{"jpn", "japanese"}},
	{"ko", "kor", "Korean", []string{"kor", "korean"}},
	{"ru", "", "Russian", []string{"rus", "russian"}},
	{"ar", "ara", "Arabic", []string{"ara", "arabic"}},
	{"nl", "", "Dutch", []string{"nld", "dut", "dutch"}},
	{"pl", "", "Polish", []string{"pol", "polish"}},
	{"sv", "swe", "Swedish", []string{"swe", "swedish"}},
	{"da", "dan", "Danish", []string{"dan", "danish"}},
	{"fi", "fin", "Finnish", []string{"fin", "finnish"}},
	{"th", "", "Thai", []string{"tha", "thai"}},
	{"vi", "vie", "Vietnamese", []string{"vie", "vietnamese"}},
}

// index maps every code and alias, lowercased, to its position in known.
var index = func() map[string]int {
	m := make(map[string]int, len(known)*4)
	for i, l := range known {
		m[l.iso1] = i
		for _, alias := range l.aliases {
			m[alias] = i
		}
	}
	return m
}()

func find(code string) (int, bool) {
	i, ok := index[strings.ToLower(strings.TrimSpace(code))]
	return i, ok
}

// Normalize maps a code, English name, or BCP 47 tag such as "zh-CN" or
// "en_US" to ISO 639-1. Empty input and "auto" normalize to Auto. ok is
// false when the input names no language.
func Normalize(code string) (string, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	switch code {
	case "", Auto:
		return Auto, true
	}
	if i, ok := find(code); ok {
		return known[i].iso1, true
	}
	tag, err := xlang.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return "", false
	}
	base, confidence := tag.Base()
	if confidence == xlang.No {
		return "", false
	}
	return ToISO2(base.String()), true
}

// ToISO2 maps a known code or name to ISO 639-1. Unknown two-letter codes
// pass through; anything else yields "".
func ToISO2(code string) string {
	if i, ok := find(code); ok {
		return known[i].iso1
	}
	if code = strings.ToLower(strings.TrimSpace(code)); len(code) == 2 {
		return code
	}
	return ""
}

// APICode is the translation endpoint's code for an ISO 639-1 language.
// Unknown codes pass through.
func APICode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	i, ok := find(code)
	if !ok {
		return code
	}
	if api := known[i].api; api != "" {
		return api
	}
	return known[i].iso1
}

// DisplayName is the English name of a language for status output.
func DisplayName(code string) string {
	code = strings.TrimSpace(code)
	switch {
	case code == "":
		return "Unknown"
	case strings.EqualFold(code, Auto):
		return "Auto"
	}
	if i, ok := find(code); ok {
		return known[i].name
	}
	if tag, err := xlang.Parse(code); err == nil {
		if name := display.English.Languages().Name(tag); name != "" {
			return name
		}
	}
	return strings.ToUpper(code)
}

// tagKeys are the stream metadata keys containers use for language, in
// lookup order.
var tagKeys = []string{"language", "LANGUAGE", "Language", "language_ietf", "lang", "LANG"}

// ExtractFromTags returns the lowercased language recorded in stream tags,
// skipping blank and "und" values.
func ExtractFromTags(tags map[string]string) string {
	for _, key := range tagKeys {
		value := strings.TrimSpace(strings.ReplaceAll(tags[key], "\x00", ""))
		if value != "" && !strings.EqualFold(value, "und") {
			return strings.ToLower(value)
		}
	}
	return ""
}
