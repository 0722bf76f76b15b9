package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Detection is a guess at the language of a text sample.
type Detection struct {
	Code       string
	Confidence float64
	Reliable   bool
}

// Detect guesses the language of text. Code is "" when the guess maps to no
// ISO 639-1 code.
func Detect(text string) Detection {
	if strings.TrimSpace(text) == "" {
		return Detection{}
	}
	info := whatlanggo.Detect(text)
	code := ToISO2(info.Lang.Iso6391())
	if code == "" {
		code = ToISO2(info.Lang.Iso6393())
	}
	return Detection{Code: code, Confidence: info.Confidence, Reliable: info.IsReliable()}
}

// ResolveSource picks a job's concrete source language: the requested one,
// else what the recognizer reported, else a detection over sample.
func ResolveSource(requested, recognized, sample string) string {
	for _, candidate := range []string{requested, recognized} {
		if code, ok := Normalize(candidate); ok && code != Auto {
			return code
		}
	}
	return Detect(sample).Code
}

// ChooseTarget returns the requested target, or the default pairing when
// none was requested: Chinese sources go to English, all others to Chinese.
func ChooseTarget(source, requested string) string {
	if code, ok := Normalize(requested); ok && code != Auto {
		return code
	}
	if ToISO2(source) == "zh" {
		return "en"
	}
	return "zh"
}
