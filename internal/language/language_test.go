package language

import "testing"

func TestCodeMappings(t *testing.T) {
	for _, tc := range []struct {
		in, iso2, name string
	}{
		{"en", "en", "English"},
		{"EN", "en", "English"},
		{"eng", "en", "English"},
		{"fre", "fr", "French"},
		{"fra", "fr", "French"},
		{"ger", "de", "German"},
		{"chi", "zh", "Chinese"},
		{"zho", "zh", "Chinese"},
		{"dut", "nl", "Dutch"},
		{"jpn", "ja", "Japanese"},
		{"GERMAN", "de", "German"},
		{"mandarin", "zh", "Chinese"},
		{"hu", "hu", "Hungarian"},
		{"", "", "Unknown"},
	} {
		if got := ToISO2(tc.in); got != tc.iso2 {
			t.Errorf("ToISO2(%q) = %q, want %q", tc.in, got, tc.iso2)
		}
		if got := DisplayName(tc.in); got != tc.name {
			t.Errorf("DisplayName(%q) = %q, want %q", tc.in, got, tc.name)
		}
	}
	if got := ToISO2("xyz"); got != "" {
		t.Errorf("ToISO2(xyz) = %q, want empty", got)
	}
	if got := DisplayName("auto"); got != "Auto" {
		t.Errorf("DisplayName(auto) = %q", got)
	}
}

func TestNormalize(t *testing.T) {
	for in, want := range map[string]string{
		"":         Auto,
		"AUTO":     Auto,
		"en":       "en",
		"zh-CN":    "zh",
		"zh_TW":    "zh",
		"en-US":    "en",
		"Japanese": "ja",
		"fre":      "fr",
	} {
		if got, ok := Normalize(in); !ok || got != want {
			t.Errorf("Normalize(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if got, ok := Normalize("not a language"); ok {
		t.Errorf("Normalize accepted free text as %q", got)
	}
}

func TestAPICode(t *testing.T) {
	for in, want := range map[string]string{"ja": "jp", "ko": "kor", "fr": "fra", "zh": "zh", "en": "en", "auto": "auto", "xx": "xx"} {
		if got := APICode(in); got != want {
			t.Errorf("APICode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractFromTags(t *testing.T) {
	for _, tc := range []struct {
		tags map[string]string
		want string
	}{
		{nil, ""},
		{map[string]string{"language": "eng"}, "eng"},
		{map[string]string{"LANGUAGE": "ENG"}, "eng"},
		{map[string]string{"language_ietf": "en-US"}, "en-us"},
		{map[string]string{"language": "eng\x00"}, "eng"},
		{map[string]string{"language": "und", "lang": "fr"}, "fr"},
		{map[string]string{"language": "fr", "LANG": "en"}, "fr"},
	} {
		if got := ExtractFromTags(tc.tags); got != tc.want {
			t.Errorf("ExtractFromTags(%v) = %q, want %q", tc.tags, got, tc.want)
		}
	}
}

func TestDetect(t *testing.T) {
	if got := Detect("   "); got.Code != "" {
		t.Fatalf("blank text detected as %+v", got)
	}
	if got := Detect("The quick brown fox jumps over the lazy dog while the children watch from the window."); got.Code != "en" {
		t.Fatalf("expected en, got %+v", got)
	}
	if got := Detect("今天天气很好，我们一起去公园散步吧。我们可以在湖边坐一会儿。"); got.Code != "zh" {
		t.Fatalf("expected zh, got %+v", got)
	}
}

func TestResolveSourceAndChooseTarget(t *testing.T) {
	if got := ResolveSource("fr", "en", ""); got != "fr" {
		t.Fatalf("requested source should win, got %q", got)
	}
	if got := ResolveSource("auto", "zh", ""); got != "zh" {
		t.Fatalf("recognized source should be used, got %q", got)
	}
	if got := ResolveSource("auto", "", "Good morning everyone, and welcome to the conference on distributed systems."); got != "en" {
		t.Fatalf("detected source expected en, got %q", got)
	}
	if got := ResolveSource("auto", "", ""); got != "" {
		t.Fatalf("nothing to go on should yield empty, got %q", got)
	}
	for _, tc := range []struct{ source, requested, want string }{
		{"zh", "", "en"},
		{"en", "auto", "zh"},
		{"en", "ja", "ja"},
	} {
		if got := ChooseTarget(tc.source, tc.requested); got != tc.want {
			t.Errorf("ChooseTarget(%q, %q) = %q, want %q", tc.source, tc.requested, got, tc.want)
		}
	}
}
