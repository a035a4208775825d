package translate

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// scriptTables maps ISO 15924 script codes to the Unicode ranges a
// translation into that script is expected to contain.
var scriptTables = map[string][]*unicode.RangeTable{
	"Jpan": {unicode.Hiragana, unicode.Katakana, unicode.Han},
	"Hans": {unicode.Han},
	"Hant": {unicode.Han},
	"Kore": {unicode.Hangul, unicode.Han},
	"Cyrl": {unicode.Cyrillic},
	"Arab": {unicode.Arabic},
	"Hebr": {unicode.Hebrew},
	"Deva": {unicode.Devanagari},
	"Beng": {unicode.Bengali},
	"Taml": {unicode.Tamil},
	"Telu": {unicode.Telugu},
	"Gujr": {unicode.Gujarati},
	"Guru": {unicode.Gurmukhi},
	"Knda": {unicode.Kannada},
	"Mlym": {unicode.Malayalam},
	"Sinh": {unicode.Sinhala},
	"Thai": {unicode.Thai},
	"Laoo": {unicode.Lao},
	"Khmr": {unicode.Khmer},
	"Mymr": {unicode.Myanmar},
	"Grek": {unicode.Greek},
	"Armn": {unicode.Armenian},
	"Geor": {unicode.Georgian},
	"Ethi": {unicode.Ethiopic},
}

func parseTag(code string) (language.Tag, bool) {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return language.Und, false
	}
	return tag, true
}

// SameLanguage compares the base languages of two codes, so en-US equals en.
func SameLanguage(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	if strings.EqualFold(a, b) {
		return true
	}
	ta, okA := parseTag(a)
	tb, okB := parseTag(b)
	if !okA || !okB {
		return false
	}
	baseA, _ := ta.Base()
	baseB, _ := tb.Base()
	return baseA == baseB
}

// DisplayName returns the English name of a language code, or the code itself.
func DisplayName(code string) string {
	tag, ok := parseTag(code)
	if !ok {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

func baseCode(code string) string {
	tag, ok := parseTag(code)
	if !ok {
		return code
	}
	base, _ := tag.Base()
	return base.String()
}

func scriptOf(code string) string {
	tag, ok := parseTag(code)
	if !ok {
		return ""
	}
	script, conf := tag.Script()
	if conf == language.No {
		return ""
	}
	return script.String()
}

// Satisfied reports whether result plausibly is a translation into target.
// Targets written in a non-Latin script must contain at least one rune of
// that script; anything else only has to be non-empty.
func Satisfied(result, target string) bool {
	result = strings.TrimSpace(result)
	if result == "" {
		return false
	}

	tables, ok := scriptTables[scriptOf(target)]
	if !ok {
		return true
	}
	for _, r := range result {
		if unicode.In(r, tables...) {
			return true
		}
	}
	return false
}

// Placeholder is what the gateway returns when every provider failed.
func Placeholder(text, from, to string) string {
	return "[" + from + "→" + to + "] " + text
}
