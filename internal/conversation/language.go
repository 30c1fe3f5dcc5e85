package conversation

import (
	"strings"
	"unicode"
)

// DetectLanguage returns LangArabic when Arabic letters outnumber Latin ones,
// LangEnglish when Latin letters dominate and fallback otherwise.
func DetectLanguage(message, fallback string) string {
	var arabic, latin int
	for _, r := range message {
		switch {
		case unicode.Is(unicode.Arabic, r) && unicode.IsLetter(r):
			arabic++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	switch {
	case arabic == 0 && latin == 0:
		if fallback == "" {
			return LangEnglish
		}
		return fallback
	case arabic >= latin:
		return LangArabic
	default:
		return LangEnglish
	}
}

// normalizeArabic folds common letter variants so keyword checks are spelling tolerant.
func normalizeArabic(s string) string {
	r := strings.NewReplacer(
		"أ", "ا", "إ", "ا", "آ", "ا",
		"ة", "ه", "ى", "ي",
		"ً", "", "ٌ", "", "ٍ", "", "َ", "", "ُ", "", "ِ", "", "ّ", "", "ْ", "",
	)
	return r.Replace(s)
}
