package catalog

import "strings"

// Category names.
const (
	CategoryNail   = "nail"
	CategoryHair   = "hair"
	CategoryFacial = "facial"
	CategoryBody   = "body"
)

// categoryOrder fixes the scan order so extraction is deterministic.
var categoryOrder = []string{CategoryNail, CategoryHair, CategoryFacial, CategoryBody}

var categoryKeywords = map[string][]string{
	CategoryNail: {
		"nail", "nails", "manicure", "pedicure", "mani", "pedi", "polish", "gel", "acrylic", "french",
		"مانيكير", "منيكير", "باديكير", "بديكير", "اظافر", "أظافر", "مناكير",
	},
	CategoryHair: {
		"hair", "haircut", "blowdry", "blow dry", "blowout", "keratin", "highlights", "hair color", "hair colour", "braid",
		"شعر", "صبغة", "سشوار", "كيراتين",
	},
	CategoryFacial: {
		"facial", "face", "skin", "cleansing", "hydrafacial", "peel", "eyebrow", "lashes",
		"وجه", "بشرة", "تنظيف", "حواجب", "رموش",
	},
	CategoryBody: {
		"massage", "body", "scrub", "wax", "waxing", "spa", "moroccan bath",
		"مساج", "جسم", "حمام مغربي", "شمع", "سبا",
	},
}

// Categories returns the ordered category names.
func Categories() []string {
	return append([]string(nil), categoryOrder...)
}

// DetectCategories lists the categories whose keywords appear in text, in scan order.
func DetectCategories(text string) []string {
	folded := " " + strings.Join(tokenize(text), " ") + " "
	raw := strings.ToLower(text)
	var out []string
	for _, cat := range categoryOrder {
		for _, kw := range categoryKeywords[cat] {
			if containsKeyword(folded, raw, kw) {
				out = append(out, cat)
				break
			}
		}
	}
	return out
}

// Categorize assigns categories to a POS item from its name, description and groups.
func Categorize(name, description string, groups []string) []string {
	text := name + " " + description + " " + strings.Join(groups, " ")
	return DetectCategories(text)
}

func containsKeyword(folded, raw, kw string) bool {
	if strings.Contains(folded, " "+fold(kw)+" ") {
		return true
	}
	// Arabic words take attached prefixes (ال, و, ب) so a substring check is used.
	if !isASCII(kw) {
		return strings.Contains(raw, kw)
	}
	return false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
