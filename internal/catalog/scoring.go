package catalog

import "strings"

const (
	scoreNameMatch     = 100
	scoreKeywordMatch  = 80
	scoreDescription   = 60
	scoreNamePrefix    = 40
	scoreCategoryMatch = 30
	scoreMessageToken  = 20
)

// Score ranks a record against a free-text query. Zero means no match.
func Score(rec ServiceRecord, query string) int {
	q := fold(query)
	if q == "" {
		return 0
	}
	name := fold(rec.Name)
	score := 0
	if strings.Contains(name, q) {
		score += scoreNameMatch
	}
	if keywordOverlap(rec.Keywords, tokenize(query)) > 0 {
		score += scoreKeywordMatch
	}
	if rec.Description != "" && strings.Contains(fold(rec.Description), q) {
		score += scoreDescription
	}
	if r := []rune(q); len(r) >= 4 && strings.Contains(name, string(r[:4])) {
		score += scoreNamePrefix
	}
	if overlaps(rec.Categories, DetectCategories(query)) || hasString(rec.Categories, q) {
		score += scoreCategoryMatch
	}
	return score
}

// messageScore ranks a category member against the whole customer message.
func messageScore(rec ServiceRecord, message string) int {
	score := scoreCategoryMatch
	folded := " " + strings.Join(tokenize(message), " ") + " "
	name := strings.Join(tokenize(rec.Name), " ")
	if name != "" && strings.Contains(folded, " "+name+" ") {
		score += scoreNameMatch
	}
	score += keywordOverlap(rec.Keywords, tokenize(message)) * scoreMessageToken
	return score
}

func keywordOverlap(keywords, tokens []string) int {
	if len(keywords) == 0 || len(tokens) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	n := 0
	for _, k := range keywords {
		if _, ok := set[fold(k)]; ok {
			n++
		}
	}
	return n
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		if hasString(b, x) {
			return true
		}
	}
	return false
}

func hasString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
