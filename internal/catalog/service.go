// Package catalog resolves free-text service requests against the POS service catalog.
package catalog

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrNoMatch is returned when no real catalog service fits a request.
var ErrNoMatch = errors.New("catalog: no matching service")

// ServiceRecord is a bookable service as cached from the POS.
type ServiceRecord struct {
	ItemID          int      `json:"item_id"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Price           float64  `json:"price"`
	DurationMinutes int      `json:"duration_minutes"`
	LocationIDs     []int    `json:"location_ids,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	Categories      []string `json:"categories,omitempty"`
	IsSynthetic     bool     `json:"is_synthetic,omitempty"`
}

// OfferedAt reports whether the service is enabled at the location.
// Records without location data are treated as offered everywhere.
func (r ServiceRecord) OfferedAt(locationID int) bool {
	if len(r.LocationIDs) == 0 || locationID == 0 {
		return true
	}
	for _, id := range r.LocationIDs {
		if id == locationID {
			return true
		}
	}
	return false
}

// Source supplies the services offered at a location.
type Source interface {
	ServicesAt(ctx context.Context, locationID int) ([]ServiceRecord, error)
}

// fold lowercases and strips diacritics so "Pédicure" matches "pedicure".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// KeywordsFor derives search keywords from a service name and its POS groups.
func KeywordsFor(name string, groups []string) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(word string) {
		if len([]rune(word)) < 3 {
			return
		}
		if _, ok := seen[word]; ok {
			return
		}
		seen[word] = struct{}{}
		out = append(out, word)
	}
	for _, w := range tokenize(name) {
		add(w)
	}
	for _, g := range groups {
		for _, w := range tokenize(g) {
			add(w)
		}
	}
	return out
}
