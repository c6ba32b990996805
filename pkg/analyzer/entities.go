package analyzer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/locale"
)

const (
	budgetConfidence       = 0.8
	locationConfidence     = 0.7
	propertyTypeConfidence = 0.9
)

const (
	amountPattern   = `\d+(?:,\d{3})*(?:\.\d+)?`
	boundaryPattern = `(?:[^\p{L}\p{N}]|$)`
	namePattern     = `\p{Lu}\p{Ll}+(?:\s+\p{Lu}\p{Ll}+)*`
)

// extractor holds the entity patterns compiled for one bundle.
// A nil pattern means the bundle has no word list for it.
type extractor struct {
	budget        *regexp.Regexp
	located       *regexp.Regexp
	street        *regexp.Regexp
	propertyTypes []string
}

func newExtractor(b *locale.Bundle) *extractor {
	ex := &extractor{}
	for _, t := range b.Keywords.PropertyTypes {
		ex.propertyTypes = append(ex.propertyTypes, strings.ToLower(t))
	}

	// A bare number is never a budget: it needs a currency sign or an amount suffix,
	// so "3-bedroom" stays out.
	if suffixes := alternation(b.Keywords.AmountSuffixes); suffixes != "" {
		ex.budget = regexp.MustCompile(`(?i)(\$\s?` + amountPattern + `(?:\s?` + suffixes + `)?|\b` + amountPattern + `\s?` + suffixes + `)` + boundaryPattern)
	} else {
		ex.budget = regexp.MustCompile(`(\$\s?` + amountPattern + `)` + boundaryPattern)
	}
	if preps := alternation(b.Keywords.Prepositions); preps != "" {
		ex.located = regexp.MustCompile(`(?:^|[^\p{L}\p{N}])(?i:` + preps + `)\s+(` + namePattern + `)`)
	}
	if suffixes := alternation(b.Keywords.StreetSuffixes); suffixes != "" {
		ex.street = regexp.MustCompile(`(` + namePattern + `\s+(?i:` + suffixes + `))` + boundaryPattern)
	}
	return ex
}

// alternation builds a regexp alternation of words, longest first so that
// "millones" wins over "mil". Inner spaces match any whitespace run.
func alternation(words []string) string {
	if len(words) == 0 {
		return ""
	}
	sorted := append([]string(nil), words...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	quoted := make([]string, 0, len(sorted))
	for _, w := range sorted {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		quoted = append(quoted, strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`))
	}
	if len(quoted) == 0 {
		return ""
	}
	return "(?:" + strings.Join(quoted, "|") + ")"
}

// extract returns budget, location and property type entities, in that order, without duplicates.
func (ex *extractor) extract(message string, tokens []string) []domain.Entity {
	var entities []domain.Entity
	seen := make(map[string]bool)
	add := func(kind, value string, confidence float64) {
		value = strings.TrimSpace(value)
		key := kind + "\x00" + strings.ToLower(value)
		if value == "" || seen[key] {
			return
		}
		seen[key] = true
		entities = append(entities, domain.Entity{Type: kind, Value: value, Confidence: confidence})
	}

	for _, m := range ex.budget.FindAllStringSubmatch(message, -1) {
		add(domain.EntityBudget, m[1], budgetConfidence)
	}

	var locations []string
	if ex.located != nil {
		for _, m := range ex.located.FindAllStringSubmatch(message, -1) {
			locations = mergeLocation(locations, m[1])
		}
	}
	if ex.street != nil {
		for _, m := range ex.street.FindAllStringSubmatch(message, -1) {
			locations = mergeLocation(locations, m[1])
		}
	}
	for _, l := range locations {
		add(domain.EntityLocation, l, locationConfidence)
	}

	for _, t := range ex.propertyTypes {
		for _, tok := range tokens {
			if tok == t || tok == t+"s" || tok == t+"es" {
				add(domain.EntityPropertyType, t, propertyTypeConfidence)
				break
			}
		}
	}
	return entities
}

// mergeLocation appends candidate unless a known location already covers it.
// A longer candidate replaces the shorter one it contains.
func mergeLocation(known []string, candidate string) []string {
	candidate = strings.Join(strings.Fields(candidate), " ")
	lc := strings.ToLower(candidate)
	for i, k := range known {
		lk := strings.ToLower(k)
		if strings.Contains(lk, lc) {
			return known
		}
		if strings.Contains(lc, lk) {
			known[i] = candidate
			return known
		}
	}
	return append(known, candidate)
}
