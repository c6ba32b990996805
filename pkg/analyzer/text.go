package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// tokenize lowercases text and splits it into words. Apostrophes stay inside words.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// matchesKeyword reports whether token is keyword, or an inflection of it.
// Prefix matching only applies to keywords of four letters or more so that
// short words like "hi" do not match "his" or "history".
func matchesKeyword(token, keyword string) bool {
	if token == keyword {
		return true
	}
	return utf8.RuneCountInString(keyword) >= 4 && strings.HasPrefix(token, keyword)
}

func containsKeyword(tokens []string, keyword string) bool {
	for _, t := range tokens {
		if matchesKeyword(t, keyword) {
			return true
		}
	}
	return false
}

func containsAnyKeyword(tokens []string, keywords []string) bool {
	for _, k := range keywords {
		if containsKeyword(tokens, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// containsPhrase reports whether the words of phrase appear consecutively in tokens.
func containsPhrase(tokens []string, phrase string) bool {
	words := tokenize(phrase)
	if len(words) == 0 || len(words) > len(tokens) {
		return false
	}
	for i := 0; i+len(words) <= len(tokens); i++ {
		match := true
		for j, w := range words {
			if tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func countIn(tokens []string, set []string) int {
	n := 0
	for _, t := range tokens {
		for _, s := range set {
			if t == s {
				n++
				break
			}
		}
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
