package analyzer

import (
	"strings"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/locale"
)

// Local confidence bounds: a message with no domain keyword scores the floor,
// each distinct domain keyword adds a step, capped below certainty.
const (
	localConfidenceFloor = 0.3
	localConfidenceStep  = 0.1
	localConfidenceCap   = 0.9
)

// KeywordClassifier is the local fallback classifier. It walks the ordered
// intent rules of a bundle and picks the first rule with a matching keyword.
// It implements ports.Classifier.
type KeywordClassifier struct {
	rules  []locale.IntentRule
	domain []string
}

// NewKeywordClassifier builds a classifier from the intent rules and domain vocabulary of b.
func NewKeywordClassifier(b *locale.Bundle) *KeywordClassifier {
	c := &KeywordClassifier{}
	for _, rule := range b.Intents {
		lowered := locale.IntentRule{Intent: rule.Intent}
		for _, k := range rule.Keywords {
			lowered.Keywords = append(lowered.Keywords, strings.ToLower(k))
		}
		c.rules = append(c.rules, lowered)
	}
	for _, k := range b.Keywords.Domain {
		c.domain = append(c.domain, strings.ToLower(k))
	}
	return c
}

// Classify returns the detected intent and the local confidence estimate.
func (c *KeywordClassifier) Classify(text string) (string, float64) {
	tokens := tokenize(text)
	return c.intent(tokens), c.confidence(tokens)
}

func (c *KeywordClassifier) intent(tokens []string) string {
	for _, rule := range c.rules {
		if containsAnyKeyword(tokens, rule.Keywords) {
			return rule.Intent
		}
	}
	return domain.IntentGeneralInquiry
}

func (c *KeywordClassifier) confidence(tokens []string) float64 {
	matches := 0
	for _, k := range c.domain {
		if containsKeyword(tokens, k) {
			matches++
		}
	}
	conf := localConfidenceFloor + float64(matches)*localConfidenceStep
	if conf > localConfidenceCap {
		return localConfidenceCap
	}
	return conf
}
