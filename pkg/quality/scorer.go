// Package quality scores a finished turn: engagement, completion rate and personalization.
package quality

import (
	"strings"
	"unicode/utf8"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/locale"
)

// Engagement weights.
const (
	baseEngagement     = 50
	quickActionsBonus  = 20
	richMediaBonus     = 15
	fallbackBonus      = 10
	optimalLengthBonus = 10
	badLengthPenalty   = 15
	optimalLengthMin   = 50
	optimalLengthMax   = 300
	tooShortLength     = 20
	tooLongLength      = 500
)

// Personalization weights.
const (
	nameEchoScore      = 30
	locationEchoScore  = 25
	priorTurnScore     = 20
	maxPersonalization = 100
)

// Scorer derives the ConversationMetrics of a turn.
type Scorer struct {
	catalog *locale.Catalog
}

// NewScorer creates a Scorer. The catalog provides the prior-turn vocabulary per language.
func NewScorer(catalog *locale.Catalog) *Scorer {
	return &Scorer{catalog: catalog}
}

// Score computes the metrics of a turn. uc is the context before the turn is
// committed; next is the state the turn moves to. responseTime is in seconds.
func (s *Scorer) Score(uc *domain.UserContext, resp domain.QualityResponse, analysis domain.MessageAnalysis, next domain.ConversationState, responseTime float64) domain.ConversationMetrics {
	return domain.ConversationMetrics{
		ResponseTime:          responseTime,
		MessageLength:         utf8.RuneCountInString(resp.Message),
		UserSentiment:         analysis.SentimentScore,
		EngagementLevel:       Engagement(resp),
		CompletionRate:        CompletionRate(uc, next),
		ClarificationRequests: len(analysis.PotentialAmbiguities),
		ConfidenceScore:       analysis.IntentConfidence,
		PersonalizationScore:  s.personalization(uc, resp),
	}
}

// Engagement rewards interactive elements and a readable message length, in [0,100].
func Engagement(resp domain.QualityResponse) float64 {
	score := float64(baseEngagement)
	if len(resp.QuickActions) > 0 {
		score += quickActionsBonus
	}
	if resp.RichMedia != nil {
		score += richMediaBonus
	}
	if len(resp.FallbackOptions) > 0 {
		score += fallbackBonus
	}

	n := utf8.RuneCountInString(resp.Message)
	switch {
	case n >= optimalLengthMin && n <= optimalLengthMax:
		score += optimalLengthBonus
	case n < tooShortLength || n > tooLongLength:
		score -= badLengthPenalty
	}
	return clamp(score, 0, 100)
}

// CompletionRate is the share of distinct states among the turns so far,
// this one included, times 100. The first turn scores 100.
func CompletionRate(uc *domain.UserContext, next domain.ConversationState) float64 {
	distinct := map[domain.ConversationState]struct{}{next: {}}
	for _, t := range uc.InteractionHistory {
		distinct[t.State] = struct{}{}
	}
	turns := len(uc.InteractionHistory) + 1
	return float64(len(distinct)) / float64(turns) * 100
}

func (s *Scorer) personalization(uc *domain.UserContext, resp domain.QualityResponse) float64 {
	profile := uc.Profile()
	score := 0.0
	if profile.Name != "" && strings.Contains(resp.Message, profile.Name) {
		score += nameEchoScore
	}
	if loc := profile.PreferredLocation(); loc != "" && strings.Contains(resp.Message, loc) {
		score += locationEchoScore
	}
	if len(uc.InteractionHistory) > 0 && s.refersToPriorTurn(uc.Language, resp.Message) {
		score += priorTurnScore
	}
	if score > maxPersonalization {
		return maxPersonalization
	}
	return score
}

func (s *Scorer) refersToPriorTurn(lang, message string) bool {
	b := s.catalog.Lookup(lang).Bundle
	lower := strings.ToLower(message)
	for _, w := range b.Keywords.PriorTurn {
		if w != "" && strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// Average is the mean per-turn quality (see ConversationMetrics.QualityScore), 0 for no turns.
func Average(metrics []domain.ConversationMetrics) float64 {
	if len(metrics) == 0 {
		return 0
	}
	sum := 0.0
	for _, m := range metrics {
		sum += m.QualityScore()
	}
	return sum / float64(len(metrics))
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
