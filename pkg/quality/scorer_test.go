package quality_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/locale"
	"github.com/aretw0/chatflow/pkg/quality"
	"github.com/stretchr/testify/assert"
)

func TestEngagement(t *testing.T) {
	optimal := strings.Repeat("a", 100)
	tests := []struct {
		name string
		resp domain.QualityResponse
		want float64
	}{
		{"Plain optimal length", domain.QualityResponse{Message: optimal}, 60},
		{"Medium length", domain.QualityResponse{Message: strings.Repeat("a", 30)}, 50},
		{"Too short", domain.QualityResponse{Message: "ok"}, 35},
		{"Too long", domain.QualityResponse{Message: strings.Repeat("a", 501)}, 35},
		{"Everything", domain.QualityResponse{
			Message:         optimal,
			QuickActions:    []domain.QuickAction{{Action: "a", Label: "A"}},
			RichMedia:       &domain.RichMedia{Type: "map"},
			FallbackOptions: []domain.FallbackOption{{Type: domain.FallbackAlternative}},
		}, 100},
		{"Capped", domain.QualityResponse{
			Message:         strings.Repeat("a", 300),
			QuickActions:    []domain.QuickAction{{Action: "a"}},
			RichMedia:       &domain.RichMedia{Type: "map"},
			FallbackOptions: []domain.FallbackOption{{Type: domain.FallbackAlternative}},
		}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, quality.Engagement(tt.resp), 0.0001)
		})
	}
}

func TestCompletionRate(t *testing.T) {
	uc := domain.NewUserContext("u1", "s1", time.Now())
	assert.InDelta(t, 100, quality.CompletionRate(uc, domain.StateGreeting), 0.0001, "first turn")

	// Ten turns over five states: the tenth turn is scored before it is committed.
	states := []domain.ConversationState{
		domain.StateGreeting, domain.StateGreeting,
		domain.StateNeedsAssessment, domain.StateNeedsAssessment,
		domain.StatePropertySearch, domain.StatePropertySearch,
		domain.StateScheduling, domain.StateScheduling,
		domain.StateFollowUp,
	}
	for _, s := range states {
		uc.Advance(s, domain.Turn{Timestamp: time.Now()})
	}
	assert.InDelta(t, 50, quality.CompletionRate(uc, domain.StateFollowUp), 0.0001)
}

func TestScore_Personalization(t *testing.T) {
	s := quality.NewScorer(locale.MustBuiltin())

	uc := domain.NewUserContext("u1", "s1", time.Now())
	uc.Preferences[domain.PrefName] = "Ana"
	uc.Preferences[domain.PrefPreferredLocations] = []string{"Miami"}

	resp := domain.QualityResponse{Message: "Hello Ana! Here is what we found in Miami, following our earlier chat."}

	m := s.Score(uc, resp, domain.MessageAnalysis{}, domain.StateGreeting, 0.01)
	assert.InDelta(t, 55, m.PersonalizationScore, 0.0001, "prior-turn reference needs history")

	uc.Advance(domain.StateGreeting, domain.Turn{Timestamp: time.Now()})
	m = s.Score(uc, resp, domain.MessageAnalysis{}, domain.StateGreeting, 0.01)
	assert.InDelta(t, 75, m.PersonalizationScore, 0.0001)

	m = s.Score(uc, domain.QualityResponse{Message: "Nothing personal."}, domain.MessageAnalysis{}, domain.StateGreeting, 0.01)
	assert.InDelta(t, 0, m.PersonalizationScore, 0.0001)
}

func TestScore_CopiesAnalysis(t *testing.T) {
	s := quality.NewScorer(locale.MustBuiltin())
	uc := domain.NewUserContext("u1", "s1", time.Now())
	analysis := domain.MessageAnalysis{
		IntentConfidence:     0.45,
		SentimentScore:       0.7,
		PotentialAmbiguities: []string{"maybe", domain.AmbiguityVagueReferences},
	}

	m := s.Score(uc, domain.QualityResponse{Message: "¡Hola!"}, analysis, domain.StateGreeting, 0.25)

	assert.InDelta(t, 0.25, m.ResponseTime, 0.0001)
	assert.Equal(t, 6, m.MessageLength)
	assert.InDelta(t, 0.7, m.UserSentiment, 0.0001)
	assert.Equal(t, 2, m.ClarificationRequests)
	assert.InDelta(t, 0.45, m.ConfidenceScore, 0.0001)
	assert.InDelta(t, 100, m.CompletionRate, 0.0001)
}

func TestAverage(t *testing.T) {
	assert.Equal(t, 0.0, quality.Average(nil))

	metrics := []domain.ConversationMetrics{
		{ConfidenceScore: 0.9, PersonalizationScore: 0.3, EngagementLevel: 60},
		{ConfidenceScore: 0.3, PersonalizationScore: 0.9, EngagementLevel: 30},
	}
	// (61.2/3 + 31.2/3) / 2
	assert.InDelta(t, 15.4, quality.Average(metrics), 0.0001)
}
