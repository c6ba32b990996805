package responder_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/locale"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/aretw0/chatflow/pkg/responder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTranslator struct {
	err   error
	calls []ports.TranslationRequest
}

func (f *fakeTranslator) Translate(_ context.Context, req ports.TranslationRequest) (ports.TranslationResponse, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return ports.TranslationResponse{}, f.err
	}
	return ports.TranslationResponse{TranslatedText: "[" + req.TargetLanguage + "] " + req.Text}, nil
}

func newContext(state domain.ConversationState) *domain.UserContext {
	uc := domain.NewUserContext("u1", "s1", time.Now())
	uc.CurrentState = state
	return uc
}

func confident() domain.MessageAnalysis {
	return domain.MessageAnalysis{IntentConfidence: 0.8, CompletenessScore: 100}
}

func TestRespond_Greeting(t *testing.T) {
	g := responder.New(locale.MustBuiltin())

	resp := g.Respond(context.Background(), newContext(domain.StateGreeting), confident(), domain.StateGreeting)

	assert.True(t, strings.HasPrefix(resp.Message, "Hello!"))
	assert.GreaterOrEqual(t, len(resp.QuickActions), 2)
	assert.Nil(t, resp.RichMedia)
	assert.Empty(t, resp.FallbackOptions)
	assert.Equal(t, "en", resp.Language)
	assert.Equal(t, responder.DefaultModelID, resp.Metadata.ModelID)
	assert.InDelta(t, 0.8, resp.Metadata.Confidence, 0.0001)
}

func TestRespond_Personalization(t *testing.T) {
	g := responder.New(locale.MustBuiltin(), responder.WithModelID("gpt-test"))

	t.Run("Name replaces the salutation", func(t *testing.T) {
		uc := newContext(domain.StateGreeting)
		uc.Preferences[domain.PrefName] = "Ana"

		resp := g.Respond(context.Background(), uc, confident(), domain.StateGreeting)
		assert.True(t, strings.HasPrefix(resp.Message, "Hello Ana!"))
		assert.Equal(t, "gpt-test", resp.Metadata.ModelID)
	})

	t.Run("Transition phrase and questions", func(t *testing.T) {
		resp := g.Respond(context.Background(), newContext(domain.StateGreeting), confident(), domain.StateNeedsAssessment)

		assert.True(t, strings.HasPrefix(resp.Message, "Great, let's narrow down what you're looking for.\n\n"))
		assert.Contains(t, resp.Message, "\n• What's your budget range?")
	})

	t.Run("No phrase when the state does not change", func(t *testing.T) {
		resp := g.Respond(context.Background(), newContext(domain.StateNeedsAssessment), confident(), domain.StateNeedsAssessment)
		assert.True(t, strings.HasPrefix(resp.Message, "To find the right property"))
	})

	t.Run("Preferred location", func(t *testing.T) {
		uc := newContext(domain.StatePropertySearch)
		uc.Preferences[domain.PrefPreferredLocations] = []any{"Miami", "Austin"}

		resp := g.Respond(context.Background(), uc, confident(), domain.StatePropertySearch)
		assert.Contains(t, resp.Message, "in Miami")
		require.NotNil(t, resp.RichMedia)
		assert.Equal(t, "map", resp.RichMedia.Type)
		assert.Equal(t, responder.RichMediaMapURL, resp.RichMedia.URL)
		assert.Equal(t, "Property locations on map", resp.RichMedia.Caption)
	})
}

func TestRespond_GenericTemplate(t *testing.T) {
	g := responder.New(locale.MustBuiltin())
	en := locale.MustBuiltin().Default()

	resp := g.Respond(context.Background(), newContext(domain.StateComplexQuery), confident(), domain.StateComplexQuery)

	assert.Equal(t, en.Fallbacks.NoMatch, resp.Message)
	require.Len(t, resp.QuickActions, 2)
	assert.Equal(t, "property_search", resp.QuickActions[0].Action)
	assert.Equal(t, "get_valuation", resp.QuickActions[1].Action)
}

func TestRespond_FallbackOptions(t *testing.T) {
	g := responder.New(locale.MustBuiltin())

	t.Run("All three branches", func(t *testing.T) {
		uc := newContext(domain.StateNeedsAssessment)
		uc.Preferences[domain.PrefPreferredLocations] = []string{"Miami"}
		uc.Preferences[domain.PrefPropertyTypes] = []string{"condo"}
		analysis := domain.MessageAnalysis{
			IntentConfidence:     0.3,
			CompletenessScore:    50,
			MissingFields:        []string{"location", "property"},
			PotentialAmbiguities: []string{"kind of", domain.AmbiguityVagueReferences},
		}

		resp := g.Respond(context.Background(), uc, analysis, domain.StateNeedsAssessment)

		require.Len(t, resp.FallbackOptions, 3)
		clar := resp.FallbackOptions[0]
		assert.Equal(t, domain.FallbackClarification, clar.Type)
		assert.Equal(t, []string{"Miami", "condo", "The first property"}, clar.Options)

		gap := resp.FallbackOptions[1]
		assert.Equal(t, domain.FallbackInformationGap, gap.Type)
		assert.Equal(t, []string{"Which area or city are you interested in?", "What type of property are you looking for?"}, gap.Options)

		alt := resp.FallbackOptions[2]
		assert.Equal(t, domain.FallbackAlternative, alt.Type)
		assert.Equal(t, []string{"Search properties", "Get a valuation", "Market insights"}, alt.Options)
	})

	t.Run("Default referents and gap questions", func(t *testing.T) {
		analysis := domain.MessageAnalysis{
			IntentConfidence:     0.5,
			CompletenessScore:    50,
			PotentialAmbiguities: []string{domain.AmbiguityVagueReferences},
		}

		resp := g.Respond(context.Background(), newContext(domain.StateGreeting), analysis, domain.StateGreeting)

		require.Len(t, resp.FallbackOptions, 2)
		assert.Equal(t, []string{"The first property", "The one with the garden", "Another property"}, resp.FallbackOptions[0].Options)
		assert.Equal(t, []string{"What's your budget range?", "Which area or city are you interested in?", "When are you planning to move?"}, resp.FallbackOptions[1].Options)
		assert.False(t, resp.HasFallback(domain.FallbackAlternative))
	})

	t.Run("Confident turns carry none", func(t *testing.T) {
		analysis := domain.MessageAnalysis{
			IntentConfidence:     0.6,
			CompletenessScore:    0,
			PotentialAmbiguities: []string{domain.AmbiguityVagueReferences},
		}
		resp := g.Respond(context.Background(), newContext(domain.StateGreeting), analysis, domain.StateGreeting)
		assert.Empty(t, resp.FallbackOptions)
	})
}

func TestRespond_Localization(t *testing.T) {
	t.Run("Bundled language", func(t *testing.T) {
		tr := &fakeTranslator{}
		g := responder.New(locale.MustBuiltin(), responder.WithTranslator(tr))
		uc := newContext(domain.StateGreeting)
		uc.Language = "es-MX"

		resp := g.Respond(context.Background(), uc, confident(), domain.StateGreeting)

		assert.True(t, strings.HasPrefix(resp.Message, "¡Hola!"))
		assert.Equal(t, "es", resp.Language)
		assert.Empty(t, tr.calls)
	})

	t.Run("Translated", func(t *testing.T) {
		tr := &fakeTranslator{}
		g := responder.New(locale.MustBuiltin(), responder.WithTranslator(tr))
		uc := newContext(domain.StateGreeting)
		uc.Language = "fr"

		resp := g.Respond(context.Background(), uc, confident(), domain.StateGreeting)

		require.Len(t, tr.calls, 1)
		assert.Equal(t, "fr", tr.calls[0].TargetLanguage)
		assert.True(t, strings.HasPrefix(resp.Message, "[fr] Hello!"))
		assert.Equal(t, "fr", resp.Language)
	})

	t.Run("Translation failure keeps the original", func(t *testing.T) {
		var events []*domain.RemoteCallEvent
		hooks := domain.LifecycleHooks{
			OnRemoteCall: func(_ context.Context, e *domain.RemoteCallEvent) { events = append(events, e) },
		}
		tr := &fakeTranslator{err: errors.New("quota exceeded")}
		g := responder.New(locale.MustBuiltin(), responder.WithTranslator(tr), responder.WithHooks(hooks))
		uc := newContext(domain.StateGreeting)
		uc.Language = "fr"

		resp := g.Respond(context.Background(), uc, confident(), domain.StateGreeting)

		assert.True(t, strings.HasPrefix(resp.Message, "Hello!"))
		assert.Equal(t, "en", resp.Language)
		require.Len(t, events, 1)
		assert.True(t, events[0].Fallback)
		assert.Equal(t, responder.OpTranslate, events[0].Op)
	})

	t.Run("No translator", func(t *testing.T) {
		g := responder.New(locale.MustBuiltin())
		uc := newContext(domain.StateGreeting)
		uc.Language = "fr"

		resp := g.Respond(context.Background(), uc, confident(), domain.StateGreeting)
		assert.Equal(t, "en", resp.Language)
	})
}

func TestSuggestedActions(t *testing.T) {
	for _, state := range domain.AllStates() {
		assert.NotEmpty(t, responder.SuggestedActions(state), state)
	}
	assert.Equal(t, []string{"property_search", "get_valuation", "market_insights"}, responder.SuggestedActions(domain.StateGreeting))
	assert.Equal(t, []string{"property_search", "get_valuation"}, responder.SuggestedActions("unknown"))

	actions := responder.SuggestedActions(domain.StateGreeting)
	actions[0] = "mutated"
	assert.Equal(t, "property_search", responder.SuggestedActions(domain.StateGreeting)[0])
}
