package responder

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/locale"
	"github.com/aretw0/chatflow/pkg/ports"
)

// DefaultModelID is reported in the response metadata when no remote model is involved.
const DefaultModelID = "chatflow-templates"

// DefaultTranslateTimeout bounds a translation call.
const DefaultTranslateTimeout = 3 * time.Second

// OpTranslate names the remote call made by the generator.
const OpTranslate = "translate"

// Confidence thresholds for the fallback options.
const (
	LowConfidence     = 0.6
	VeryLowConfidence = 0.4
	IncompleteMessage = 70.0
)

const (
	maxReferents        = 3
	locationPlaceholder = "{location}"
	namePlaceholder     = "{name}"
)

// RichMediaMapURL is the map attachment offered with property search results.
const RichMediaMapURL = "/api/property-map"

var (
	genericQuickActions = []string{"property_search", "get_valuation"}
	alternativeActions  = []string{"property_search", "get_valuation", "market_insights"}
	defaultGapFields    = []string{"budget", "location", "timeline"}
)

var errEmptyTranslation = errors.New("empty translation")

// Generator produces QualityResponses. It is safe for concurrent use.
type Generator struct {
	catalog    *locale.Catalog
	translator ports.Translator
	timeout    time.Duration
	modelID    string
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithTranslator localizes messages for languages without a bundle of their own.
func WithTranslator(t ports.Translator) Option {
	return func(g *Generator) {
		g.translator = t
	}
}

// WithTimeout bounds the translation call (default: DefaultTranslateTimeout).
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithModelID sets the model id reported in the response metadata.
func WithModelID(id string) Option {
	return func(g *Generator) {
		if id != "" {
			g.modelID = id
		}
	}
}

// WithHooks registers the OnRemoteCall hook.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(g *Generator) {
		g.hooks = hooks
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// New creates a Generator over the bundles of catalog.
func New(catalog *locale.Catalog, opts ...Option) *Generator {
	g := &Generator{
		catalog: catalog,
		timeout: DefaultTranslateTimeout,
		modelID: DefaultModelID,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logging.NewNop()
	}
	return g
}

// Respond builds the reply for a turn moving uc from its current state to next.
// uc is read only; it must already carry the preferences learned from this turn.
func (g *Generator) Respond(ctx context.Context, uc *domain.UserContext, analysis domain.MessageAnalysis, next domain.ConversationState) domain.QualityResponse {
	match := g.catalog.Lookup(uc.Language)
	b := match.Bundle
	profile := uc.Profile()

	tpl, ok := b.Template(next)
	if !ok {
		tpl = genericTemplate(b)
	}

	resp := domain.QualityResponse{
		Message:      g.personalize(b, tpl, profile, uc.CurrentState, next),
		QuickActions: append([]domain.QuickAction(nil), tpl.QuickActions...),
		Metadata: domain.ResponseMetadata{
			Confidence: analysis.IntentConfidence,
			ModelID:    g.modelID,
		},
		Language: b.Language,
	}

	if analysis.IntentConfidence < LowConfidence {
		resp.FallbackOptions = fallbackOptions(b, profile, analysis)
	}
	if next == domain.StatePropertySearch {
		resp.RichMedia = &domain.RichMedia{Type: "map", URL: RichMediaMapURL, Caption: b.MapCaption}
	}

	if !match.Exact && g.translator != nil {
		if translated, err := g.translate(ctx, uc, resp.Message, uc.Language); err == nil {
			resp.Message = translated
			resp.Language = uc.Language
		}
	}
	return resp
}

func genericTemplate(b *locale.Bundle) locale.Template {
	tpl := locale.Template{Message: b.Fallbacks.NoMatch}
	for _, action := range genericQuickActions {
		tpl.QuickActions = append(tpl.QuickActions, b.QuickAction(action))
	}
	return tpl
}

func (g *Generator) personalize(b *locale.Bundle, tpl locale.Template, profile domain.Profile, from, to domain.ConversationState) string {
	msg := tpl.Message
	if loc := profile.PreferredLocation(); loc != "" && tpl.LocatedMessage != "" {
		msg = strings.ReplaceAll(tpl.LocatedMessage, locationPlaceholder, loc)
	}
	if len(tpl.Questions) > 0 {
		var sb strings.Builder
		sb.WriteString(msg)
		for _, q := range tpl.Questions {
			sb.WriteString("\n• ")
			sb.WriteString(q)
		}
		msg = sb.String()
	}

	if profile.Name != "" && b.Salutation != "" && b.NamedSalutation != "" {
		msg = strings.Replace(msg, b.Salutation, strings.ReplaceAll(b.NamedSalutation, namePlaceholder, profile.Name), 1)
	}

	if from != to {
		if phrase, ok := b.TransitionPhrase(from, to); ok {
			msg = phrase + "\n\n" + msg
		}
	}
	return msg
}

func fallbackOptions(b *locale.Bundle, profile domain.Profile, analysis domain.MessageAnalysis) []domain.FallbackOption {
	var out []domain.FallbackOption

	if analysis.HasAmbiguity(domain.AmbiguityVagueReferences) {
		out = append(out, domain.FallbackOption{
			Type:    domain.FallbackClarification,
			Message: b.Fallbacks.AmbiguousReference,
			Options: referents(b, profile),
		})
	}

	if analysis.CompletenessScore < IncompleteMessage {
		fields := analysis.MissingFields
		if len(fields) == 0 {
			fields = defaultGapFields
		}
		questions := make([]string, 0, len(fields))
		for _, f := range fields {
			questions = append(questions, b.Question(f))
		}
		out = append(out, domain.FallbackOption{
			Type:    domain.FallbackInformationGap,
			Message: b.Fallbacks.IncompleteInfo,
			Options: questions,
		})
	}

	if analysis.IntentConfidence < VeryLowConfidence {
		labels := make([]string, 0, len(alternativeActions))
		for _, action := range alternativeActions {
			labels = append(labels, b.QuickAction(action).Label)
		}
		out = append(out, domain.FallbackOption{
			Type:    domain.FallbackAlternative,
			Message: b.Fallbacks.UnclearIntent,
			Options: labels,
		})
	}
	return out
}

// referents lists what a vague reference may point at: the places and property
// types the user mentioned most recently, padded with the bundle defaults.
func referents(b *locale.Bundle, profile domain.Profile) []string {
	out := make([]string, 0, maxReferents)
	seen := make(map[string]bool)
	add := func(s string) {
		if s == "" || seen[strings.ToLower(s)] || len(out) == maxReferents {
			return
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	for _, loc := range profile.PreferredLocations {
		add(loc)
	}
	for _, pt := range profile.PropertyTypes {
		add(pt)
	}
	for _, d := range b.Fallbacks.DefaultReferents {
		add(d)
	}
	return out
}

// translate localizes text, bounded by the generator timeout. On error the
// caller keeps the original text.
func (g *Generator) translate(ctx context.Context, uc *domain.UserContext, text, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.translator.Translate(ctx, ports.TranslationRequest{Text: text, TargetLanguage: target})
	if err == nil && strings.TrimSpace(resp.TranslatedText) == "" {
		err = errEmptyTranslation
	}
	if err != nil {
		err = &domain.AnalysisError{Op: OpTranslate, Cause: err}
	}

	if g.hooks.OnRemoteCall != nil {
		g.hooks.OnRemoteCall(ctx, &domain.RemoteCallEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventRemoteCall, UserID: uc.UserID},
			Op:        OpTranslate,
			Duration:  time.Since(start),
			Fallback:  err != nil,
			Err:       err,
		})
	}
	if err != nil {
		g.logger.Debug("keeping untranslated message", "user_id", uc.UserID, "language", target, "err", err)
		return "", err
	}
	return resp.TranslatedText, nil
}
