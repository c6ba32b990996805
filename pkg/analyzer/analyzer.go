package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/locale"
	"github.com/aretw0/chatflow/pkg/ports"
)

// DefaultRemoteTimeout bounds the completion call made for intent confidence.
const DefaultRemoteTimeout = 3 * time.Second

// OpIntentConfidence names the remote call made by the analyzer.
const OpIntentConfidence = "intent_confidence"

// Clarity penalties.
const (
	shortMessageWords   = 3
	longMessageWords    = 50
	runOnSentenceWords  = 20
	shortMessagePenalty = 30
	longMessagePenalty  = 20
	runOnPenalty        = 15
)

// Vague references are flagged above this count, or at vagueMinCount when
// they make up at least vagueDensity of the words.
const (
	vagueMaxCount = 2
	vagueMinCount = 2
	vagueDensity  = 0.2
)

// requirement lists the fields a state expects the user to mention.
type requirement struct {
	fields  []string
	penalty float64
	// anyOf means a single present field satisfies the requirement.
	anyOf bool
}

var requirements = map[domain.ConversationState]requirement{
	domain.StateNeedsAssessment:  {fields: []string{"budget", "location", "property"}, penalty: 25},
	domain.StateValuationRequest: {fields: []string{"address", "property"}, penalty: 50, anyOf: true},
}

// fieldEntities maps a required field to the entity type that also satisfies it.
var fieldEntities = map[string]string{
	"budget":   domain.EntityBudget,
	"location": domain.EntityLocation,
	"address":  domain.EntityLocation,
	"property": domain.EntityPropertyType,
}

// languageModel is everything the analyzer precomputes for one bundle.
type languageModel struct {
	bundle     *locale.Bundle
	classifier ports.Classifier
	extractor  *extractor
}

// Analyzer produces a MessageAnalysis for an utterance. It is safe for concurrent use.
type Analyzer struct {
	catalog    *locale.Catalog
	models     map[*locale.Bundle]*languageModel
	completion ports.CompletionService
	classifier ports.Classifier
	timeout    time.Duration
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithCompletion asks svc for the intent confidence before falling back to the local estimate.
func WithCompletion(svc ports.CompletionService) Option {
	return func(a *Analyzer) {
		a.completion = svc
	}
}

// WithTimeout bounds the remote confidence call (default: DefaultRemoteTimeout).
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithClassifier replaces the per-language KeywordClassifier for every language.
func WithClassifier(c ports.Classifier) Option {
	return func(a *Analyzer) {
		a.classifier = c
	}
}

// WithHooks registers the OnRemoteCall hook.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(a *Analyzer) {
		a.hooks = hooks
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// New creates an Analyzer over the bundles of catalog.
func New(catalog *locale.Catalog, opts ...Option) *Analyzer {
	a := &Analyzer{
		catalog: catalog,
		models:  make(map[*locale.Bundle]*languageModel),
		timeout: DefaultRemoteTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logging.NewNop()
	}
	for _, lang := range catalog.Languages() {
		b := catalog.Lookup(lang).Bundle
		m := &languageModel{bundle: b, extractor: newExtractor(b)}
		if a.classifier != nil {
			m.classifier = a.classifier
		} else {
			m.classifier = NewKeywordClassifier(b)
		}
		a.models[b] = m
	}
	return a
}

func (a *Analyzer) model(uc *domain.UserContext) *languageModel {
	lang := domain.DefaultLanguage
	if uc != nil && uc.Language != "" {
		lang = uc.Language
	}
	return a.models[a.catalog.Lookup(lang).Bundle]
}

// Analyze scores message against the user's context. It never fails: a
// remote error only switches the intent confidence to the local estimate.
// Without a completion service the result is a pure function of its inputs.
func (a *Analyzer) Analyze(ctx context.Context, message string, uc *domain.UserContext) domain.MessageAnalysis {
	m := a.model(uc)
	tokens := tokenize(message)

	intent, localConfidence := m.classifier.Classify(message)
	entities := m.extractor.extract(message, tokens)

	state := domain.InitialState
	if uc != nil {
		state = uc.CurrentState
	}
	completeness, missing := assessCompleteness(state, tokens, entities, m.bundle)

	analysis := domain.MessageAnalysis{
		ClarityScore:         clarity(message),
		SentimentScore:       sentiment(tokens, m.bundle),
		CompletenessScore:    completeness,
		MissingFields:        missing,
		PotentialAmbiguities: ambiguities(tokens, m.bundle),
		DetectedIntent:       intent,
		Entities:             entities,
	}
	if analysis.Entities == nil {
		analysis.Entities = []domain.Entity{}
	}
	analysis.IntentConfidence, analysis.ConfidenceSource = a.intentConfidence(ctx, message, uc, clamp(localConfidence, 0, 1))
	return analysis
}

func (a *Analyzer) intentConfidence(ctx context.Context, message string, uc *domain.UserContext, local float64) (float64, domain.ConfidenceSource) {
	if a.completion == nil {
		return local, domain.ConfidenceLocal
	}

	start := time.Now()
	conf, err := a.remoteConfidence(ctx, message, uc)
	event := &domain.RemoteCallEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventRemoteCall},
		Op:        OpIntentConfidence,
		Duration:  time.Since(start),
		Fallback:  err != nil,
		Err:       err,
	}
	if uc != nil {
		event.UserID = uc.UserID
	}
	if a.hooks.OnRemoteCall != nil {
		a.hooks.OnRemoteCall(ctx, event)
	}

	if err != nil {
		a.logger.Debug("using local intent confidence", "user_id", event.UserID, "err", err)
		return local, domain.ConfidenceLocalFallback
	}
	return conf, domain.ConfidenceRemote
}

// remoteConfidence asks the completion service, bounded by the analyzer timeout.
// Every failure is returned as a *domain.AnalysisError.
func (a *Analyzer) remoteConfidence(ctx context.Context, message string, uc *domain.UserContext) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req := ports.CompletionRequest{
		Prompt:  intentPrompt(message),
		Context: map[string]any{"purpose": OpIntentConfidence},
	}
	if uc != nil {
		req.Context["session_id"] = uc.SessionID
		req.Context["state"] = string(uc.CurrentState)
		req.Context["language"] = uc.Language
	}

	resp, err := a.completion.Complete(ctx, req)
	if err != nil {
		return 0, &domain.AnalysisError{Op: OpIntentConfidence, Cause: err}
	}
	if resp.Confidence == nil {
		return 0, &domain.AnalysisError{Op: OpIntentConfidence, Cause: domain.ErrNoConfidence}
	}
	conf := *resp.Confidence
	if math.IsNaN(conf) || conf < 0 || conf > 1 {
		return 0, &domain.AnalysisError{Op: OpIntentConfidence, Cause: fmt.Errorf("confidence %v out of range", conf)}
	}
	return conf, nil
}

func intentPrompt(message string) string {
	return "You classify messages sent to a real-estate assistant. " +
		"Reply with a single number between 0 and 1: how confident you are that the intent of the message below is clear.\n\n" +
		"Message: " + message
}

func clarity(message string) float64 {
	words := strings.Fields(message)
	if len(words) == 0 {
		return 0
	}
	sentences := strings.Count(message, ".") + strings.Count(message, "!") + strings.Count(message, "?")
	if sentences < 1 {
		sentences = 1
	}

	score := 100.0
	switch {
	case len(words) < shortMessageWords:
		score -= shortMessagePenalty
	case len(words) > longMessageWords:
		score -= longMessagePenalty
	}
	if float64(len(words))/float64(sentences) > runOnSentenceWords {
		score -= runOnPenalty
	}
	return clamp(score, 0, 100)
}

func sentiment(tokens []string, b *locale.Bundle) float64 {
	pos := countIn(tokens, lowerAll(b.Keywords.Positive))
	neg := countIn(tokens, lowerAll(b.Keywords.Negative))
	if pos == 0 && neg == 0 {
		return 0.5
	}
	return clamp(0.5+0.2*float64(pos-neg), 0, 1)
}

// assessCompleteness scores the message against the fields required by state and
// returns the missing ones in the order they should be asked.
func assessCompleteness(state domain.ConversationState, tokens []string, entities []domain.Entity, b *locale.Bundle) (float64, []string) {
	req, ok := requirements[state]
	if !ok {
		return 100, nil
	}

	present := func(field string) bool {
		if containsAnyKeyword(tokens, b.Keywords.Fields[field]) {
			return true
		}
		kind := fieldEntities[field]
		for _, e := range entities {
			if e.Type == kind {
				return true
			}
		}
		return false
	}

	score := 100.0
	var missing []string
	if req.anyOf {
		for _, f := range req.fields {
			if present(f) {
				return score, nil
			}
		}
		return clamp(score-req.penalty, 0, 100), req.fields[:1]
	}
	for _, f := range req.fields {
		if !present(f) {
			missing = append(missing, f)
			score -= req.penalty
		}
	}
	return clamp(score, 0, 100), missing
}

func ambiguities(tokens []string, b *locale.Bundle) []string {
	tags := []string{}
	for _, h := range b.Keywords.Hedges {
		if containsPhrase(tokens, h) {
			tags = append(tags, strings.ToLower(h))
		}
	}

	vague := countIn(tokens, lowerAll(b.Keywords.VaguePronouns))
	if vague > vagueMaxCount || (vague >= vagueMinCount && float64(vague)/float64(len(tokens)) >= vagueDensity) {
		tags = append(tags, domain.AmbiguityVagueReferences)
	}
	return tags
}

func lowerAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}
	return out
}
