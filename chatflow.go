package chatflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/internal/sanitize"
	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/analyzer"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/locale"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/aretw0/chatflow/pkg/quality"
	"github.com/aretw0/chatflow/pkg/responder"
	"github.com/aretw0/chatflow/pkg/session"
	"github.com/aretw0/chatflow/pkg/transition"
	"golang.org/x/text/language"
)

// Engine is the entry point of the library. It is safe for concurrent use.
type Engine struct {
	sessions  *session.Manager
	analyzer  *analyzer.Analyzer
	table     *transition.Table
	generator *responder.Generator
	scorer    *quality.Scorer
	sanitizer sanitize.Sanitizer

	// construction inputs
	store         ports.ContextStore
	catalog       *locale.Catalog
	completion    ports.CompletionService
	translator    ports.Translator
	classifier    ports.Classifier
	remoteTimeout time.Duration
	policy        session.EvictionPolicy
	maxInputSize  int

	hooks  domain.LifecycleHooks
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.Engine = (*Engine)(nil)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore injects the context store (default: in-memory).
func WithStore(store ports.ContextStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithCatalog sets the locale bundles (default: the embedded bundles).
func WithCatalog(c *locale.Catalog) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

// WithCompletion enables the remote intent-confidence estimate.
func WithCompletion(svc ports.CompletionService) Option {
	return func(e *Engine) {
		e.completion = svc
	}
}

// WithTranslator enables translation for languages without a bundle.
func WithTranslator(t ports.Translator) Option {
	return func(e *Engine) {
		e.translator = t
	}
}

// WithClassifier replaces the keyword-based local classifier.
func WithClassifier(c ports.Classifier) Option {
	return func(e *Engine) {
		e.classifier = c
	}
}

// WithTransitionTable replaces the default state machine.
func WithTransitionTable(t *transition.Table) Option {
	return func(e *Engine) {
		e.table = t
	}
}

// WithRemoteTimeout bounds every remote call (default 3s).
func WithRemoteTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.remoteTimeout = d
	}
}

// WithEvictionPolicy sets the session eviction policy (default: never evict).
func WithEvictionPolicy(p session.EvictionPolicy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithMaxInputSize caps the byte size of a message (default: sanitize.DefaultMaxInputSize).
func WithMaxInputSize(n int) Option {
	return func(e *Engine) {
		e.maxInputSize = n
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides time.Now for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New initializes an Engine. With no options it runs fully in memory on the
// embedded bundles and the default transition table.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		remoteTimeout: analyzer.DefaultRemoteTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	if e.catalog == nil {
		c, err := locale.Builtin()
		if err != nil {
			return nil, fmt.Errorf("failed to load locale bundles: %w", err)
		}
		e.catalog = c
	}
	if e.table == nil {
		e.table = transition.DefaultTable()
	} else if err := e.table.Validate(); err != nil {
		return nil, err
	}
	if e.policy == nil {
		e.policy = session.NeverEvict
	}

	e.sessions = session.NewManager(e.store,
		session.WithEvictionPolicy(e.policy),
		session.WithHooks(e.hooks),
		session.WithClock(e.now),
		session.WithLogger(e.logger),
	)

	analyzerOpts := []analyzer.Option{
		analyzer.WithTimeout(e.remoteTimeout),
		analyzer.WithHooks(e.hooks),
		analyzer.WithLogger(e.logger),
	}
	if e.completion != nil {
		analyzerOpts = append(analyzerOpts, analyzer.WithCompletion(e.completion))
	}
	if e.classifier != nil {
		analyzerOpts = append(analyzerOpts, analyzer.WithClassifier(e.classifier))
	}
	e.analyzer = analyzer.New(e.catalog, analyzerOpts...)

	generatorOpts := []responder.Option{
		responder.WithTimeout(e.remoteTimeout),
		responder.WithHooks(e.hooks),
		responder.WithLogger(e.logger),
	}
	if e.translator != nil {
		generatorOpts = append(generatorOpts, responder.WithTranslator(e.translator))
	}
	if namer, ok := e.completion.(ports.ModelNamer); ok {
		generatorOpts = append(generatorOpts, responder.WithModelID(namer.Model()))
	}
	e.generator = responder.New(e.catalog, generatorOpts...)

	e.scorer = quality.NewScorer(e.catalog)
	e.sanitizer = sanitize.New(e.maxInputSize)
	return e, nil
}

// ProcessMessage runs one turn for userID and returns its result. The user's
// context is created on first use. Turns of the same user are serialized.
//
// Remote failures never surface here: errors are returned only for invalid
// input or when ctx is done before the turn is committed, in which case the
// stored context is left untouched.
func (e *Engine) ProcessMessage(ctx context.Context, userID, message, channel string) (*domain.TurnResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrEmptyUserID
	}
	clean, err := e.sanitizer.Clean(message)
	if err != nil {
		return nil, err
	}
	if channel == "" {
		channel = domain.DefaultChannel
	}

	start := time.Now()
	var (
		result *domain.TurnResult
		from   domain.ConversationState
	)
	e.fireTurnStart(ctx, userID, channel)

	err = e.sessions.Update(ctx, userID, func(ctx context.Context, s *domain.Session) error {
		uc := s.Context
		from = uc.CurrentState

		analysis := e.analyzer.Analyze(ctx, clean, uc)
		next := e.table.Next(uc.CurrentState, analysis.DetectedIntent)

		// Entities are remembered before the response is built so this very
		// turn can already be personalized on them.
		working := uc.Clone()
		working.RememberEntities(analysis.Entities)

		resp := e.generator.Respond(ctx, working, analysis, next)
		elapsed := time.Since(start).Seconds()
		resp.Metadata.ProcessingTime = elapsed
		metrics := e.scorer.Score(working, resp, analysis, next, elapsed)

		if err := ctx.Err(); err != nil {
			return err
		}

		working.Channel = channel
		s.Context = working
		s.Record(next, domain.Turn{
			Timestamp:    e.now(),
			UserMessage:  clean,
			BotMessage:   resp.Message,
			QualityScore: metrics.QualityScore(),
		}, metrics)

		result = &domain.TurnResult{
			Response:          resp,
			QualityMetrics:    metrics,
			SuggestedActions:  responder.SuggestedActions(next),
			ConversationState: next,
			MessageAnalysis:   analysis,
		}
		return nil
	})

	e.fireTurnEnd(ctx, userID, channel, from, result, time.Since(start), err)
	if err != nil {
		e.logger.Debug("turn aborted", "user_id", userID, "err", err)
		return nil, err
	}

	e.logger.Info("turn processed",
		"user_id", userID,
		"channel", channel,
		"intent", result.MessageAnalysis.DetectedIntent,
		"from", from,
		"state", result.ConversationState,
		"confidence_source", result.MessageAnalysis.ConfidenceSource,
	)
	return result, nil
}

func (e *Engine) fireTurnStart(ctx context.Context, userID, channel string) {
	if e.hooks.OnTurnStart == nil {
		return
	}
	e.hooks.OnTurnStart(ctx, &domain.TurnEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventTurnStart, UserID: userID},
		Channel:   channel,
	})
}

func (e *Engine) fireTurnEnd(ctx context.Context, userID, channel string, from domain.ConversationState, res *domain.TurnResult, d time.Duration, err error) {
	if res != nil && e.hooks.OnTransition != nil {
		e.hooks.OnTransition(ctx, &domain.TransitionEvent{
			EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventTransition, UserID: userID},
			From:      from,
			To:        res.ConversationState,
			Intent:    res.MessageAnalysis.DetectedIntent,
		})
	}
	if e.hooks.OnTurnEnd == nil {
		return
	}
	evt := &domain.TurnEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventTurnEnd, UserID: userID},
		Channel:   channel,
		Duration:  d,
		Err:       err,
	}
	if res != nil {
		evt.State = res.ConversationState
		evt.Intent = res.MessageAnalysis.DetectedIntent
		m := res.QualityMetrics
		evt.Metrics = &m
	}
	e.hooks.OnTurnEnd(ctx, evt)
}

// GetUserContext returns a snapshot of the user's context.
func (e *Engine) GetUserContext(ctx context.Context, userID string) (*domain.UserContext, bool) {
	s, err := e.sessions.Get(ctx, userID)
	if err != nil {
		return nil, false
	}
	return s.Context, true
}

// GetQualityMetrics returns one entry per processed turn, oldest first.
func (e *Engine) GetQualityMetrics(ctx context.Context, userID string) []domain.ConversationMetrics {
	metrics := e.sessions.Metrics(ctx, userID)
	if metrics == nil {
		return []domain.ConversationMetrics{}
	}
	return metrics
}

// GetAverageQualityScore returns the mean per-turn quality; 0 when no turn was processed.
func (e *Engine) GetAverageQualityScore(ctx context.Context, userID string) float64 {
	return quality.Average(e.sessions.Metrics(ctx, userID))
}

// GetConversationFlow returns the state reached by each turn, oldest first.
func (e *Engine) GetConversationFlow(ctx context.Context, userID string) []domain.ConversationState {
	s, err := e.sessions.Get(ctx, userID)
	if err != nil {
		return []domain.ConversationState{}
	}
	return s.Context.Flow()
}

// SetPreferences merges prefs into the user's preferences. A nil value removes the key.
func (e *Engine) SetPreferences(ctx context.Context, userID string, prefs map[string]any) (*domain.UserContext, error) {
	var out *domain.UserContext
	err := e.sessions.Update(ctx, userID, func(_ context.Context, s *domain.Session) error {
		for k, v := range prefs {
			if v == nil {
				delete(s.Context.Preferences, k)
				continue
			}
			s.Context.Preferences[k] = v
		}
		if _, err := domain.DecodeProfile(s.Context.Preferences); err != nil {
			return err
		}
		out = s.Context.Clone()
		return nil
	})
	return out, err
}

// SetLanguage changes the language responses are produced in.
func (e *Engine) SetLanguage(ctx context.Context, userID, lang string) (*domain.UserContext, error) {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", domain.ErrInvalidLanguage, lang, err)
	}
	var out *domain.UserContext
	err = e.sessions.Update(ctx, userID, func(_ context.Context, s *domain.Session) error {
		s.Context.Language = tag.String()
		out = s.Context.Clone()
		return nil
	})
	return out, err
}

// Evict drops the user's context and metrics.
func (e *Engine) Evict(ctx context.Context, userID string) error {
	return e.sessions.Evict(ctx, userID)
}

// Sessions lists the users with a stored context.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// SessionManager exposes the session manager, e.g. to run the eviction janitor.
func (e *Engine) SessionManager() *session.Manager {
	return e.sessions
}

// Table returns the transition table in use.
func (e *Engine) Table() *transition.Table {
	return e.table
}

// Languages lists the languages with a bundle, default first.
func (e *Engine) Languages() []string {
	return e.catalog.Languages()
}
