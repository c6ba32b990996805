package locale

import (
	"fmt"
	"strings"

	"github.com/aretw0/chatflow/pkg/domain"
)

// IntentRule routes an utterance to an intent when any keyword matches.
// Rules are evaluated in order; the first match wins.
type IntentRule struct {
	Intent   string   `yaml:"intent"`
	Keywords []string `yaml:"keywords"`
}

// Keywords groups the word lists used by the local heuristics.
type Keywords struct {
	Domain         []string `yaml:"domain"`
	Positive       []string `yaml:"positive"`
	Negative       []string `yaml:"negative"`
	Hedges         []string `yaml:"hedges"`
	VaguePronouns  []string `yaml:"vague_pronouns"`
	PriorTurn      []string `yaml:"prior_turn"`
	PropertyTypes  []string `yaml:"property_types"`
	Prepositions   []string `yaml:"location_prepositions"`
	StreetSuffixes []string `yaml:"street_suffixes"`
	AmountSuffixes []string `yaml:"amount_suffixes"`

	// Fields maps a required field (budget, location, property, address) to the words that mention it.
	Fields map[string][]string `yaml:"fields"`
}

// Template is the plain-data descriptor of a response for one state.
type Template struct {
	Message string `yaml:"message"`

	// LocatedMessage is used instead of Message when a preferred location is known.
	// It must contain the {location} placeholder.
	LocatedMessage string `yaml:"located_message"`

	Questions    []string             `yaml:"questions"`
	QuickActions []domain.QuickAction `yaml:"quick_actions"`
}

// Fallbacks holds the copy of the low-confidence branches.
type Fallbacks struct {
	NoMatch            string   `yaml:"no_match"`
	AmbiguousReference string   `yaml:"ambiguous_reference"`
	DefaultReferents   []string `yaml:"default_referents"`
	IncompleteInfo     string   `yaml:"incomplete_info"`
	UnclearIntent      string   `yaml:"unclear_intent"`
}

// Bundle is every language-specific table of the engine for one language.
type Bundle struct {
	Language string `yaml:"language"`

	Keywords Keywords     `yaml:"keywords"`
	Intents  []IntentRule `yaml:"intents"`

	Salutation      string `yaml:"salutation"`
	NamedSalutation string `yaml:"named_salutation"`

	Templates map[domain.ConversationState]Template `yaml:"templates"`

	// Questions maps a required field to the question that asks for it.
	Questions map[string]string `yaml:"questions"`

	// QuickActionLabels maps an action key to its label.
	QuickActionLabels map[string]string `yaml:"quick_action_labels"`

	// Transitions maps "from->to" to the phrase prepended on that state change.
	Transitions map[string]string `yaml:"transitions"`

	Fallbacks Fallbacks `yaml:"fallbacks"`

	MapCaption string `yaml:"map_caption"`
}

// TransitionKey builds the Transitions lookup key for a state change.
func TransitionKey(from, to domain.ConversationState) string {
	return string(from) + "->" + string(to)
}

// Template returns the template of a state, if the bundle defines one.
func (b *Bundle) Template(state domain.ConversationState) (Template, bool) {
	t, ok := b.Templates[state]
	return t, ok
}

// TransitionPhrase returns the phrase for a state change, if any.
func (b *Bundle) TransitionPhrase(from, to domain.ConversationState) (string, bool) {
	p, ok := b.Transitions[TransitionKey(from, to)]
	return p, ok && p != ""
}

// Question returns the question asking for a field, falling back to the field name.
func (b *Bundle) Question(field string) string {
	if q, ok := b.Questions[field]; ok && q != "" {
		return q
	}
	return field
}

// QuickAction builds a quick action with the bundle label for action.
func (b *Bundle) QuickAction(action string) domain.QuickAction {
	label, ok := b.QuickActionLabels[action]
	if !ok || label == "" {
		label = strings.ReplaceAll(action, "_", " ")
	}
	return domain.QuickAction{Action: action, Label: label}
}

// Validate checks that the bundle is usable by the analyzer and the generator.
func (b *Bundle) Validate() error {
	if b.Language == "" {
		return fmt.Errorf("bundle: language is required")
	}
	if len(b.Intents) == 0 {
		return fmt.Errorf("bundle %s: no intent rules", b.Language)
	}
	for i, rule := range b.Intents {
		if rule.Intent == "" {
			return fmt.Errorf("bundle %s: intent rule %d has no intent", b.Language, i)
		}
	}
	for state := range b.Templates {
		if !state.Valid() {
			return fmt.Errorf("bundle %s: template for %w %q", b.Language, domain.ErrUnknownState, state)
		}
	}
	for key := range b.Transitions {
		from, to, ok := strings.Cut(key, "->")
		if !ok || !domain.ConversationState(from).Valid() || !domain.ConversationState(to).Valid() {
			return fmt.Errorf("bundle %s: invalid transition key %q", b.Language, key)
		}
	}
	if b.Fallbacks.NoMatch == "" {
		return fmt.Errorf("bundle %s: fallbacks.no_match is required", b.Language)
	}
	return nil
}
