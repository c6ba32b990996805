// Package transition holds the conversation state machine: a table mapping
// (current state, detected intent) to the next state.
package transition

import (
	"fmt"
	"os"
	"sort"

	"github.com/aretw0/chatflow/pkg/domain"
	"gopkg.in/yaml.v3"
)

// DefaultKey is the intent key used when no rule matches the detected intent.
const DefaultKey = "default"

// Rules maps intent keys (and DefaultKey) to target states for one state.
type Rules map[string]domain.ConversationState

// Table is the transition function. A state without rules, or without a rule
// for the intent and without a default, loops on itself, so Next is total.
type Table struct {
	rules map[domain.ConversationState]Rules
}

// Edge is one entry of the table, used for diagrams.
type Edge struct {
	From   domain.ConversationState `json:"from"`
	To     domain.ConversationState `json:"to"`
	Intent string                   `json:"intent"` // DefaultKey for the fallback edge
}

// NewTable builds a validated table from rules.
func NewTable(rules map[domain.ConversationState]Rules) (*Table, error) {
	t := &Table{rules: make(map[domain.ConversationState]Rules, len(rules))}
	for state, r := range rules {
		cp := make(Rules, len(r))
		for k, v := range r {
			cp[k] = v
		}
		t.rules[state] = cp
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// DefaultTable returns the property-inquiry flow.
func DefaultTable() *Table {
	t, err := NewTable(map[domain.ConversationState]Rules{
		domain.StateGreeting: {
			domain.IntentPropertySearch:   domain.StateNeedsAssessment,
			domain.IntentValuationRequest: domain.StateValuationRequest,
			domain.IntentRiskAssessment:   domain.StateRiskAssessment,
			domain.IntentScheduling:       domain.StateScheduling,
			domain.IntentGreeting:         domain.StateGreeting,
			DefaultKey:                    domain.StateNeedsAssessment,
		},
		domain.StateNeedsAssessment: {
			domain.IntentPropertySearch:   domain.StatePropertySearch,
			domain.IntentValuationRequest: domain.StateValuationRequest,
			DefaultKey:                    domain.StateNeedsAssessment,
		},
		domain.StatePropertySearch: {
			domain.IntentScheduling:       domain.StateScheduling,
			domain.IntentValuationRequest: domain.StateValuationRequest,
			domain.IntentRiskAssessment:   domain.StateRiskAssessment,
			domain.IntentPropertySearch:   domain.StatePropertySearch,
			DefaultKey:                    domain.StatePropertySearch,
		},
		domain.StateValuationRequest: {
			domain.IntentRiskAssessment: domain.StateRiskAssessment,
			domain.IntentScheduling:     domain.StateScheduling,
			domain.IntentPropertySearch: domain.StatePropertySearch,
			DefaultKey:                  domain.StateValuationRequest,
		},
		domain.StateRiskAssessment: {
			domain.IntentScheduling:     domain.StateScheduling,
			domain.IntentPropertySearch: domain.StatePropertySearch,
			DefaultKey:                  domain.StateRiskAssessment,
		},
		domain.StateScheduling: {
			"follow_up":                 domain.StateFollowUp,
			domain.IntentPropertySearch: domain.StatePropertySearch,
			DefaultKey:                  domain.StateScheduling,
		},
		domain.StateFollowUp: {
			domain.IntentPropertySearch: domain.StatePropertySearch,
			domain.IntentGreeting:       domain.StateGreeting,
			DefaultKey:                  domain.StateFollowUp,
		},
		domain.StateComplexQuery: {
			domain.IntentPropertySearch:   domain.StatePropertySearch,
			domain.IntentValuationRequest: domain.StateValuationRequest,
			DefaultKey:                    domain.StateComplexQuery,
		},
		domain.StateErrorRecovery: {
			domain.IntentGreeting:       domain.StateGreeting,
			domain.IntentPropertySearch: domain.StatePropertySearch,
			DefaultKey:                  domain.StateErrorRecovery,
		},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// Next returns the state reached from current when intent is detected:
// the explicit rule, else the state's default, else current.
func (t *Table) Next(current domain.ConversationState, intent string) domain.ConversationState {
	rules := t.rules[current]
	if next, ok := rules[intent]; ok {
		return next
	}
	if next, ok := rules[DefaultKey]; ok {
		return next
	}
	return current
}

// Validate rejects rules naming unknown states.
func (t *Table) Validate() error {
	for state, rules := range t.rules {
		if !state.Valid() {
			return fmt.Errorf("transition table: %w %q", domain.ErrUnknownState, state)
		}
		for intent, target := range rules {
			if intent == "" {
				return fmt.Errorf("transition table: state %q has an empty intent key", state)
			}
			if !target.Valid() {
				return fmt.Errorf("transition table: %s --%s--> %w %q", state, intent, domain.ErrUnknownState, target)
			}
		}
	}
	return nil
}

// Edges enumerates the table in state declaration order, intents sorted, default last.
func (t *Table) Edges() []Edge {
	var edges []Edge
	for _, state := range domain.AllStates() {
		rules, ok := t.rules[state]
		if !ok {
			continue
		}
		intents := make([]string, 0, len(rules))
		for intent := range rules {
			if intent != DefaultKey {
				intents = append(intents, intent)
			}
		}
		sort.Strings(intents)
		for _, intent := range intents {
			edges = append(edges, Edge{From: state, To: rules[intent], Intent: intent})
		}
		if def, ok := rules[DefaultKey]; ok {
			edges = append(edges, Edge{From: state, To: def, Intent: DefaultKey})
		}
	}
	return edges
}

// ParseTable decodes a YAML table of the form:
//
//	greeting:
//	  property_search: needs_assessment
//	  default: needs_assessment
func ParseTable(data []byte) (*Table, error) {
	var raw map[domain.ConversationState]Rules
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse transition table: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("transition table is empty")
	}
	return NewTable(raw)
}

// LoadTable reads a YAML table from path.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transition table: %w", err)
	}
	return ParseTable(data)
}
