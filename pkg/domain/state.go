package domain

import "fmt"

// ConversationState is the dialogue phase a user is currently in.
type ConversationState string

const (
	StateGreeting         ConversationState = "greeting"
	StateNeedsAssessment  ConversationState = "needs_assessment"
	StatePropertySearch   ConversationState = "property_search"
	StateValuationRequest ConversationState = "valuation_request"
	StateRiskAssessment   ConversationState = "risk_assessment"
	StateScheduling       ConversationState = "scheduling"
	StateFollowUp         ConversationState = "follow_up"
	StateComplexQuery     ConversationState = "complex_query"
	StateErrorRecovery    ConversationState = "error_recovery"
)

// InitialState is the state every new conversation starts in.
const InitialState = StateGreeting

var allStates = []ConversationState{
	StateGreeting,
	StateNeedsAssessment,
	StatePropertySearch,
	StateValuationRequest,
	StateRiskAssessment,
	StateScheduling,
	StateFollowUp,
	StateComplexQuery,
	StateErrorRecovery,
}

// AllStates returns every conversation state in declaration order.
func AllStates() []ConversationState {
	out := make([]ConversationState, len(allStates))
	copy(out, allStates)
	return out
}

// Valid reports whether s is a member of the enumeration.
func (s ConversationState) Valid() bool {
	for _, known := range allStates {
		if s == known {
			return true
		}
	}
	return false
}

func (s ConversationState) String() string {
	return string(s)
}

// ParseState converts a raw string into a ConversationState.
func ParseState(raw string) (ConversationState, error) {
	s := ConversationState(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownState, raw)
	}
	return s, nil
}
