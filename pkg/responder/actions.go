package responder

import "github.com/aretw0/chatflow/pkg/domain"

var suggestedActions = map[domain.ConversationState][]string{
	domain.StateGreeting:         {"property_search", "get_valuation", "market_insights"},
	domain.StateNeedsAssessment:  {"provide_budget", "specify_location", "choose_property_type"},
	domain.StatePropertySearch:   {"schedule_viewing", "get_details", "risk_assessment"},
	domain.StateValuationRequest: {"provide_address", "schedule_viewing", "risk_assessment"},
	domain.StateRiskAssessment:   {"schedule_viewing", "get_insurance", "mitigation_strategies"},
	domain.StateScheduling:       {"confirm_details", "reschedule", "add_to_calendar"},
	domain.StateFollowUp:         {"provide_feedback", "schedule_next", "property_search"},
	domain.StateComplexQuery:     {"clarify_request", "break_down_question", "speak_to_agent"},
	domain.StateErrorRecovery:    {"restart_conversation", "contact_support", "try_again"},
}

var defaultSuggestedActions = []string{"property_search", "get_valuation"}

// SuggestedActions returns the next actions worth offering in state.
func SuggestedActions(state domain.ConversationState) []string {
	actions, ok := suggestedActions[state]
	if !ok {
		actions = defaultSuggestedActions
	}
	return append([]string(nil), actions...)
}
