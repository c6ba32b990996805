package transition_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/transition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allIntents = []string{
	domain.IntentPropertySearch,
	domain.IntentValuationRequest,
	domain.IntentRiskAssessment,
	domain.IntentScheduling,
	domain.IntentMarketInsights,
	domain.IntentGreeting,
	domain.IntentGeneralInquiry,
	"follow_up",
	"totally_unknown",
	"",
}

func TestDefaultTable_Total(t *testing.T) {
	table := transition.DefaultTable()
	for _, state := range domain.AllStates() {
		for _, intent := range allIntents {
			next := table.Next(state, intent)
			assert.True(t, next.Valid(), "%s --%s--> %q", state, intent, next)
		}
	}
}

func TestDefaultTable_Next(t *testing.T) {
	table := transition.DefaultTable()

	tests := []struct {
		from   domain.ConversationState
		intent string
		want   domain.ConversationState
	}{
		{domain.StateGreeting, domain.IntentGreeting, domain.StateGreeting},
		{domain.StateGreeting, domain.IntentPropertySearch, domain.StateNeedsAssessment},
		{domain.StateGreeting, domain.IntentGeneralInquiry, domain.StateNeedsAssessment},
		{domain.StateNeedsAssessment, domain.IntentPropertySearch, domain.StatePropertySearch},
		{domain.StateNeedsAssessment, domain.IntentMarketInsights, domain.StateNeedsAssessment},
		{domain.StatePropertySearch, domain.IntentScheduling, domain.StateScheduling},
		{domain.StateValuationRequest, domain.IntentRiskAssessment, domain.StateRiskAssessment},
		{domain.StateScheduling, "follow_up", domain.StateFollowUp},
		{domain.StateFollowUp, domain.IntentGreeting, domain.StateGreeting},
		{domain.StateComplexQuery, domain.IntentGreeting, domain.StateComplexQuery},
		{domain.StateErrorRecovery, domain.IntentPropertySearch, domain.StatePropertySearch},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+tt.intent, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Next(tt.from, tt.intent))
		})
	}
}

func TestNext_FallbackOrder(t *testing.T) {
	table, err := transition.NewTable(map[domain.ConversationState]transition.Rules{
		domain.StateGreeting: {
			domain.IntentScheduling: domain.StateScheduling,
			transition.DefaultKey:   domain.StateFollowUp,
		},
		domain.StateScheduling: {
			domain.IntentGreeting: domain.StateGreeting,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StateScheduling, table.Next(domain.StateGreeting, domain.IntentScheduling), "explicit rule")
	assert.Equal(t, domain.StateFollowUp, table.Next(domain.StateGreeting, domain.IntentMarketInsights), "state default")
	assert.Equal(t, domain.StateScheduling, table.Next(domain.StateScheduling, domain.IntentMarketInsights), "self-loop without default")
	assert.Equal(t, domain.StateComplexQuery, table.Next(domain.StateComplexQuery, domain.IntentGreeting), "self-loop without rules")
}

func TestNewTable_Validate(t *testing.T) {
	_, err := transition.NewTable(map[domain.ConversationState]transition.Rules{
		"lobby": {transition.DefaultKey: domain.StateGreeting},
	})
	assert.ErrorIs(t, err, domain.ErrUnknownState)

	_, err = transition.NewTable(map[domain.ConversationState]transition.Rules{
		domain.StateGreeting: {transition.DefaultKey: "nowhere"},
	})
	assert.ErrorIs(t, err, domain.ErrUnknownState)
}

func TestParseTable(t *testing.T) {
	table, err := transition.ParseTable([]byte(`
greeting:
  property_search: property_search
  default: greeting
property_search:
  scheduling: scheduling
`))
	require.NoError(t, err)
	assert.Equal(t, domain.StatePropertySearch, table.Next(domain.StateGreeting, domain.IntentPropertySearch))
	assert.Equal(t, domain.StateGreeting, table.Next(domain.StateGreeting, domain.IntentScheduling))

	_, err = transition.ParseTable([]byte("greeting: [oops"))
	assert.Error(t, err)

	_, err = transition.ParseTable([]byte(""))
	assert.Error(t, err)

	_, err = transition.ParseTable([]byte("greeting:\n  default: lobby\n"))
	assert.ErrorIs(t, err, domain.ErrUnknownState)
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("greeting:\n  default: scheduling\n"), 0o644))

	table, err := transition.LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, domain.StateScheduling, table.Next(domain.StateGreeting, "anything"))

	_, err = transition.LoadTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEdges(t *testing.T) {
	table, err := transition.NewTable(map[domain.ConversationState]transition.Rules{
		domain.StateNeedsAssessment: {transition.DefaultKey: domain.StateNeedsAssessment, domain.IntentPropertySearch: domain.StatePropertySearch},
		domain.StateGreeting:        {domain.IntentScheduling: domain.StateScheduling, domain.IntentGreeting: domain.StateGreeting},
	})
	require.NoError(t, err)

	assert.Equal(t, []transition.Edge{
		{From: domain.StateGreeting, To: domain.StateGreeting, Intent: domain.IntentGreeting},
		{From: domain.StateGreeting, To: domain.StateScheduling, Intent: domain.IntentScheduling},
		{From: domain.StateNeedsAssessment, To: domain.StatePropertySearch, Intent: domain.IntentPropertySearch},
		{From: domain.StateNeedsAssessment, To: domain.StateNeedsAssessment, Intent: transition.DefaultKey},
	}, table.Edges())
}
