package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/chatflow/internal/presentation/graph"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/transition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMermaid(t *testing.T) {
	table, err := transition.NewTable(map[domain.ConversationState]transition.Rules{
		domain.StateGreeting: {
			"property_search":     domain.StateNeedsAssessment,
			"valuation_request":   domain.StateNeedsAssessment,
			transition.DefaultKey: domain.StateGreeting,
		},
		domain.StateNeedsAssessment: {
			"property_search": domain.StatePropertySearch,
		},
	})
	require.NoError(t, err)

	out := graph.GenerateMermaid(table.Edges(), nil)

	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, `greeting(("greeting"))`)
	assert.Contains(t, out, `needs_assessment["needs_assessment"]`)
	assert.Contains(t, out, `property_search["property_search"]`)
	assert.Contains(t, out, `greeting -- "property_search / valuation_request" --> needs_assessment`)
	assert.Contains(t, out, "greeting -.-> greeting")
	assert.Equal(t, 1, strings.Count(out, `greeting(("greeting"))`), "states are declared once")
	assert.NotContains(t, out, "classDef")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	out := graph.GenerateMermaid(transition.DefaultTable().Edges(), &graph.Overlay{
		Visited: []domain.ConversationState{domain.StateGreeting, domain.StateGreeting, domain.StateNeedsAssessment},
		Current: domain.StateNeedsAssessment,
	})

	assert.Contains(t, out, "classDef visited")
	assert.Equal(t, 1, strings.Count(out, "class greeting visited;"))
	assert.Contains(t, out, "class needs_assessment current;")
	assert.NotContains(t, out, "class needs_assessment visited;")
}
