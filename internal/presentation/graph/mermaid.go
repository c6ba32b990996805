// Package graph renders the conversation state machine as a Mermaid flowchart.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/transition"
)

// Overlay marks the states a user went through.
type Overlay struct {
	Visited []domain.ConversationState
	Current domain.ConversationState
}

// GenerateMermaid produces a Mermaid flowchart from the table's edges.
// The initial state is drawn as a circle; default edges are dotted.
// Intents leading to the same target are merged into one labelled arrow.
func GenerateMermaid(edges []transition.Edge, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	declared := make(map[domain.ConversationState]bool)
	declare := func(s domain.ConversationState) {
		if declared[s] {
			return
		}
		declared[s] = true
		opener, closer := "[", "]"
		if s == domain.InitialState {
			opener, closer = "((", "))"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", s, opener, s, closer)
	}

	type key struct{ from, to domain.ConversationState }
	var order []key
	labels := make(map[key][]string)
	var defaults []transition.Edge

	for _, e := range edges {
		declare(e.From)
		if e.Intent == transition.DefaultKey {
			defaults = append(defaults, e)
			continue
		}
		k := key{e.From, e.To}
		if _, ok := labels[k]; !ok {
			order = append(order, k)
		}
		labels[k] = append(labels[k], e.Intent)
	}
	for _, e := range edges {
		declare(e.To)
	}

	for _, k := range order {
		fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", k.from, strings.Join(labels[k], " / "), k.to)
	}
	for _, e := range defaults {
		fmt.Fprintf(&sb, "    %s -.-> %s\n", e.From, e.To)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[domain.ConversationState]bool)
		for _, s := range overlay.Visited {
			if !seen[s] && s != overlay.Current {
				seen[s] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", s)
			}
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", overlay.Current)
		}
	}

	return sb.String()
}
