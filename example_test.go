package chatflow_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/pkg/transition"
)

// ExampleEngine_ProcessMessage runs a single turn with the defaults: in-memory
// sessions, built-in bundles and the property-inquiry state machine.
func ExampleEngine_ProcessMessage() {
	engine, err := chatflow.New()
	if err != nil {
		log.Fatal(err)
	}

	res, err := engine.ProcessMessage(context.Background(), "user-42",
		"I'm looking for a 3-bedroom house in Miami under $800,000", "web")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("intent:", res.MessageAnalysis.DetectedIntent)
	fmt.Println("state:", res.ConversationState)
	for _, e := range res.MessageAnalysis.Entities {
		fmt.Printf("%s: %s\n", e.Type, e.Value)
	}
	// Output:
	// intent: property_search
	// state: needs_assessment
	// budget: $800,000
	// location: Miami
	// property_type: house
}

// ExampleWithTransitionTable replaces the state machine with one read from YAML.
// States without a matching rule fall back to their default key.
func ExampleWithTransitionTable() {
	table, err := transition.ParseTable([]byte(`
greeting:
  valuation_request: valuation_request
  default: greeting
valuation_request:
  default: follow_up
`))
	if err != nil {
		log.Fatal(err)
	}

	engine, err := chatflow.New(chatflow.WithTransitionTable(table))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	for _, msg := range []string{"Hello", "What's my condo worth?", "Thanks"} {
		if _, err := engine.ProcessMessage(ctx, "user-7", msg, ""); err != nil {
			log.Fatal(err)
		}
	}
	fmt.Println(engine.GetConversationFlow(ctx, "user-7"))
	// Output:
	// [greeting valuation_request follow_up]
}
