package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTurnStart  EventType = "turn_start"
	EventTurnEnd    EventType = "turn_end"
	EventTransition EventType = "transition"
	EventRemoteCall EventType = "remote_call"
	EventEviction   EventType = "eviction"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
}

// TurnEvent brackets a processMessage call.
type TurnEvent struct {
	EventBase
	Channel  string               `json:"channel"`
	State    ConversationState    `json:"state"`
	Intent   string               `json:"intent,omitempty"`
	Duration time.Duration        `json:"duration,omitempty"`
	Metrics  *ConversationMetrics `json:"metrics,omitempty"`
	Err      error                `json:"-"`
}

// TransitionEvent records a state change decided by the transition table.
type TransitionEvent struct {
	EventBase
	From   ConversationState `json:"from"`
	To     ConversationState `json:"to"`
	Intent string            `json:"intent"`
}

// RemoteCallEvent records a call to an external collaborator.
type RemoteCallEvent struct {
	EventBase
	Op       string        `json:"op"` // intent_confidence, translate
	Duration time.Duration `json:"duration"`
	Fallback bool          `json:"fallback"`
	Err      error         `json:"-"`
}

// EvictionEvent records a context removed by the eviction policy.
type EvictionEvent struct {
	EventBase
	IdleFor time.Duration `json:"idle_for"`
}

// LifecycleHooks defines callbacks for engine observability.
// Any hook may be nil.
type LifecycleHooks struct {
	OnTurnStart  func(context.Context, *TurnEvent)
	OnTurnEnd    func(context.Context, *TurnEvent)
	OnTransition func(context.Context, *TransitionEvent)
	OnRemoteCall func(context.Context, *RemoteCallEvent)
	OnEviction   func(context.Context, *EvictionEvent)
}

// MergeHooks combines hooks so every non-nil callback of each set is invoked in order.
func MergeHooks(sets ...LifecycleHooks) LifecycleHooks {
	var out LifecycleHooks
	for _, h := range sets {
		h := h
		out.OnTurnStart = chain(out.OnTurnStart, h.OnTurnStart)
		out.OnTurnEnd = chain(out.OnTurnEnd, h.OnTurnEnd)
		out.OnTransition = chain(out.OnTransition, h.OnTransition)
		out.OnRemoteCall = chain(out.OnRemoteCall, h.OnRemoteCall)
		out.OnEviction = chain(out.OnEviction, h.OnEviction)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
