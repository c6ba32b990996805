package domain

import "time"

// DefaultLanguage is the language assigned to a freshly created context.
const DefaultLanguage = "en"

// DefaultChannel is used when a turn is submitted without a channel.
const DefaultChannel = "web"

// Turn is one entry of a user's interaction history.
type Turn struct {
	Timestamp    time.Time         `json:"timestamp"`
	UserMessage  string            `json:"user_message"`
	BotMessage   string            `json:"bot_message"`
	State        ConversationState `json:"state"`
	QualityScore float64           `json:"quality_score"`
}

// UserContext is the per-user conversation snapshot owned by the session store.
type UserContext struct {
	UserID       string            `json:"user_id"`
	SessionID    string            `json:"session_id"`
	CurrentState ConversationState `json:"current_state"`

	// PreviousStates grows by exactly one entry per processed turn.
	PreviousStates []ConversationState `json:"previous_states"`

	// Preferences holds user-provided or inferred values (name, preferredLocations, ...).
	Preferences map[string]any `json:"preferences"`

	// InteractionHistory has the same length as PreviousStates.
	InteractionHistory []Turn `json:"interaction_history"`

	Language          string    `json:"language"`
	Channel           string    `json:"channel,omitempty"`
	LastActivity      time.Time `json:"last_activity"`
	ConversationStart time.Time `json:"conversation_start"`
}

// NewUserContext creates a context in the initial state.
func NewUserContext(userID, sessionID string, now time.Time) *UserContext {
	return &UserContext{
		UserID:             userID,
		SessionID:          sessionID,
		CurrentState:       InitialState,
		PreviousStates:     []ConversationState{},
		Preferences:        make(map[string]any),
		InteractionHistory: []Turn{},
		Language:           DefaultLanguage,
		LastActivity:       now,
		ConversationStart:  now,
	}
}

// TurnCount returns the number of processed turns.
func (c *UserContext) TurnCount() int {
	return len(c.InteractionHistory)
}

// LastTurn returns the most recent turn, if any.
func (c *UserContext) LastTurn() (Turn, bool) {
	if len(c.InteractionHistory) == 0 {
		return Turn{}, false
	}
	return c.InteractionHistory[len(c.InteractionHistory)-1], true
}

// Flow returns the chronological sequence of states reached by each turn.
func (c *UserContext) Flow() []ConversationState {
	flow := make([]ConversationState, len(c.InteractionHistory))
	for i, t := range c.InteractionHistory {
		flow[i] = t.State
	}
	return flow
}

// Clone returns a deep copy so callers can never mutate the stored snapshot.
func (c *UserContext) Clone() *UserContext {
	if c == nil {
		return nil
	}
	out := *c
	out.PreviousStates = append([]ConversationState(nil), c.PreviousStates...)
	out.InteractionHistory = append([]Turn(nil), c.InteractionHistory...)
	out.Preferences = deepCopyMap(c.Preferences)
	if out.PreviousStates == nil {
		out.PreviousStates = []ConversationState{}
	}
	if out.InteractionHistory == nil {
		out.InteractionHistory = []Turn{}
	}
	return &out
}

// Advance records a completed turn: the current state is pushed onto
// PreviousStates, next becomes current and the turn is appended to history.
func (c *UserContext) Advance(next ConversationState, turn Turn) {
	c.PreviousStates = append(c.PreviousStates, c.CurrentState)
	c.CurrentState = next
	c.LastActivity = turn.Timestamp
	turn.State = next
	c.InteractionHistory = append(c.InteractionHistory, turn)
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		cp := make([]any, len(t))
		for i, item := range t {
			cp[i] = deepCopyValue(item)
		}
		return cp
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
