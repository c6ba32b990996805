package domain

import "reflect"

// ContextDiff represents the changes a turn applied to a UserContext.
// It is designed to be serialized to JSON for partial updates on the client.
type ContextDiff struct {
	// UserID is always present to identify the target.
	UserID string `json:"user_id"`

	CurrentState *ConversationState `json:"current_state,omitempty"`

	// Preferences contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Preferences map[string]any `json:"preferences,omitempty"`

	// Turns contains the history entries appended since the old snapshot.
	Turns []Turn `json:"turns,omitempty"`

	Language *string `json:"language,omitempty"`
}

// Diff calculates the difference between oldCtx and newCtx.
// If oldCtx is nil, it returns a diff representing the entire newCtx (initial load).
// It returns nil when nothing changed.
func Diff(oldCtx, newCtx *UserContext) *ContextDiff {
	if newCtx == nil {
		return nil
	}

	diff := &ContextDiff{UserID: newCtx.UserID}
	changed := false

	if oldCtx == nil || oldCtx.CurrentState != newCtx.CurrentState {
		state := newCtx.CurrentState
		diff.CurrentState = &state
		changed = true
	}
	if oldCtx == nil || oldCtx.Language != newCtx.Language {
		lang := newCtx.Language
		diff.Language = &lang
		changed = true
	}

	var oldPrefs map[string]any
	oldLen := 0
	if oldCtx != nil {
		oldPrefs = oldCtx.Preferences
		oldLen = len(oldCtx.InteractionHistory)
	}

	delta := make(map[string]any)
	for k, v := range newCtx.Preferences {
		if old, ok := oldPrefs[k]; !ok || !reflect.DeepEqual(old, v) {
			delta[k] = v
		}
	}
	for k := range oldPrefs {
		if _, ok := newCtx.Preferences[k]; !ok {
			delta[k] = nil
		}
	}
	if len(delta) > 0 {
		diff.Preferences = delta
		changed = true
	}

	if len(newCtx.InteractionHistory) > oldLen {
		diff.Turns = append([]Turn(nil), newCtx.InteractionHistory[oldLen:]...)
		changed = true
	}

	if !changed {
		return nil
	}
	return diff
}
