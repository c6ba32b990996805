package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a user id has no context in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrUnknownState is returned when a string does not name a ConversationState.
var ErrUnknownState = errors.New("unknown conversation state")

// ErrEmptyUserID is returned when a turn is submitted without a user id.
var ErrEmptyUserID = errors.New("user id is required")

// ErrInvalidLanguage is returned when a language tag cannot be parsed.
var ErrInvalidLanguage = errors.New("invalid language tag")

// ErrInvalidPreferences is returned when a known preference key holds a value of the wrong shape.
var ErrInvalidPreferences = errors.New("invalid preferences")

// ErrNoConfidence is returned by a remote service that answered without a usable confidence.
var ErrNoConfidence = errors.New("remote response carried no confidence")

// AnalysisError describes a failed remote call made while analyzing or localizing a turn.
// It never reaches the caller of ProcessMessage: it tells the component that the
// local fallback path was taken, and why.
type AnalysisError struct {
	Op    string // "intent_confidence", "translate", ...
	Cause error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}
