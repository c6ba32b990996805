/*
Package domain contains the core domain models of the chatflow engine.

It defines the conversation states, the per-user context, the analysis of a
single utterance, the structured response handed back to a channel and the
quality metrics recorded for every turn. This package is kept pure and free
of I/O, following Hexagonal Architecture principles.

# Key Entities

  - ConversationState: the dialogue phase a user is in (greeting, needs assessment, ...).
  - UserContext: the per-user session snapshot (state, history, preferences).
  - MessageAnalysis: structured signals extracted from one utterance.
  - QualityResponse: what the host should render (message, quick actions, fallbacks).
  - ConversationMetrics: turn-level quality scores.
*/
package domain
