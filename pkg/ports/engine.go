package ports

import (
	"context"

	"github.com/aretw0/chatflow/pkg/domain"
)

// Engine is the library contract consumed by channel adapters (HTTP, MCP, CLI).
type Engine interface {
	// ProcessMessage runs one turn for userID. The context is created on first use.
	ProcessMessage(ctx context.Context, userID, message, channel string) (*domain.TurnResult, error)

	// GetUserContext returns a snapshot of the user's context, if any.
	GetUserContext(ctx context.Context, userID string) (*domain.UserContext, bool)

	// GetQualityMetrics returns one entry per processed turn, oldest first.
	GetQualityMetrics(ctx context.Context, userID string) []domain.ConversationMetrics

	// GetAverageQualityScore returns the mean per-turn quality, 0 when no turn was processed.
	GetAverageQualityScore(ctx context.Context, userID string) float64

	// GetConversationFlow returns the state reached by each turn, oldest first.
	GetConversationFlow(ctx context.Context, userID string) []domain.ConversationState

	// SetPreferences merges values into the user's preferences, creating the context if needed.
	SetPreferences(ctx context.Context, userID string, prefs map[string]any) (*domain.UserContext, error)

	// SetLanguage changes the language responses are produced in.
	SetLanguage(ctx context.Context, userID, language string) (*domain.UserContext, error)

	// Evict drops the user's context and metrics.
	Evict(ctx context.Context, userID string) error
}
