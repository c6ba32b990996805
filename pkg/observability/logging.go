package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/chatflow/pkg/domain"
)

// LogHooks returns lifecycle hooks that log every event on logger.
// Turn and transition events log at Debug; fallbacks at Warn.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurnStart: func(ctx context.Context, e *domain.TurnEvent) {
			logger.DebugContext(ctx, "turn_start",
				"user_id", e.UserID,
				"channel", e.Channel,
				"state", e.State,
			)
		},
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "turn_failed", "user_id", e.UserID, "error", e.Err)
				return
			}
			attrs := []any{
				"user_id", e.UserID,
				"state", e.State,
				"intent", e.Intent,
				"duration_ms", e.Duration.Milliseconds(),
			}
			if e.Metrics != nil {
				attrs = append(attrs, "quality", e.Metrics.QualityScore())
			}
			logger.DebugContext(ctx, "turn_end", attrs...)
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.DebugContext(ctx, "transition",
				"user_id", e.UserID,
				"from", e.From,
				"to", e.To,
				"intent", e.Intent,
			)
		},
		OnRemoteCall: func(ctx context.Context, e *domain.RemoteCallEvent) {
			if e.Fallback {
				logger.WarnContext(ctx, "remote_fallback",
					"user_id", e.UserID,
					"op", e.Op,
					"duration_ms", e.Duration.Milliseconds(),
					"error", e.Err,
				)
				return
			}
			logger.DebugContext(ctx, "remote_call", "op", e.Op, "duration_ms", e.Duration.Milliseconds())
		},
		OnEviction: func(ctx context.Context, e *domain.EvictionEvent) {
			logger.InfoContext(ctx, "context_evicted", "user_id", e.UserID, "idle_for", e.IdleFor)
		},
	}
}
