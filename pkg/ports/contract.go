package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunContextStoreContract runs a suite of tests to verify that a ContextStore implementation
// adheres to the defined interface contract.
func RunContextStoreContract(t *testing.T, store ContextStore) {
	ctx := context.Background()
	userID := "contract-test-user-" + time.Now().Format("20060102150405")
	now := time.Now().UTC().Truncate(time.Second)

	newSession := func(id string) *domain.Session {
		return &domain.Session{Context: domain.NewUserContext(id, "sess-"+id, now)}
	}

	t.Run("Save and Load", func(t *testing.T) {
		session := newSession(userID)
		session.Context.Preferences["name"] = "Ana"
		session.Context.Advance(domain.StateNeedsAssessment, domain.Turn{Timestamp: now, UserMessage: "hi"})
		session.Metrics = append(session.Metrics, domain.ConversationMetrics{EngagementLevel: 70})

		err := store.Save(ctx, userID, session)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, userID)
		require.NoError(t, err, "Load should not return error")
		require.NotNil(t, loaded.Context)
		assert.Equal(t, domain.StateNeedsAssessment, loaded.Context.CurrentState)
		assert.Equal(t, "Ana", loaded.Context.Preferences["name"])
		assert.Len(t, loaded.Context.PreviousStates, 1)
		assert.Len(t, loaded.Context.InteractionHistory, 1)
		require.Len(t, loaded.Metrics, 1)
		assert.InDelta(t, 70, loaded.Metrics[0].EngagementLevel, 0.0001)
	})

	t.Run("Loaded copy is isolated", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, userID, newSession(userID)))

		loaded, err := store.Load(ctx, userID)
		require.NoError(t, err)
		loaded.Context.Preferences["mutated"] = true
		loaded.Context.CurrentState = domain.StateFollowUp

		again, err := store.Load(ctx, userID)
		require.NoError(t, err)
		assert.NotContains(t, again.Context.Preferences, "mutated")
		assert.Equal(t, domain.StateGreeting, again.Context.CurrentState)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+userID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, userID, newSession(userID)))

		err := store.Delete(ctx, userID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, userID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, userID), "Deleting twice should not fail")
	})

	t.Run("List", func(t *testing.T) {
		id1 := userID + "-1"
		id2 := userID + "-2"
		_ = store.Save(ctx, id1, newSession(id1))
		_ = store.Save(ctx, id2, newSession(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		users, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, users, id1)
		assert.Contains(t, users, id2)
	})
}
