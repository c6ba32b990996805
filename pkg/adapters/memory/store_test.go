package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunContextStoreContract(t, store)
}

func TestMemoryStore_SaveCopiesInput(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	session := &domain.Session{Context: domain.NewUserContext("u1", "s1", time.Now())}
	require.NoError(t, store.Save(ctx, "u1", session))

	// Mutating the caller's value after Save must not leak into the store.
	session.Context.Preferences["name"] = "Ana"
	session.Metrics = append(session.Metrics, domain.ConversationMetrics{})

	loaded, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, loaded.Context.Preferences)
	assert.Empty(t, loaded.Metrics)
	assert.Equal(t, 1, store.Len())
}
