package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"
	"time"

	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/persistence/middleware"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, middleware.KeySize)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func encrypted(t *testing.T, next ports.ContextStore, cfg middleware.EncryptionConfig) ports.ContextStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(next)
}

func newSession(userID string) *domain.Session {
	s := &domain.Session{Context: domain.NewUserContext(userID, "s-"+userID, time.Now().UTC())}
	s.Context.Preferences["name"] = "Ana"
	s.Record(domain.StateNeedsAssessment, domain.Turn{Timestamp: time.Now().UTC(), UserMessage: "a house in Miami"},
		domain.ConversationMetrics{EngagementLevel: 70})
	return s
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunContextStoreContract(t, encrypted(t, memory.NewStore(), middleware.EncryptionConfig{ActiveKey: generateKey(t)}))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	store := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "u1", newSession("u1")))

	raw, err := underlying.Load(ctx, "u1")
	require.NoError(t, err)
	assert.NotContains(t, raw.Context.Preferences, "name")
	assert.Contains(t, raw.Context.Preferences, "__encrypted__")
	assert.Empty(t, raw.Context.InteractionHistory)
	assert.Empty(t, raw.Metrics)

	loaded, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", loaded.Context.Preferences["name"])
	assert.Equal(t, domain.StateNeedsAssessment, loaded.Context.CurrentState)
	require.Len(t, loaded.Context.InteractionHistory, 1)
	assert.Equal(t, "a house in Miami", loaded.Context.InteractionHistory[0].UserMessage)
	require.Len(t, loaded.Metrics, 1)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	oldStore := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey})
	require.NoError(t, oldStore.Save(ctx, "u1", newSession("u1")))

	rotated := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}})
	loaded, err := rotated.Load(ctx, "u1")
	require.NoError(t, err, "fallback key decrypts old data")

	loaded.Context.Preferences["name"] = "Bea"
	require.NoError(t, rotated.Save(ctx, "u1", loaded))

	_, err = oldStore.Load(ctx, "u1")
	assert.ErrorIs(t, err, middleware.ErrDecryption)
}

func TestEncryptionMiddleware_Errors(t *testing.T) {
	t.Run("Invalid key", func(t *testing.T) {
		_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
		assert.ErrorIs(t, err, middleware.ErrInvalidKey)

		_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    generateKey(t),
			FallbackKeys: [][]byte{[]byte("short")},
		})
		assert.ErrorIs(t, err, middleware.ErrInvalidKey)
	})

	t.Run("Plain session", func(t *testing.T) {
		underlying := memory.NewStore()
		ctx := context.Background()
		require.NoError(t, underlying.Save(ctx, "u1", newSession("u1")))

		_, err := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)}).Load(ctx, "u1")
		assert.ErrorIs(t, err, middleware.ErrMissingEnvelope)
	})

	t.Run("Missing session", func(t *testing.T) {
		_, err := encrypted(t, memory.NewStore(), middleware.EncryptionConfig{ActiveKey: generateKey(t)}).Load(context.Background(), "nobody")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})
}
