package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/session"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.Store
}

func (s SlowStore) Load(ctx context.Context, userID string) (*domain.Session, error) {
	time.Sleep(2 * time.Millisecond) // Simulate IO
	return s.Store.Load(ctx, userID)
}

func TestManager_LoadOrCreate(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mgr := session.NewManager(memory.NewStore(), session.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	s, err := mgr.LoadOrCreate(ctx, "ana")
	require.NoError(t, err)
	uc := s.Context
	assert.Equal(t, "ana", uc.UserID)
	assert.Equal(t, domain.StateGreeting, uc.CurrentState)
	assert.Equal(t, domain.DefaultLanguage, uc.Language)
	assert.Empty(t, uc.PreviousStates)
	assert.Empty(t, uc.InteractionHistory)
	assert.Equal(t, now, uc.ConversationStart)
	_, err = uuid.Parse(uc.SessionID)
	assert.NoError(t, err, "session id is a UUID")

	again, err := mgr.LoadOrCreate(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, uc.SessionID, again.Context.SessionID, "second call loads the same session")

	_, err = mgr.LoadOrCreate(ctx, "")
	assert.ErrorIs(t, err, domain.ErrEmptyUserID)
}

func TestManager_Get(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	_, err := mgr.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Nil(t, mgr.Metrics(context.Background(), "nobody"))
}

func TestManager_Update(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	err := mgr.Update(ctx, "ana", func(_ context.Context, s *domain.Session) error {
		s.Context.Preferences[domain.PrefName] = "Ana"
		return nil
	})
	require.NoError(t, err)

	t.Run("Failed update is discarded", func(t *testing.T) {
		boom := errors.New("boom")
		err := mgr.Update(ctx, "ana", func(_ context.Context, s *domain.Session) error {
			s.Context.Preferences[domain.PrefName] = "Bob"
			s.Context.CurrentState = domain.StateScheduling
			return boom
		})
		assert.ErrorIs(t, err, boom)

		s, err := mgr.Get(ctx, "ana")
		require.NoError(t, err)
		assert.Equal(t, "Ana", s.Context.Preferences[domain.PrefName])
		assert.Equal(t, domain.StateGreeting, s.Context.CurrentState)
	})

	t.Run("Failed update does not create", func(t *testing.T) {
		_ = mgr.Update(ctx, "ghost", func(context.Context, *domain.Session) error { return context.Canceled })
		_, err := mgr.Get(ctx, "ghost")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})
}

func TestManager_AppendTurn(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	steps := []domain.ConversationState{domain.StateGreeting, domain.StateNeedsAssessment, domain.StatePropertySearch}
	for i, next := range steps {
		turn := domain.Turn{Timestamp: time.Now(), UserMessage: "m", BotMessage: "b"}
		require.NoError(t, mgr.AppendTurn(ctx, "ana", next, turn, domain.ConversationMetrics{MessageLength: i}))
	}

	s, err := mgr.Get(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, domain.StatePropertySearch, s.Context.CurrentState)
	assert.Equal(t, []domain.ConversationState{domain.StateGreeting, domain.StateGreeting, domain.StateNeedsAssessment}, s.Context.PreviousStates)
	assert.Equal(t, steps, s.Context.Flow())
	assert.Len(t, s.Metrics, 3)
	assert.Len(t, mgr.Metrics(ctx, "ana"), 3)
}

func TestManager_Locking(t *testing.T) {
	mgr := session.NewManager(SlowStore{memory.NewStore()})
	ctx := context.Background()
	id := "race-test"

	var wg sync.WaitGroup
	concurrentWrites := 20

	// Read-modify-write without the per-user lock would lose turns.
	for i := 0; i < concurrentWrites; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := mgr.AppendTurn(ctx, id, domain.StateGreeting, domain.Turn{Timestamp: time.Now()}, domain.ConversationMetrics{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := mgr.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, s.Context.InteractionHistory, concurrentWrites)
	assert.Len(t, s.Context.PreviousStates, concurrentWrites)
	assert.Len(t, s.Metrics, concurrentWrites)
}

func TestManager_EvictIdle(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	var evicted []*domain.EvictionEvent
	hooks := domain.LifecycleHooks{
		OnEviction: func(_ context.Context, e *domain.EvictionEvent) { evicted = append(evicted, e) },
	}
	mgr := session.NewManager(memory.NewStore(),
		session.WithClock(clock),
		session.WithEvictionPolicy(session.IdleTimeout(30*time.Minute)),
		session.WithHooks(hooks),
	)
	ctx := context.Background()

	require.NoError(t, mgr.AppendTurn(ctx, "stale", domain.StateGreeting, domain.Turn{Timestamp: now.Add(-time.Hour)}, domain.ConversationMetrics{}))
	require.NoError(t, mgr.AppendTurn(ctx, "fresh", domain.StateGreeting, domain.Turn{Timestamp: now.Add(-time.Minute)}, domain.ConversationMetrics{}))

	n, err := mgr.EvictIdle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	users, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, users)

	require.Len(t, evicted, 1)
	assert.Equal(t, "stale", evicted[0].UserID)
	assert.Equal(t, time.Hour, evicted[0].IdleFor)
}

func TestManager_NeverEvict(t *testing.T) {
	now := time.Now()
	mgr := session.NewManager(memory.NewStore(), session.WithClock(func() time.Time { return now.Add(24 * time.Hour) }))
	ctx := context.Background()
	require.NoError(t, mgr.AppendTurn(ctx, "ana", domain.StateGreeting, domain.Turn{Timestamp: now}, domain.ConversationMetrics{}))

	n, err := mgr.EvictIdle(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestManager_RunJanitor(t *testing.T) {
	now := time.Now()
	mgr := session.NewManager(memory.NewStore(),
		session.WithClock(func() time.Time { return now.Add(time.Hour) }),
		session.WithEvictionPolicy(session.IdleTimeout(time.Minute)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, mgr.AppendTurn(ctx, "ana", domain.StateGreeting, domain.Turn{Timestamp: now}, domain.ConversationMetrics{}))

	done := make(chan error, 1)
	go func() { done <- mgr.RunJanitor(ctx, 5*time.Millisecond) }()

	assert.Eventually(t, func() bool {
		users, _ := mgr.List(context.Background())
		return len(users) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}

	assert.Error(t, mgr.RunJanitor(context.Background(), 0))
}
