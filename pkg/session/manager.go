package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/google/uuid"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.ContextStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	policy EvictionPolicy
	hooks  domain.LifecycleHooks
	now    func() time.Time
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithEvictionPolicy sets the policy used by EvictIdle (default: NeverEvict).
func WithEvictionPolicy(p EvictionPolicy) Option {
	return func(m *Manager) {
		if p != nil {
			m.policy = p
		}
	}
}

// WithHooks registers the OnEviction hook.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a new Session Manager with the given store.
func NewManager(store ports.ContextStore, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		locks:  make(map[string]*lockEntry),
		policy: NeverEvict,
		now:    time.Now,
		logger: logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(userID) after unlocking.
func (m *Manager) acquire(userID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[userID]
	if !exists {
		entry = &lockEntry{}
		m.locks[userID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[userID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, userID)
	}
}

// WithLock executes fn while holding the lock of userID.
func (m *Manager) WithLock(ctx context.Context, userID string, fn func(context.Context) error) error {
	if userID == "" {
		return domain.ErrEmptyUserID
	}
	entry := m.acquire(userID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(userID)
	}()
	return fn(ctx)
}

// Get returns a copy of the user's session, or domain.ErrSessionNotFound.
func (m *Manager) Get(ctx context.Context, userID string) (*domain.Session, error) {
	var s *domain.Session
	err := m.WithLock(ctx, userID, func(ctx context.Context) error {
		var err error
		s, err = m.store.Load(ctx, userID)
		return err
	})
	return s, err
}

// LoadOrCreate returns the user's session, creating and persisting a fresh one
// in the initial state when none exists.
func (m *Manager) LoadOrCreate(ctx context.Context, userID string) (*domain.Session, error) {
	var s *domain.Session
	err := m.WithLock(ctx, userID, func(ctx context.Context) error {
		var created bool
		var err error
		s, created, err = m.loadOrNew(ctx, userID)
		if err != nil || !created {
			return err
		}
		if err := m.store.Save(ctx, userID, s); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		return nil
	})
	return s, err
}

func (m *Manager) loadOrNew(ctx context.Context, userID string) (*domain.Session, bool, error) {
	s, err := m.store.Load(ctx, userID)
	if err == nil {
		return s, false, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, false, fmt.Errorf("failed to check session existence: %w", err)
	}
	m.logger.Debug("creating session", "user_id", userID)
	return &domain.Session{Context: domain.NewUserContext(userID, uuid.NewString(), m.now())}, true, nil
}

// Update runs fn on a working copy of the user's session (created if missing)
// while holding the user's lock. The copy is saved only when fn returns nil,
// so a failed or cancelled update leaves the stored session untouched.
func (m *Manager) Update(ctx context.Context, userID string, fn func(context.Context, *domain.Session) error) error {
	return m.WithLock(ctx, userID, func(ctx context.Context) error {
		s, _, err := m.loadOrNew(ctx, userID)
		if err != nil {
			return err
		}
		if err := fn(ctx, s); err != nil {
			return err
		}
		if err := m.store.Save(ctx, userID, s); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	})
}

// AppendTurn commits one turn for userID.
func (m *Manager) AppendTurn(ctx context.Context, userID string, next domain.ConversationState, turn domain.Turn, metrics domain.ConversationMetrics) error {
	return m.Update(ctx, userID, func(_ context.Context, s *domain.Session) error {
		s.Record(next, turn, metrics)
		return nil
	})
}

// Metrics returns the per-turn metrics of userID, oldest first, or nil.
func (m *Manager) Metrics(ctx context.Context, userID string) []domain.ConversationMetrics {
	s, err := m.Get(ctx, userID)
	if err != nil {
		return nil
	}
	return s.Metrics
}

// Evict removes the user's session.
func (m *Manager) Evict(ctx context.Context, userID string) error {
	return m.WithLock(ctx, userID, func(ctx context.Context) error {
		return m.store.Delete(ctx, userID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying context store.
func (m *Manager) Store() ports.ContextStore {
	return m.store
}

// EvictIdle applies the eviction policy to every stored session and returns
// how many were removed.
func (m *Manager) EvictIdle(ctx context.Context) (int, error) {
	users, err := m.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	evicted := 0
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return evicted, err
		}
		err := m.WithLock(ctx, userID, func(ctx context.Context) error {
			s, err := m.store.Load(ctx, userID)
			if err != nil {
				if errors.Is(err, domain.ErrSessionNotFound) {
					return nil
				}
				return err
			}
			now := m.now()
			if !m.policy.ShouldEvict(s.Context, now) {
				return nil
			}
			if err := m.store.Delete(ctx, userID); err != nil {
				return err
			}
			evicted++
			if m.hooks.OnEviction != nil {
				m.hooks.OnEviction(ctx, &domain.EvictionEvent{
					EventBase: domain.EventBase{Timestamp: now, Type: domain.EventEviction, UserID: userID},
					IdleFor:   now.Sub(s.Context.LastActivity),
				})
			}
			return nil
		})
		if err != nil {
			m.logger.Warn("eviction failed", "user_id", userID, "err", err)
		}
	}
	return evicted, nil
}

// RunJanitor calls EvictIdle every interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("janitor interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := m.EvictIdle(ctx)
			if err != nil && ctx.Err() == nil {
				m.logger.Warn("janitor pass failed", "err", err)
			}
			if n > 0 {
				m.logger.Info("evicted idle sessions", "count", n)
			}
		}
	}
}
