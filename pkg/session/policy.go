package session

import (
	"time"

	"github.com/aretw0/chatflow/pkg/domain"
)

// EvictionPolicy decides whether a stored context should be dropped.
type EvictionPolicy interface {
	ShouldEvict(uc *domain.UserContext, now time.Time) bool
}

// IdleTimeout evicts contexts whose last activity is older than the duration.
type IdleTimeout time.Duration

func (d IdleTimeout) ShouldEvict(uc *domain.UserContext, now time.Time) bool {
	return d > 0 && now.Sub(uc.LastActivity) > time.Duration(d)
}

type neverEvict struct{}

func (neverEvict) ShouldEvict(*domain.UserContext, time.Time) bool { return false }

// NeverEvict keeps every context for the lifetime of the process.
var NeverEvict EvictionPolicy = neverEvict{}
