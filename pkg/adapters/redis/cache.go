package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultCacheTTL bounds how long a completion is reused.
const DefaultCacheTTL = 10 * time.Minute

var (
	_ ports.CompletionService = (*CompletionCache)(nil)
	_ ports.ModelNamer        = (*CompletionCache)(nil)
)

// CompletionCache is a read-through cache in front of a ports.CompletionService.
// Only successful answers that carry a confidence are cached.
// Cache failures are logged and never fail the call.
type CompletionCache struct {
	next   ports.CompletionService
	client *backend.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

type CacheOption func(*CompletionCache)

// WithCacheTTL sets the expiration of cached answers.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *CompletionCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCachePrefix sets the key prefix.
func WithCachePrefix(prefix string) CacheOption {
	return func(c *CompletionCache) {
		c.prefix = prefix
	}
}

// WithCacheLogger sets the structured logger.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *CompletionCache) {
		c.logger = logger
	}
}

// NewCompletionCache wraps next.
func NewCompletionCache(client *backend.Client, next ports.CompletionService, opts ...CacheOption) *CompletionCache {
	c := &CompletionCache{
		next:   next,
		client: client,
		prefix: DefaultPrefix,
		ttl:    DefaultCacheTTL,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model reports the wrapped service's model, if it has one.
func (c *CompletionCache) Model() string {
	if namer, ok := c.next.(ports.ModelNamer); ok {
		return namer.Model()
	}
	return ""
}

func (c *CompletionCache) key(req ports.CompletionRequest) (string, error) {
	// encoding/json sorts map keys, so equal requests hash equally.
	raw, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return c.prefix + "completion:" + hex.EncodeToString(sum[:]), nil
}

// Complete serves req from the cache, or calls the wrapped service and stores its answer.
func (c *CompletionCache) Complete(ctx context.Context, req ports.CompletionRequest) (ports.CompletionResponse, error) {
	key, err := c.key(req)
	if err != nil {
		return c.next.Complete(ctx, req)
	}

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var cached ports.CompletionResponse
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		c.logger.Warn("discarding corrupt cache entry", "key", key)
	} else if !errors.Is(err, backend.Nil) {
		c.logger.Warn("completion cache read failed", "error", err)
	}

	resp, err := c.next.Complete(ctx, req)
	if err != nil {
		return resp, err
	}
	if resp.Confidence == nil {
		return resp, nil
	}

	if raw, err := json.Marshal(resp); err == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("completion cache write failed", "error", fmt.Errorf("set %s: %w", key, err))
		}
	}
	return resp, nil
}
