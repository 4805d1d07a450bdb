package docs

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "leadsync:docs:"

type cachedService struct {
	inner Service
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedService wraps a docs service with a redis read-through cache.
// Only non-empty documents are cached, and cache failures degrade to a
// direct fetch.
func NewCachedService(inner Service, redisClient *redis.Client, ttl time.Duration) Service {
	return &cachedService{inner: inner, redis: redisClient, ttl: ttl}
}

func (s *cachedService) FetchPlainText(ctx context.Context, documentID string) (string, error) {
	key := cacheKeyPrefix + documentID
	cached, err := s.redis.Get(ctx, key).Result()
	if err == nil && cached != "" {
		return cached, nil
	}
	if err != nil && err != redis.Nil {
		slog.WarnContext(ctx, "docs cache read failed", "error", err, "document_id", documentID)
	}

	text, err := s.inner.FetchPlainText(ctx, documentID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) != "" {
		if err := s.redis.Set(ctx, key, text, s.ttl).Err(); err != nil {
			slog.WarnContext(ctx, "docs cache write failed", "error", err, "document_id", documentID)
		}
	}
	return text, nil
}
