package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/clients/redis"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/data/repos/chat"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/dbctx"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
)

// SearchService fronts the ranked full-text queries. The canonical top-N
// query is the hot path for the digest UI, so it gets a short redis cache;
// raw searches always hit the store.
type SearchService interface {
	Messages(ctx context.Context, q chat.MessageSearchQuery) ([]chat.MessageHit, error)
	TopMessages(ctx context.Context, query string, limit int) ([]chat.MessageTopHit, error)
	TopCanonical(ctx context.Context, query string, limit int) ([]chat.CanonicalTopHit, error)
}

type searchService struct {
	raw       chat.RawMessageRepo
	canonical chat.CanonicalRepo
	cache     *redis.Service
	cacheTTL  time.Duration
	log       *logger.Logger
}

// NewSearchService accepts a nil cache; caching is then disabled.
func NewSearchService(raw chat.RawMessageRepo, canonical chat.CanonicalRepo, cache *redis.Service, cacheTTL time.Duration, log *logger.Logger) SearchService {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &searchService{
		raw:       raw,
		canonical: canonical,
		cache:     cache,
		cacheTTL:  cacheTTL,
		log:       log.With("service", "SearchService"),
	}
}

func (s *searchService) Messages(ctx context.Context, q chat.MessageSearchQuery) ([]chat.MessageHit, error) {
	return s.raw.Search(dbctx.Context{Ctx: ctx}, q)
}

func (s *searchService) TopMessages(ctx context.Context, query string, limit int) ([]chat.MessageTopHit, error) {
	return s.raw.SearchTop(dbctx.Context{Ctx: ctx}, query, limit)
}

func (s *searchService) TopCanonical(ctx context.Context, query string, limit int) ([]chat.CanonicalTopHit, error) {
	if s.cache == nil {
		return s.canonical.SearchTop(dbctx.Context{Ctx: ctx}, query, limit)
	}

	key := canonicalCacheKey(query, limit)
	var cached []chat.CanonicalTopHit
	err := s.cache.GetJSON(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, redis.ErrCacheMiss) {
		s.log.Warn("canonical search cache read failed", "error", err)
	}

	hits, err := s.canonical.SearchTop(dbctx.Context{Ctx: ctx}, query, limit)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, hits, s.cacheTTL); err != nil {
		s.log.Warn("canonical search cache write failed", "error", err)
	}
	return hits, nil
}

func canonicalCacheKey(query string, limit int) string {
	sum := sha256.Sum256([]byte(query))
	return fmt.Sprintf("search:canonical:%s:%d", hex.EncodeToString(sum[:8]), limit)
}
