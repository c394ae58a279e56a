package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"aleph/backend/pkg/logger"
)

const cacheKeyPrefix = "aleph:search:"

// CachedSearcher memoises another Searcher's results in Redis. Redis failures
// fall through to the wrapped searcher.
type CachedSearcher struct {
	next   Searcher
	rdb    goredis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedSearcher(next Searcher, rdb goredis.UniversalClient, ttl time.Duration) *CachedSearcher {
	return &CachedSearcher{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.For("search-cache"),
	}
}

func (c *CachedSearcher) Search(ctx context.Context, q Query) (*Result, error) {
	key, err := cacheKey(q)
	if err != nil {
		return c.next.Search(ctx, q)
	}

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var res Result
		if err := json.Unmarshal(raw, &res); err == nil {
			return &res, nil
		}
		c.logger.Warn("Discarding corrupt cache entry", zap.String("key", key))
	case !errors.Is(err, goredis.Nil):
		c.logger.Warn("Search cache read failed", zap.Error(err))
	}

	res, err := c.next.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(res); err == nil {
		if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("Search cache write failed", zap.Error(err))
		}
	}
	return res, nil
}

func cacheKey(q Query) (string, error) {
	payload, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return cacheKeyPrefix + hex.EncodeToString(sum[:]), nil
}
