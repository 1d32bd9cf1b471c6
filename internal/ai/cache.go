package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/julienmessagingme/educnat/internal/saisine"
)

const cacheKeyPrefix = "saisine:ai:"

// NewRedisClient connects to the Redis server at url and checks it answers
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// CachingExtractor memoizes answers in Redis keyed by a hash of the input.
// Cache failures are logged and never fail the extraction.
type CachingExtractor struct {
	next   Extractor
	client *redis.Client
	ttl    time.Duration
	model  string
	logger *zap.Logger
}

// NewCachingExtractor wraps next. model is part of every key so that
// switching models does not serve stale answers.
func NewCachingExtractor(next Extractor, client *redis.Client, ttl time.Duration, model string, logger *zap.Logger) *CachingExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingExtractor{next: next, client: client, ttl: ttl, model: model, logger: logger}
}

// ExtractFiche implements Extractor
func (c *CachingExtractor) ExtractFiche(ctx context.Context, text, sourceType string) (saisine.Fiche, error) {
	key := c.key("fiche", sourceType, text)

	var f saisine.Fiche
	if c.get(ctx, key, &f) {
		return f, nil
	}

	f, err := c.next.ExtractFiche(ctx, text, sourceType)
	if err != nil {
		return saisine.Fiche{}, err
	}
	c.set(ctx, key, f)
	return f, nil
}

// ExtractAnalyse implements Extractor
func (c *CachingExtractor) ExtractAnalyse(ctx context.Context, docs []SourceDocument) (saisine.Analyse, error) {
	if len(docs) == 0 {
		return saisine.Analyse{}, ErrNoDocuments
	}
	key := c.key("analyse", JoinDocuments(docs))

	var a saisine.Analyse
	if c.get(ctx, key, &a) {
		return a, nil
	}

	a, err := c.next.ExtractAnalyse(ctx, docs)
	if err != nil {
		return saisine.Analyse{}, err
	}
	c.set(ctx, key, a)
	return a, nil
}

func (c *CachingExtractor) key(kind string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(c.model))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return cacheKeyPrefix + kind + ":" + hex.EncodeToString(h.Sum(nil))
}

func (c *CachingExtractor) get(ctx context.Context, key string, v any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		c.logger.Warn("cache entry unreadable", zap.String("key", key), zap.Error(err))
		return false
	}
	c.logger.Debug("cache hit", zap.String("key", key))
	return true
}

func (c *CachingExtractor) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

var _ Extractor = (*CachingExtractor)(nil)
