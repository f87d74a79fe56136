// Package cache provides a Redis read-through cache of survey layouts and
// their rules, keyed per survey.
//
// The evaluation service loads a layout plus its full rule set on every
// request. Both change rarely, so they are cached together under one key and
// invalidated whenever either is written.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/solatis/surveylogic/internal/logging"
	"github.com/solatis/surveylogic/internal/types"
)

// Source loads a survey layout and its rules from durable storage.
type Source interface {
	LoadSurveyRules(ctx context.Context, surveyID types.SurveyID) (*types.Survey, []types.ConditionalRule, error)
}

// Client is the subset of redis.Cmdable the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// entry is the cached document for one survey.
type entry struct {
	Survey *types.Survey           `json:"survey"`
	Rules  []types.ConditionalRule `json:"rules"`
}

// RuleCache serves LoadSurveyRules from Redis, falling back to Source on a miss.
// Redis failures degrade to uncached reads; they never fail a request.
type RuleCache struct {
	client Client
	source Source
	ttl    time.Duration
	logger *slog.Logger
}

// NewRuleCache creates a read-through cache in front of source.
func NewRuleCache(client Client, source Source, ttl time.Duration, logger *slog.Logger) *RuleCache {
	if logger == nil {
		logger = logging.Discard()
	}
	return &RuleCache{
		client: client,
		source: source,
		ttl:    ttl,
		logger: logger,
	}
}

// NewClient connects to Redis from a redis:// or rediss:// URL.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to cache: %w", err)
	}
	return client, nil
}

func (c *RuleCache) key(surveyID types.SurveyID) string {
	return fmt.Sprintf("surveylogic:rules:%s", surveyID)
}

// LoadSurveyRules returns the cached layout and rules for surveyID, loading
// and caching them from the source on a miss. Source errors are returned
// as is and nothing is cached for them.
func (c *RuleCache) LoadSurveyRules(ctx context.Context, surveyID types.SurveyID) (*types.Survey, []types.ConditionalRule, error) {
	data, err := c.client.Get(ctx, c.key(surveyID)).Bytes()
	switch {
	case err == nil:
		var e entry
		if err := json.Unmarshal(data, &e); err == nil && e.Survey != nil {
			return e.Survey, e.Rules, nil
		}
		c.logger.Warn("discarding corrupt cache entry", "survey_id", surveyID)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("cache read failed", "survey_id", surveyID, "error", err)
	}

	survey, set, err := c.source.LoadSurveyRules(ctx, surveyID)
	if err != nil {
		return nil, nil, err
	}

	data, err = json.Marshal(entry{Survey: survey, Rules: set})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, c.key(surveyID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "survey_id", surveyID, "error", err)
	}
	return survey, set, nil
}

// Invalidate drops the cached entry for surveyID.
func (c *RuleCache) Invalidate(ctx context.Context, surveyID types.SurveyID) error {
	if err := c.client.Del(ctx, c.key(surveyID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate survey %s: %w", surveyID, err)
	}
	return nil
}
