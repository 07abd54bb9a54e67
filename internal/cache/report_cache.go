// Package cache keeps recent extraction reports in Redis so repeated requests
// for the same conversation and session skip the fetch and the scan.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "shadowquery-workers/internal/common/errors"
	"shadowquery-workers/internal/common/logger"
	"shadowquery-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix = "shadowq:report"
	DefaultTTL    = time.Hour

	anonymousSession = "anonymous"
)

type ReportCache struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
	logger logger.Logger
}

func NewReportCache(client redis.Cmdable, ttl time.Duration, prefix string, log logger.Logger) *ReportCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &ReportCache{client: client, ttl: ttl, prefix: prefix, logger: log}
}

// Key returns the cache key for a session and conversation. An empty session
// handle shares the anonymous slot.
func (c *ReportCache) Key(session, conversationID string) string {
	if session == "" {
		session = anonymousSession
	}
	return fmt.Sprintf("%s:%s:%s", c.prefix, session, conversationID)
}

// Get returns the cached report. A miss is (nil, false, nil). A value that no
// longer decodes is dropped and reported as a miss.
func (c *ReportCache) Get(ctx context.Context, session, conversationID string) (*models.Report, bool, error) {
	key := c.Key(session, conversationID)

	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.NewCacheFailedError(err)
	}

	var report models.Report
	if err := json.Unmarshal([]byte(val), &report); err != nil {
		c.logger.Warn("Discarding corrupt cached report", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		c.client.Del(ctx, key)
		return nil, false, nil
	}
	return &report, true, nil
}

// Put stores report under its own conversation id.
func (c *ReportCache) Put(ctx context.Context, session string, report *models.Report) error {
	if report == nil {
		return nil
	}
	data, err := json.Marshal(report)
	if err != nil {
		return apperrors.NewCacheFailedError(fmt.Errorf("failed to marshal report: %w", err))
	}
	if err := c.client.Set(ctx, c.Key(session, report.ConversationID), data, c.ttl).Err(); err != nil {
		return apperrors.NewCacheFailedError(err)
	}
	return nil
}

// Invalidate drops the cached report, if any.
func (c *ReportCache) Invalidate(ctx context.Context, session, conversationID string) error {
	if err := c.client.Del(ctx, c.Key(session, conversationID)).Err(); err != nil {
		return apperrors.NewCacheFailedError(err)
	}
	return nil
}
