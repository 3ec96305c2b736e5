package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
)

var _ domain.LocalCheckinStore = (*RedisCheckinCache)(nil)

// RedisCheckinCache is the server-side local tier: one hash per user, one
// field per day. Reads never fail; corrupt fields are deleted on sight.
type RedisCheckinCache struct {
	cache *redis.Client
}

func NewRedisCheckinCache(cache *redis.Client) *RedisCheckinCache {
	return &RedisCheckinCache{cache: cache}
}

func (c *RedisCheckinCache) cacheKey(userID string) string {
	return fmt.Sprintf("checkins:%s", userID)
}

// GetLocalRecords reads the whole hash and filters by range. The hash holds at
// most one field per tracked day, so its size does not depend on the range asked for.
func (c *RedisCheckinCache) GetLocalRecords(ctx context.Context, userID string, r domain.DateRange) []domain.CheckinRecord {
	key := c.cacheKey(userID)
	records := []domain.CheckinRecord{}

	vals, err := c.cache.HGetAll(ctx, key).Result()
	if err != nil {
		localStoreErrors.WithLabelValues("redis").Inc()
		log.Printf("[CACHE] Redis read error for user %s: %v", userID, err)
		return records
	}

	var corrupt []string
	for field, raw := range vals {
		date, err := domain.ParseCalendarDate(field)
		if err == nil && !r.Contains(date) {
			continue
		}

		var rec domain.CheckinRecord
		if err == nil {
			rec, err = decodeRecord([]byte(raw))
		}
		if err == nil && (rec.UserID != userID || !rec.Date.Equal(date)) {
			err = fmt.Errorf("%w: key mismatch", domain.ErrCorruptRecord)
		}
		if err != nil {
			dropCorrupt("CACHE", key+"/"+field, err)
			corrupt = append(corrupt, field)
			continue
		}
		records = append(records, rec)
	}

	if len(corrupt) > 0 {
		if err := c.cache.HDel(ctx, key, corrupt...).Err(); err != nil {
			log.Printf("[CACHE] Failed to clean up corrupt fields for user %s: %v", userID, err)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
	return records
}

func (c *RedisCheckinCache) GetLocalRecord(ctx context.Context, userID string, date domain.CalendarDate) (*domain.CheckinRecord, error) {
	key := c.cacheKey(userID)

	raw, err := c.cache.HGet(ctx, key, date.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCheckinNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis read error: %w", err)
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		dropCorrupt("CACHE", key+"/"+date.String(), err)
		c.cache.HDel(ctx, key, date.String())
		return nil, domain.ErrCheckinNotFound
	}
	return &rec, nil
}

func (c *RedisCheckinCache) PutLocalRecord(ctx context.Context, record domain.CheckinRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	data, err := encodeRecord(record)
	if err != nil {
		return fmt.Errorf("failed to encode checkin: %w", err)
	}

	if err := c.cache.HSet(ctx, c.cacheKey(record.UserID), record.Date.String(), data).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// RefreshLocalRecord checks and writes under WATCH. If the hash changes in
// between, the transaction aborts and the record is reported as not written.
func (c *RedisCheckinCache) RefreshLocalRecord(ctx context.Context, record domain.CheckinRecord) (bool, error) {
	if !record.IsCommitted() {
		return false, nil
	}
	if err := record.Validate(); err != nil {
		return false, err
	}
	data, err := encodeRecord(record)
	if err != nil {
		return false, fmt.Errorf("failed to encode checkin: %w", err)
	}

	key := c.cacheKey(record.UserID)
	field := record.Date.String()
	written := false

	err = c.cache.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, field).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if cur, err := decodeRecord(raw); err == nil && !cur.ReplaceableBy(record) {
				return nil
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, field, data)
			return nil
		})
		if err == nil {
			written = true
		}
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis refresh error: %w", err)
	}
	return written, nil
}
