package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"mejapos/backend/internal/domain"
)

type RedisShiftReportCache struct {
	client *redis.Client
}

func NewRedisShiftReportCache(addr string, password string, db int) *RedisShiftReportCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisShiftReportCache{client: client}
}

func (c *RedisShiftReportCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisShiftReportCache) Close() error {
	return c.client.Close()
}

func (c *RedisShiftReportCache) Get(ctx context.Context, shiftID string) (*domain.ShiftReport, bool, error) {
	val, err := c.client.Get(ctx, reportKey(shiftID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var report domain.ShiftReport
	if err := json.Unmarshal([]byte(val), &report); err != nil {
		return nil, false, err
	}
	return &report, true, nil
}

func (c *RedisShiftReportCache) Set(ctx context.Context, shiftID string, report *domain.ShiftReport, ttl time.Duration) error {
	if report == nil {
		return nil
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, reportKey(shiftID), payload, ttl).Err()
}

func reportKey(shiftID string) string {
	return "zreport:" + shiftID
}
