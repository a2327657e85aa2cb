package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IPampurin/ReferralTracker/pkg/db"
	"github.com/wb-go/wbf/redis"
	"github.com/wb-go/wbf/retry"
)

// LoadDataToCache загружает профили с кодами в кэш при старте
func (c *Cache) LoadDataToCache(ctx context.Context, profiles []*db.Profile) error {

	strategy := retry.Strategy{Attempts: 3, Delay: 100 * time.Millisecond, Backoff: 2}

	for _, p := range profiles {
		if p.ReferralCode == "" {
			continue
		}

		data, err := json.Marshal(p)
		if err != nil {
			c.log.Warn("ошибка маршалинга профиля при прогреве кэша", "code", p.ReferralCode, "error", err)
			continue
		}

		err = c.redis.SetWithExpirationAndRetry(ctx, strategy, keyPrefix+p.ReferralCode, data, c.ttl)
		if err != nil {
			c.log.Warn("ошибка добавления профиля при прогреве кэша", "code", p.ReferralCode, "error", err)
			continue
		}
	}

	return nil
}

// GetProfile возвращает профиль из кэша по коду (или nil, nil)
func (c *Cache) GetProfile(ctx context.Context, code string) (*db.Profile, error) {

	data, err := c.redis.Get(ctx, keyPrefix+code)
	if err != nil {
		if errors.Is(err, redis.NoMatches) {
			return nil, nil
		}
		return nil, err
	}

	var p db.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, err
	}

	return &p, nil
}

// SetProfile сохраняет профиль в кэш с внутренним TTL
func (c *Cache) SetProfile(ctx context.Context, code string, profile *db.Profile) error {

	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	return c.redis.SetWithExpiration(ctx, keyPrefix+code, data, c.ttl)
}

// Ping проверяет доступность Redis
func (c *Cache) Ping(ctx context.Context) error {

	return c.redis.Ping(ctx)
}
