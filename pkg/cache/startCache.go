package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/IPampurin/ReferralTracker/pkg/configuration"
	"github.com/IPampurin/ReferralTracker/pkg/db"
	"github.com/wb-go/wbf/logger"
	"github.com/wb-go/wbf/redis"
)

// keyPrefix отделяет ключи реферальных кодов от прочих данных в Redis
const keyPrefix = "refcode:"

// Cache хранит подключение к Redis
type Cache struct {
	redis   *redis.Client
	ttl     time.Duration
	warming time.Duration
	log     logger.Logger
}

// InitCache запускает работу с Redis и прогревает кэш недавно выданными кодами
func InitCache(ctx context.Context, profiles db.ProfileMethods, cfgCache *configuration.ConfCache, log logger.Logger) (*Cache, error) {

	options := redis.Options{
		Address:   fmt.Sprintf("%s:%d", cfgCache.HostName, cfgCache.Port),
		Password:  cfgCache.Password,
		MaxMemory: "100mb",
		Policy:    "allkeys-lru",
	}

	clientRedis, err := redis.Connect(options)
	if err != nil {
		return nil, fmt.Errorf("ошибка установки соединения с Redis: %w", err)
	}

	if err = clientRedis.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ошибка подключения к Redis: %w", err)
	}

	cache := &Cache{
		redis:   clientRedis,
		ttl:     cfgCache.TTL,
		warming: cfgCache.Warming,
		log:     log,
	}

	recent, err := profiles.GetProfilesOfPeriod(ctx, cache.warming)
	if err != nil {
		log.Warn("ошибка прогрева кэша", "error", err)
	}

	if err = cache.LoadDataToCache(ctx, recent); err != nil {
		log.Warn("ошибка прогрева кэша", "error", err)
	}

	log.Info("Кэш работает.", "warmed", len(recent))

	return cache, nil
}
