package cache

import (
	"context"

	"github.com/IPampurin/ReferralTracker/pkg/db"
)

type CacheMethods interface {
	// GetProfile возвращает владельца кода из кэша (nil, nil при промахе)
	GetProfile(ctx context.Context, code string) (*db.Profile, error)

	// SetProfile сохраняет владельца кода с предустановленным TTL
	SetProfile(ctx context.Context, code string, profile *db.Profile) error

	// LoadDataToCache выполняет прогрев кэша переданным списком профилей
	LoadDataToCache(ctx context.Context, profiles []*db.Profile) error

	// Ping проверяет доступность Redis
	Ping(ctx context.Context) error
}
