package service

import (
	"context"
	"time"

	"github.com/IPampurin/ReferralTracker/pkg/cache"
	"github.com/IPampurin/ReferralTracker/pkg/codec"
	"github.com/IPampurin/ReferralTracker/pkg/configuration"
	"github.com/IPampurin/ReferralTracker/pkg/db"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/logger"
)

// Options - зависимости слоя бизнес-логики
type Options struct {
	Profiles     db.ProfileMethods
	Records      db.RecordMethods
	Clicks       db.ClickMethods
	Cache        cache.CacheMethods // может быть nil
	Codec        *codec.Codec
	Clock        Clock         // по умолчанию SystemClock
	NewID        func() string // по умолчанию uuid.NewString
	Sinks        []ClickSink   // дополнительные приёмники кликов, БД добавляется всегда
	ClickTimeout time.Duration
	Retention    time.Duration
}

type Service struct {
	*AttributionRecorder

	profiles db.ProfileMethods
	clicks   db.ClickMethods
	cache    cache.CacheMethods
	codes    *CodeResolver
	clock    Clock
	tracker  *ClickTracker
}

// New собирает сервис из зависимостей
func New(opts Options) *Service {

	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.ClickTimeout <= 0 {
		opts.ClickTimeout = 5 * time.Second
	}

	codes := NewCodeResolver(opts.Profiles, opts.Cache)
	sinks := append([]ClickSink{NewStoreSink(opts.Clicks)}, opts.Sinks...)

	return &Service{
		AttributionRecorder: &AttributionRecorder{
			records:   opts.Records,
			codes:     codes,
			evidence:  NewEvidenceCollector(opts.Codec),
			priority:  NewPriorityResolver(codes, opts.Records),
			codec:     opts.Codec,
			clock:     opts.Clock,
			newID:     opts.NewID,
			retention: opts.Retention,
		},
		profiles: opts.Profiles,
		clicks:   opts.Clicks,
		cache:    opts.Cache,
		codes:    codes,
		clock:    opts.Clock,
		tracker:  NewClickTracker(opts.ClickTimeout, sinks...),
	}
}

// InitService собирает сервис поверх PostgreSQL и (необязательного) Redis
func InitService(ctx context.Context, storage *db.DataBase, c *cache.Cache, cfg *configuration.ConfReferral, sinks []ClickSink, log logger.Logger) *Service {

	opts := Options{
		Profiles:     storage, // *db.DataBase реализует ProfileMethods
		Records:      storage, // *db.DataBase реализует RecordMethods
		Clicks:       storage, // *db.DataBase реализует ClickMethods
		Codec:        codec.New(cfg.CookieSecret),
		Sinks:        sinks,
		ClickTimeout: cfg.ClickLogTimeout,
		Retention:    cfg.Retention,
	}
	// nil-указатель в интерфейсе не равен nil, поэтому кладём кэш только если он есть
	if c != nil {
		opts.Cache = c
	}

	if !opts.Codec.Signed() {
		log.Warn("реферальные cookie будут выдаваться без подписи", "error", ErrMissingSecret)
	}

	return New(opts)
}

// TrackClick передаёт переход в ClickTracker
func (s *Service) TrackClick(log logger.Logger, click db.Click) {

	if click.ClickedAt.IsZero() {
		click.ClickedAt = s.clock.Now()
	}

	s.tracker.LogClick(log, click)
}

// Wait дожидается записи всех переходов (при остановке)
func (s *Service) Wait() {

	s.tracker.Wait()
}
