package service

import (
	"context"
	"sync"
	"time"

	"github.com/IPampurin/ReferralTracker/pkg/db"
	"github.com/wb-go/wbf/logger"
)

// ClickSink - приёмник событий перехода (БД, брокер сообщений)
type ClickSink interface {
	Name() string
	Publish(ctx context.Context, click *db.Click) error
}

// storeSink пишет переходы в таблицу referral_clicks
type storeSink struct {
	clicks db.ClickMethods
}

// NewStoreSink возвращает приёмник, сохраняющий переходы в БД
func NewStoreSink(clicks db.ClickMethods) ClickSink {

	return &storeSink{clicks: clicks}
}

func (s *storeSink) Name() string { return "postgres" }

func (s *storeSink) Publish(ctx context.Context, click *db.Click) error {

	return s.clicks.SaveClick(ctx, click)
}

// ClickTracker асинхронно пишет каждый переход во все приёмники,
// ошибки только логируются и на ответ посетителю не влияют
type ClickTracker struct {
	sinks   []ClickSink
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewClickTracker создаёт трекер с таймаутом на одну запись
func NewClickTracker(timeout time.Duration, sinks ...ClickSink) *ClickTracker {

	return &ClickTracker{sinks: sinks, timeout: timeout}
}

// LogClick запускает запись перехода в отдельной горутине и сразу возвращает управление
func (t *ClickTracker) LogClick(log logger.Logger, click db.Click) {

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		// контекст запроса к этому моменту уже может быть отменён
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()

		for _, sink := range t.sinks {
			c := click
			if err := sink.Publish(ctx, &c); err != nil {
				clickSinkErrorsTotal.WithLabelValues(sink.Name()).Inc()
				log.Ctx(ctx).Error("ошибка записи перехода", "sink", sink.Name(), "code", click.Code, "error", err)
				continue
			}
			log.Ctx(ctx).Debug("переход записан", "sink", sink.Name(), "code", click.Code)
		}
	}()
}

// Wait дожидается завершения всех запущенных записей
func (t *ClickTracker) Wait() {

	t.wg.Wait()
}
