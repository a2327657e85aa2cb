package service

import (
	"context"
	"fmt"

	"github.com/wb-go/wbf/logger"
)

// CodeAnalytics возвращает агрегаты переходов по коду
// (по дням и месяцам за последний год, по User-Agent и каналу за всё время);
// неизвестный код - nil, nil
func (s *Service) CodeAnalytics(ctx context.Context, log logger.Logger, code string) (*ResponseAnalytics, error) {

	if err := s.codes.CheckFormat(code); err != nil {
		return nil, err
	}

	p, err := s.profiles.GetProfileByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if p == nil {
		log.Ctx(ctx).Info("код не найден при запросе аналитики", "code", code)
		return nil, nil
	}

	total, err := s.clicks.CountClicks(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	to := s.clock.Now()
	from := to.AddDate(-1, 0, 0)

	// агрегаты не фатальны, при ошибке оставляем пустыми
	byDay, err := s.clicks.CountClicksByDay(ctx, code, from, to)
	if err != nil {
		log.Ctx(ctx).Error("ошибка агрегации по дням", "error", err)
	}
	byMonth, err := s.clicks.CountClicksByMonth(ctx, code, from, to)
	if err != nil {
		log.Ctx(ctx).Error("ошибка агрегации по месяцам", "error", err)
	}
	byUA, err := s.clicks.CountClicksByUserAgent(ctx, code)
	if err != nil {
		log.Ctx(ctx).Error("ошибка агрегации по user-agent", "error", err)
	}
	byOrigin, err := s.clicks.CountClicksByOrigin(ctx, code)
	if err != nil {
		log.Ctx(ctx).Error("ошибка агрегации по каналу", "error", err)
	}

	log.Ctx(ctx).Info("аналитика по коду получена", "code", code, "clicks_count", total)

	return &ResponseAnalytics{
		Code:              code,
		AgentID:           p.ID,
		TotalClicks:       total,
		ClicksByDay:       byDay,
		ClicksByMonth:     byMonth,
		ClicksByUserAgent: byUA,
		ClicksByOrigin:    byOrigin,
	}, nil
}
