package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/IPampurin/ReferralTracker/pkg/db"
	"github.com/wb-go/wbf/logger"
)

// Attribution - итог выбора источника
type Attribution struct {
	AgentID string // пусто, если никому не засчитано
	Method  string // db.Method*
	Code    string // победивший код (для url_parameter и manual)

	// запись из cookie, если её пришлось загрузить при разборе
	cookieRecord *db.Record
}

// source - один источник атрибуции в порядке убывания приоритета
type source struct {
	method  string
	value   func(Evidence) string
	resolve func(ctx context.Context, log logger.Logger, value string, att *Attribution) (string, error)
}

// PriorityResolver выбирает один источник: первый присутствующий и распознанный,
// остальные используются только как запасные и не смешиваются
type PriorityResolver struct {
	codes   *CodeResolver
	records db.RecordMethods
	sources []source
}

func NewPriorityResolver(codes *CodeResolver, records db.RecordMethods) *PriorityResolver {

	pr := &PriorityResolver{codes: codes, records: records}

	pr.sources = []source{
		{method: db.MethodURL, value: func(e Evidence) string { return e.URLCode }, resolve: pr.resolveCode},
		{method: db.MethodCookie, value: func(e Evidence) string { return e.CookieRecordID }, resolve: pr.resolveCookie},
		{method: db.MethodManual, value: func(e Evidence) string { return e.ManualCode }, resolve: pr.resolveCode},
	}

	return pr
}

// Resolve проходит источники сверху вниз; ничего не нашлось - Method=none
func (pr *PriorityResolver) Resolve(ctx context.Context, log logger.Logger, ev Evidence) Attribution {

	ctx, span := tracer.Start(ctx, "PriorityResolver.Resolve")
	defer span.End()

	att := Attribution{Method: db.MethodNone}

	winner := -1
	for i, src := range pr.sources {
		// источник не передан - переходим к следующему
		value := src.value(ev)
		if value == "" {
			continue
		}

		// не распознан или хранилище недоступно - тоже запасной путь
		agentID, err := src.resolve(ctx, log, value, &att)
		if err != nil {
			logSourceMiss(ctx, log, src.method, err)
			continue
		}

		// первый распознанный источник побеждает
		att.AgentID = agentID
		att.Method = src.method
		if src.method != db.MethodCookie {
			att.Code = value
		}
		winner = i
		break
	}

	// остальные источники только сверяем для лога и метрик
	if winner >= 0 {
		pr.reportConflicts(ctx, log, ev, winner, &att)
	}

	return att
}

// reportConflicts проверяет оставшиеся источники и пишет в лог, если они указывают на другого агента;
// на результат атрибуции не влияет
func (pr *PriorityResolver) reportConflicts(ctx context.Context, log logger.Logger, ev Evidence, winner int, att *Attribution) {

	for _, src := range pr.sources[winner+1:] {
		value := src.value(ev)
		if value == "" {
			continue
		}

		// нераспознанный источник и тот же агент конфликтом не считаются
		agentID, err := src.resolve(ctx, log, value, att)
		if err != nil || agentID == att.AgentID {
			continue
		}

		conflictsTotal.WithLabelValues(att.Method, src.method).Inc()
		log.Ctx(ctx).Warn("источники атрибуции указывают на разных агентов",
			"winner_method", att.Method,
			"winner_agent", att.AgentID,
			"other_method", src.method,
			"other_agent", agentID)
	}
}

// resolveCode распознаёт код через CodeResolver
func (pr *PriorityResolver) resolveCode(ctx context.Context, log logger.Logger, code string, _ *Attribution) (string, error) {

	return pr.codes.Resolve(ctx, log, code)
}

// resolveCookie загружает запись из cookie и возвращает её агента;
// истёкшая запись считается отсутствующей
func (pr *PriorityResolver) resolveCookie(ctx context.Context, _ logger.Logger, recordID string, att *Attribution) (string, error) {

	// запись уже загружена при основном проходе
	if att.cookieRecord != nil && att.cookieRecord.ID == recordID {
		return att.cookieRecord.AgentID, nil
	}

	// достаём запись из БД
	rec, err := pr.records.GetRecord(ctx, recordID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if rec == nil {
		return "", ErrRecordNotFound
	}

	// подписанное значение могли сохранить дольше срока жизни cookie
	if rec.Status == db.StatusExpired {
		return "", ErrRecordExpired
	}

	att.cookieRecord = rec

	return rec.AgentID, nil
}

// logSourceMiss пишет, почему источник не сработал
func logSourceMiss(ctx context.Context, log logger.Logger, method string, err error) {

	if errors.Is(err, ErrStoreUnavailable) {
		log.Ctx(ctx).Error("источник атрибуции недоступен", "method", method, "error", err)
		return
	}

	log.Ctx(ctx).Debug("источник атрибуции не распознан", "method", method, "error", err)
}
