package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IPampurin/ReferralTracker/pkg/codec"
	"github.com/IPampurin/ReferralTracker/pkg/db"
	"github.com/wb-go/wbf/logger"
)

// agentRecordsLimit - сколько последних записей агента отдаём по умолчанию
const agentRecordsLimit = 50

// AttributionRecorder создаёт и переводит по статусам реферальные записи
type AttributionRecorder struct {
	records   db.RecordMethods
	codes     *CodeResolver
	evidence  *EvidenceCollector
	priority  *PriorityResolver
	codec     *codec.Codec
	clock     Clock
	newID     func() string
	retention time.Duration
}

// RecordClick создаёт запись Referred для перехода по ссылке;
// анонимному посетителю возвращает значение cookie, авторизованному сразу проставляет пользователя
func (r *AttributionRecorder) RecordClick(ctx context.Context, log logger.Logger, in ClickInput) (*ClickResult, error) {

	ctx, span := tracer.Start(ctx, "AttributionRecorder.RecordClick")
	defer span.End()

	// собираем код из URL
	ev := r.evidence.CollectClick(in.Code)

	// распознаём код, невалидный код записи не порождает
	agentID, err := r.codes.Resolve(ctx, log, ev.URLCode)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			clicksTotal.WithLabelValues("store_error").Inc()
		} else {
			clicksTotal.WithLabelValues("invalid_code").Inc()
		}
		return nil, err
	}

	// формируем запись Referred
	now := r.clock.Now()
	rec := &db.Record{
		ID:                r.newID(),
		AgentID:           agentID,
		Status:            db.StatusReferred,
		AttributionMethod: db.MethodURL,
		ReferralCode:      ev.URLCode,
		Destination:       in.Destination,
		ChannelOrigin:     in.ChannelOrigin,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	// авторизованного посетителя привязываем сразу
	if in.IdentityID != "" {
		identity := in.IdentityID
		rec.ReferredIdentityID = &identity
	}

	// сохраняем запись в БД
	if err := r.records.CreateRecord(ctx, rec); err != nil {
		clicksTotal.WithLabelValues("store_error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	clicksTotal.WithLabelValues("recorded").Inc()

	// анонимному посетителю выдаём подписанное значение cookie
	result := &ClickResult{Record: rec}
	if in.IdentityID == "" {
		result.CookieValue = r.codec.Sign(rec.ID)
		if !r.codec.Signed() {
			unsignedCookiesTotal.Inc()
			log.Ctx(ctx).Warn("реферальная cookie выдана без подписи", "record_id", rec.ID)
		}
	}

	log.Ctx(ctx).Info("переход по реферальной ссылке записан",
		"record_id", rec.ID,
		"agent_id", agentID,
		"authenticated", in.IdentityID != "")

	return result, nil
}

// RecordSignup привязывает нового пользователя к агенту по победившему источнику;
// без атрибуции запись не создаётся
func (r *AttributionRecorder) RecordSignup(ctx context.Context, log logger.Logger, in SignupInput) (*SignupResult, error) {

	ctx, span := tracer.Start(ctx, "AttributionRecorder.RecordSignup")
	defer span.End()

	if in.IdentityID == "" {
		return nil, ErrIdentityRequired
	}

	// собираем источники, cookie с неверной подписью отбрасывается
	ev, rejected := r.evidence.CollectSignup(in.URLCode, in.CookieValue, in.ManualCode)
	if rejected {
		log.Ctx(ctx).Warn("реферальная cookie отвергнута", "error", ErrSignatureInvalid, "identity_id", in.IdentityID)
	}
	consumed := in.CookieValue != ""

	// повторная регистрация того же пользователя ничего не меняет
	existing, err := r.records.GetRecordByIdentity(ctx, in.IdentityID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if existing != nil && existing.Status != db.StatusExpired {
		log.Ctx(ctx).Info("пользователь уже атрибутирован", "identity_id", in.IdentityID, "record_id", existing.ID)
		return &SignupResult{
			Attributed:        true,
			AttributionMethod: existing.AttributionMethod,
			Record:            existing,
			CookieConsumed:    consumed,
		}, nil
	}

	// выбираем победивший источник
	att := r.priority.Resolve(ctx, log, ev)
	attributionsTotal.WithLabelValues(att.Method).Inc()

	if att.AgentID == "" {
		log.Ctx(ctx).Info("регистрация без атрибуции", "identity_id", in.IdentityID)
		return &SignupResult{AttributionMethod: db.MethodNone, CookieConsumed: consumed}, nil
	}

	now := r.clock.Now()

	// незанятую запись из cookie того же агента дополняем, а не плодим новую
	if cr := att.cookieRecord; cr != nil && cr.AgentID == att.AgentID &&
		cr.ReferredIdentityID == nil && cr.Status == db.StatusReferred {

		ok, err := r.records.AttachIdentity(ctx, cr.ID, in.IdentityID, att.Method, now)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		if ok {
			rec, err := r.records.GetRecord(ctx, cr.ID)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
			}
			if rec != nil {
				log.Ctx(ctx).Info("реферальная запись дополнена при регистрации",
					"record_id", rec.ID, "agent_id", rec.AgentID, "method", att.Method)
				return &SignupResult{Attributed: true, AttributionMethod: att.Method, Record: rec, CookieConsumed: consumed}, nil
			}
		}
		// запись заняли параллельно, создаём новую
	}

	// создаём новую запись SignedUp
	identity := in.IdentityID
	rec := &db.Record{
		ID:                 r.newID(),
		AgentID:            att.AgentID,
		ReferredIdentityID: &identity,
		Status:             db.StatusSignedUp,
		AttributionMethod:  att.Method,
		ReferralCode:       att.Code,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	// при атрибуции по cookie переносим сведения о переходе
	if att.Method == db.MethodCookie && att.cookieRecord != nil {
		rec.ReferralCode = att.cookieRecord.ReferralCode
		rec.ChannelOrigin = att.cookieRecord.ChannelOrigin
		rec.Destination = att.cookieRecord.Destination
	}

	if err := r.records.CreateRecord(ctx, rec); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	log.Ctx(ctx).Info("реферальная запись создана при регистрации",
		"record_id", rec.ID, "agent_id", rec.AgentID, "method", att.Method)

	return &SignupResult{Attributed: true, AttributionMethod: att.Method, Record: rec, CookieConsumed: consumed}, nil
}

// RecordConversion переводит запись SignedUp -> Converted, повторный вызов ничего не меняет
func (r *AttributionRecorder) RecordConversion(ctx context.Context, log logger.Logger, recordID string) (*db.Record, error) {

	ctx, span := tracer.Start(ctx, "AttributionRecorder.RecordConversion")
	defer span.End()

	// получаем запись и проверяем допустимость перехода
	rec, err := r.loadRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	switch rec.Status {
	case db.StatusConverted:
		log.Ctx(ctx).Debug("запись уже сконвертирована", "record_id", rec.ID)
		return rec, nil
	case db.StatusSignedUp:
	default:
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, db.StatusConverted)
	}

	// переводим статус условным обновлением
	ok, err := r.records.MarkConverted(ctx, rec.ID, r.clock.Now())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	// перечитываем итоговое состояние
	rec, err = r.loadRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	// параллельная конверсия успела раньше
	if !ok && rec.Status != db.StatusConverted {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, db.StatusConverted)
	}
	if ok {
		conversionsTotal.Inc()
		log.Ctx(ctx).Info("конверсия записана", "record_id", rec.ID, "agent_id", rec.AgentID)
	}

	return rec, nil
}

// RecordConversionForIdentity конвертирует запись, привязанную к пользователю
func (r *AttributionRecorder) RecordConversionForIdentity(ctx context.Context, log logger.Logger, identityID string) (*db.Record, error) {

	if identityID == "" {
		return nil, ErrIdentityRequired
	}

	// ищем запись пользователя
	rec, err := r.records.GetRecordByIdentity(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if rec == nil {
		return nil, ErrRecordNotFound
	}

	return r.RecordConversion(ctx, log, rec.ID)
}

// GetRecord возвращает запись для аудита
func (r *AttributionRecorder) GetRecord(ctx context.Context, log logger.Logger, recordID string) (*db.Record, error) {

	rec, err := r.loadRecord(ctx, recordID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		log.Ctx(ctx).Error("ошибка получения записи", "record_id", recordID, "error", err)
	}

	return rec, err
}

// AgentRecords возвращает последние записи агента (limit <= 0 - значение по умолчанию)
func (r *AttributionRecorder) AgentRecords(ctx context.Context, log logger.Logger, agentID string, limit int) ([]*db.Record, error) {

	if agentID == "" {
		return nil, ErrAgentRequired
	}
	if limit <= 0 {
		limit = agentRecordsLimit
	}

	list, err := r.records.GetRecordsByAgent(ctx, agentID, limit)
	if err != nil {
		log.Ctx(ctx).Error("ошибка получения записей агента", "agent_id", agentID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	log.Ctx(ctx).Info("записи агента запрошены", "agent_id", agentID, "count", len(list))

	return list, nil
}

// ExpireStale помечает Expired записи, не сконвертированные за окно хранения
func (r *AttributionRecorder) ExpireStale(ctx context.Context, log logger.Logger) (int64, error) {

	// всё, что создано раньше границы окна, устаревает
	now := r.clock.Now()

	n, err := r.records.ExpireStale(ctx, now.Add(-r.retention), now)
	if err != nil {
		log.Ctx(ctx).Error("ошибка устаревания записей", "error", err)
		return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if n > 0 {
		log.Ctx(ctx).Info("устаревшие записи помечены", "count", n, "retention", r.retention)
	}

	return n, nil
}

// RunExpiry периодически запускает ExpireStale, пока не отменён контекст
func (r *AttributionRecorder) RunExpiry(ctx context.Context, log logger.Logger, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("очистка устаревших записей запущена", "интервал", interval)

	for {
		select {
		case <-ctx.Done():
			log.Info("очистка устаревших записей завершает работу")
			return
		case <-ticker.C:
			_, _ = r.ExpireStale(ctx, log)
		}
	}
}

// loadRecord читает запись и превращает отсутствие в ErrRecordNotFound
func (r *AttributionRecorder) loadRecord(ctx context.Context, recordID string) (*db.Record, error) {

	rec, err := r.records.GetRecord(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if rec == nil {
		return nil, ErrRecordNotFound
	}

	return rec, nil
}
