package service

import (
	"context"

	"github.com/IPampurin/ReferralTracker/pkg/db"
	"github.com/wb-go/wbf/logger"
)

type ServiceMethods interface {
	// TrackClick асинхронно пишет переход в журнал кликов (до разбора кода)
	TrackClick(log logger.Logger, click db.Click)

	// RecordClick создаёт запись Referred по переходу и возвращает значение cookie
	RecordClick(ctx context.Context, log logger.Logger, in ClickInput) (*ClickResult, error)

	// RecordSignup атрибутирует нового пользователя
	RecordSignup(ctx context.Context, log logger.Logger, in SignupInput) (*SignupResult, error)

	// RecordConversion переводит запись в Converted
	RecordConversion(ctx context.Context, log logger.Logger, recordID string) (*db.Record, error)

	// RecordConversionForIdentity переводит в Converted запись пользователя
	RecordConversionForIdentity(ctx context.Context, log logger.Logger, identityID string) (*db.Record, error)

	// GetRecord возвращает запись по идентификатору
	GetRecord(ctx context.Context, log logger.Logger, recordID string) (*db.Record, error)

	// AgentRecords возвращает последние записи агента
	AgentRecords(ctx context.Context, log logger.Logger, agentID string, limit int) ([]*db.Record, error)

	// IssueCode выдаёт агенту реферальный код (или возвращает уже выданный)
	IssueCode(ctx context.Context, log logger.Logger, agentID string) (*ResponseCode, error)

	// CodeAnalytics возвращает агрегаты переходов по коду
	CodeAnalytics(ctx context.Context, log logger.Logger, code string) (*ResponseAnalytics, error)

	// ExpireStale помечает устаревшие записи Expired
	ExpireStale(ctx context.Context, log logger.Logger) (int64, error)
}
