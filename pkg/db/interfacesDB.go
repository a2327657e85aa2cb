package db

import (
	"context"
	"time"
)

// методы по таблице profiles
type ProfileMethods interface {
	// GetProfileByCode возвращает владельца кода (сравнение с учётом регистра) или nil
	GetProfileByCode(ctx context.Context, code string) (*Profile, error)

	// GetProfileByID возвращает профиль по идентификатору или nil
	GetProfileByID(ctx context.Context, id string) (*Profile, error)

	// AssignCode выдаёт код профилю, если кода ещё нет, и возвращает профиль с действующим кодом
	AssignCode(ctx context.Context, agentID, code string) (*Profile, error)

	// GetProfilesOfPeriod возвращает профили, получившие код за указанный период
	GetProfilesOfPeriod(ctx context.Context, period time.Duration) ([]*Profile, error)
}

// методы по таблице referral_records
type RecordMethods interface {
	// CreateRecord добавляет новую запись
	CreateRecord(ctx context.Context, r *Record) error

	// GetRecord возвращает запись по идентификатору или nil
	GetRecord(ctx context.Context, id string) (*Record, error)

	// GetRecordByIdentity возвращает последнюю запись, привязанную к пользователю, или nil
	GetRecordByIdentity(ctx context.Context, identityID string) (*Record, error)

	// AttachIdentity привязывает пользователя к ещё не занятой записи в статусе Referred
	AttachIdentity(ctx context.Context, id, identityID, method string, at time.Time) (bool, error)

	// MarkConverted переводит запись SignedUp -> Converted
	MarkConverted(ctx context.Context, id string, at time.Time) (bool, error)

	// GetRecordsByAgent возвращает последние записи агента
	GetRecordsByAgent(ctx context.Context, agentID string, limit int) ([]*Record, error)

	// ExpireStale помечает Expired несконвертированные записи, созданные раньше before
	ExpireStale(ctx context.Context, before, at time.Time) (int64, error)
}

// методы по таблице referral_clicks
type ClickMethods interface {
	// SaveClick сохраняет информацию о переходе
	SaveClick(ctx context.Context, c *Click) error

	// CountClicks возвращает общее число переходов по коду
	CountClicks(ctx context.Context, code string) (int, error)

	// CountClicksByDay группирует переходы по дням в заданном диапазоне
	CountClicksByDay(ctx context.Context, code string, from, to time.Time) (map[string]int, error)

	// CountClicksByMonth группирует переходы по месяцам в заданном диапазоне
	CountClicksByMonth(ctx context.Context, code string, from, to time.Time) (map[string]int, error)

	// CountClicksByUserAgent группирует переходы по User-Agent
	CountClicksByUserAgent(ctx context.Context, code string) (map[string]int, error)

	// CountClicksByOrigin группирует переходы по channel_origin
	CountClicksByOrigin(ctx context.Context, code string) (map[string]int, error)
}
