package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const recordColumns = `id, agent_id, referred_identity_id, status, attribution_method,
	                   referral_code, destination, channel_origin, created_at, updated_at, converted_at`

// CreateRecord добавляет новую запись в таблицу referral_records
func (d *DataBase) CreateRecord(ctx context.Context, r *Record) error {

	query := `INSERT INTO referral_records (id, agent_id, referred_identity_id, status, attribution_method,
	                                        referral_code, destination, channel_origin, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := d.Pool.Exec(ctx, query,
		r.ID, r.AgentID, r.ReferredIdentityID, r.Status, r.AttributionMethod,
		r.ReferralCode, r.Destination, r.ChannelOrigin, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка добавления записи в CreateRecord: %w", err)
	}

	return nil
}

// GetRecord получает запись по идентификатору
func (d *DataBase) GetRecord(ctx context.Context, id string) (*Record, error) {

	query := `SELECT ` + recordColumns + `
	            FROM referral_records
	           WHERE id = $1`

	r, err := scanRecord(d.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения записи в GetRecord: %w", err)
	}

	return r, nil
}

// GetRecordByIdentity получает последнюю запись, привязанную к пользователю
func (d *DataBase) GetRecordByIdentity(ctx context.Context, identityID string) (*Record, error) {

	query := `SELECT ` + recordColumns + `
	            FROM referral_records
	           WHERE referred_identity_id = $1
	           ORDER BY created_at DESC
	           LIMIT 1`

	r, err := scanRecord(d.Pool.QueryRow(ctx, query, identityID))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения записи в GetRecordByIdentity: %w", err)
	}

	return r, nil
}

// AttachIdentity заполняет referred_identity_id у анонимной записи и переводит её в SignedUp;
// false, если запись уже занята или не в статусе Referred
func (d *DataBase) AttachIdentity(ctx context.Context, id, identityID, method string, at time.Time) (bool, error) {

	query := `UPDATE referral_records
	             SET referred_identity_id = $2,
	                 status = $3,
	                 attribution_method = $4,
	                 updated_at = $5
	           WHERE id = $1
	             AND referred_identity_id IS NULL
	             AND status = $6`

	tag, err := d.Pool.Exec(ctx, query, id, identityID, StatusSignedUp, method, at, StatusReferred)
	if err != nil {
		return false, fmt.Errorf("ошибка привязки пользователя в AttachIdentity: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// MarkConverted переводит запись из SignedUp в Converted
func (d *DataBase) MarkConverted(ctx context.Context, id string, at time.Time) (bool, error) {

	query := `UPDATE referral_records
	             SET status = $2,
	                 converted_at = $3,
	                 updated_at = $3
	           WHERE id = $1
	             AND status = $4`

	tag, err := d.Pool.Exec(ctx, query, id, StatusConverted, at, StatusSignedUp)
	if err != nil {
		return false, fmt.Errorf("ошибка конверсии в MarkConverted: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// GetRecordsByAgent получает крайние записи агента
func (d *DataBase) GetRecordsByAgent(ctx context.Context, agentID string, limit int) ([]*Record, error) {

	query := `SELECT ` + recordColumns + `
	            FROM referral_records
	           WHERE agent_id = $1
	           ORDER BY created_at DESC
	           LIMIT $2`

	rows, err := d.Pool.Query(ctx, query, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении списка записей в GetRecordsByAgent: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка при сканировании строки в GetRecordsByAgent: %w", err)
		}
		records = append(records, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при итерации по списку записей в GetRecordsByAgent: %w", err)
	}

	return records, nil
}

// ExpireStale помечает Expired записи Referred/SignedUp, созданные раньше before
func (d *DataBase) ExpireStale(ctx context.Context, before, at time.Time) (int64, error) {

	query := `UPDATE referral_records
	             SET status = $1,
	                 updated_at = $2
	           WHERE status IN ($3, $4)
	             AND created_at < $5`

	tag, err := d.Pool.Exec(ctx, query, StatusExpired, at, StatusReferred, StatusSignedUp, before)
	if err != nil {
		return 0, fmt.Errorf("ошибка пометки устаревших записей в ExpireStale: %w", err)
	}

	return tag.RowsAffected(), nil
}

// scanRecord сканирует одну запись, отсутствие строки даёт nil, nil
func scanRecord(row pgx.Row) (*Record, error) {

	r := &Record{}
	err := row.Scan(
		&r.ID,
		&r.AgentID,
		&r.ReferredIdentityID,
		&r.Status,
		&r.AttributionMethod,
		&r.ReferralCode,
		&r.Destination,
		&r.ChannelOrigin,
		&r.CreatedAt,
		&r.UpdatedAt,
		&r.ConvertedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return r, nil
}
