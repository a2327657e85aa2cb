package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrCodeTaken - код уже выдан другому профилю
var ErrCodeTaken = errors.New("реферальный код уже занят")

// uniqueViolation - код ошибки PostgreSQL при нарушении уникальности
const uniqueViolation = "23505"

const profileColumns = `id, COALESCE(referral_code, ''), created_at, COALESCE(code_issued_at, created_at)`

// GetProfileByCode получает профиль по реферальному коду (точное совпадение, с учётом регистра)
func (d *DataBase) GetProfileByCode(ctx context.Context, code string) (*Profile, error) {

	query := `SELECT ` + profileColumns + `
	            FROM profiles
	           WHERE referral_code = $1`

	p, err := scanProfile(d.Pool.QueryRow(ctx, query, code))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения профиля в GetProfileByCode: %w", err)
	}

	return p, nil
}

// GetProfileByID получает профиль по идентификатору
func (d *DataBase) GetProfileByID(ctx context.Context, id string) (*Profile, error) {

	query := `SELECT ` + profileColumns + `
	            FROM profiles
	           WHERE id = $1`

	p, err := scanProfile(d.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения профиля в GetProfileByID: %w", err)
	}

	return p, nil
}

// AssignCode создаёт профиль или выдаёт код существующему;
// уже выданный код не перезаписывается
func (d *DataBase) AssignCode(ctx context.Context, agentID, code string) (*Profile, error) {

	query := `INSERT INTO profiles (id, referral_code, created_at, code_issued_at)
	          VALUES ($1, $2, NOW(), NOW())
	              ON CONFLICT (id) DO UPDATE
	             SET referral_code = COALESCE(profiles.referral_code, EXCLUDED.referral_code),
	                 code_issued_at = COALESCE(profiles.code_issued_at, EXCLUDED.code_issued_at)
	       RETURNING ` + profileColumns

	p, err := scanProfile(d.Pool.QueryRow(ctx, query, agentID, code))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrCodeTaken
		}
		return nil, fmt.Errorf("ошибка выдачи кода в AssignCode: %w", err)
	}

	return p, nil
}

// GetProfilesOfPeriod возвращает профили, получившие код за крайний period времени
func (d *DataBase) GetProfilesOfPeriod(ctx context.Context, period time.Duration) ([]*Profile, error) {

	threshold := time.Now().Add(-period)

	query := `SELECT ` + profileColumns + `
	            FROM profiles
	           WHERE referral_code IS NOT NULL
	             AND code_issued_at >= $1`

	rows, err := d.Pool.Query(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении списка профилей в GetProfilesOfPeriod: %w", err)
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.ReferralCode, &p.CreatedAt, &p.CodeIssuedAt); err != nil {
			return nil, fmt.Errorf("ошибка при сканировании строки в GetProfilesOfPeriod: %w", err)
		}
		profiles = append(profiles, &p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при итерации по списку профилей в GetProfilesOfPeriod: %w", err)
	}

	return profiles, nil
}

// scanProfile сканирует одну строку профиля, отсутствие строки даёт nil, nil
func scanProfile(row pgx.Row) (*Profile, error) {

	p := &Profile{}
	err := row.Scan(&p.ID, &p.ReferralCode, &p.CreatedAt, &p.CodeIssuedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return p, nil
}
