package db

import (
	"context"
	"fmt"
	"time"
)

// SaveClick записывает каждый переход по реферальной ссылке
func (d *DataBase) SaveClick(ctx context.Context, c *Click) error {

	query := `INSERT INTO referral_clicks (code, clicked_at, user_agent, ip_address, referer, channel_origin)
	          VALUES ($1, $2, $3, NULLIF($4, '')::inet, $5, $6)`

	_, err := d.Pool.Exec(ctx, query, c.Code, c.ClickedAt, c.UserAgent, c.IPAddress, c.Referer, c.ChannelOrigin)
	if err != nil {
		return fmt.Errorf("ошибка добавления записи о переходе в SaveClick: %w", err)
	}

	return nil
}

// CountClicks возвращает общее число переходов по коду
func (d *DataBase) CountClicks(ctx context.Context, code string) (int, error) {

	query := `SELECT COUNT(*)
	            FROM referral_clicks
	           WHERE code = $1`

	var count int
	if err := d.Pool.QueryRow(ctx, query, code).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта переходов в CountClicks: %w", err)
	}

	return count, nil
}

// агрегация

// CountClicksByDay - группировка по дням
func (d *DataBase) CountClicksByDay(ctx context.Context, code string, from, to time.Time) (map[string]int, error) {

	query := `SELECT TO_CHAR(clicked_at, 'YYYY-MM-DD') AS day,
	                 COUNT(*) AS count
	            FROM referral_clicks
	           WHERE code = $1
	             AND clicked_at >= $2 AND clicked_at < $3
	           GROUP BY day`

	return d.countGrouped(ctx, "CountClicksByDay", query, code, from, to)
}

// CountClicksByMonth - группировка по месяцам
func (d *DataBase) CountClicksByMonth(ctx context.Context, code string, from, to time.Time) (map[string]int, error) {

	query := `SELECT TO_CHAR(clicked_at, 'YYYY-MM') AS month,
	                 COUNT(*) AS count
	            FROM referral_clicks
	           WHERE code = $1
	             AND clicked_at >= $2 AND clicked_at < $3
	           GROUP BY month`

	return d.countGrouped(ctx, "CountClicksByMonth", query, code, from, to)
}

// CountClicksByUserAgent - группировка по User-Agent
func (d *DataBase) CountClicksByUserAgent(ctx context.Context, code string) (map[string]int, error) {

	query := `SELECT COALESCE(user_agent, ''),
	                 COUNT(*) AS count
	            FROM referral_clicks
	           WHERE code = $1
	           GROUP BY 1`

	return d.countGrouped(ctx, "CountClicksByUserAgent", query, code)
}

// CountClicksByOrigin - группировка по channel_origin
func (d *DataBase) CountClicksByOrigin(ctx context.Context, code string) (map[string]int, error) {

	query := `SELECT COALESCE(channel_origin, ''),
	                 COUNT(*) AS count
	            FROM referral_clicks
	           WHERE code = $1
	           GROUP BY 1`

	return d.countGrouped(ctx, "CountClicksByOrigin", query, code)
}

// countGrouped выполняет запрос вида "ключ, количество" и собирает результат в мапу
func (d *DataBase) countGrouped(ctx context.Context, caller, query string, args ...any) (map[string]int, error) {

	rows, err := d.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка при выполнении запроса в %s: %w", caller, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	var key string
	var val int
	for rows.Next() {
		if err := rows.Scan(&key, &val); err != nil {
			return nil, fmt.Errorf("ошибка при сканировании строки запроса в %s: %w", caller, err)
		}
		counts[key] = val
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при итерации по списку записей в %s: %w", caller, err)
	}

	return counts, nil
}
