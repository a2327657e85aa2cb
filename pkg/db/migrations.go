package db

import (
	"context"
	"fmt"
)

const (
	profilesSchema = `CREATE TABLE IF NOT EXISTS profiles (
	                      id TEXT PRIMARY KEY,
	           referral_code TEXT UNIQUE,
	              created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	          code_issued_at TIMESTAMPTZ);

	    CREATE INDEX IF NOT EXISTS idx_profiles_code_issued_at ON profiles(code_issued_at);`

	recordsSchema = `CREATE TABLE IF NOT EXISTS referral_records (
	                      id TEXT PRIMARY KEY,
	                agent_id TEXT NOT NULL,
	    referred_identity_id TEXT,
	                  status VARCHAR(16) NOT NULL DEFAULT 'Referred',
	      attribution_method VARCHAR(16) NOT NULL DEFAULT 'none',
	           referral_code TEXT NOT NULL DEFAULT '',
	             destination TEXT NOT NULL DEFAULT '',
	          channel_origin TEXT NOT NULL DEFAULT '',
	              created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	              updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	            converted_at TIMESTAMPTZ);

	    CREATE INDEX IF NOT EXISTS idx_records_agent_id ON referral_records(agent_id, created_at);
	    CREATE INDEX IF NOT EXISTS idx_records_identity ON referral_records(referred_identity_id);
	    CREATE INDEX IF NOT EXISTS idx_records_status_created ON referral_records(status, created_at);`

	clicksSchema = `CREATE TABLE IF NOT EXISTS referral_clicks (
	                      id SERIAL PRIMARY KEY,
	                    code TEXT NOT NULL,
	              clicked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	              user_agent TEXT,
	              ip_address INET,
	                 referer TEXT,
	          channel_origin TEXT);

	    CREATE INDEX IF NOT EXISTS idx_clicks_code_clicked_at ON referral_clicks(code, clicked_at);`
)

// Migration создаёт таблицы profiles, referral_records и referral_clicks, если их ещё нет
func (d *DataBase) Migration(ctx context.Context) error {

	schemas := []struct {
		name  string
		query string
	}{
		{"profiles", profilesSchema},
		{"referral_records", recordsSchema},
		{"referral_clicks", clicksSchema},
	}

	for _, s := range schemas {
		if _, err := d.Pool.Exec(ctx, s.query); err != nil {
			return fmt.Errorf("ошибка создания таблицы %s: %w", s.name, err)
		}
	}

	return nil
}
