package service

import (
	"time"

	"github.com/IPampurin/ReferralTracker/pkg/db"
)

// ClickInput - данные перехода по реферальной ссылке (GET /a/:code вход)
type ClickInput struct {
	Code          string // код из пути как есть
	Destination   string // параметр u
	ChannelOrigin string // параметр channel_origin
	IdentityID    string // пусто для анонимного посетителя
	UserAgent     string
	IPAddress     string
	Referer       string
}

// ClickResult - итог обработки перехода
type ClickResult struct {
	Record      *db.Record // созданная запись Referred
	CookieValue string     // значение для Set-Cookie, пусто для авторизованного посетителя
}

// SignupInput - сигналы атрибуции при регистрации (POST /referrals/signup вход)
type SignupInput struct {
	IdentityID  string
	URLCode     string
	CookieValue string
	ManualCode  string
}

// SignupResult - ответ на регистрацию
type SignupResult struct {
	Attributed        bool       `json:"attributed"`
	AttributionMethod string     `json:"attribution_method"`
	Record            *db.Record `json:"record,omitempty"`

	// cookie была предъявлена и больше не нужна (обработана или отвергнута)
	CookieConsumed bool `json:"-"`
}

// ResponseCode - реферальный код агента (POST /agents/:agent_id/code выход)
type ResponseCode struct {
	AgentID      string    `json:"agent_id"`
	ReferralCode string    `json:"referral_code"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ResponseAnalytics - ответ для GET /analytics/:code
type ResponseAnalytics struct {
	Code              string         `json:"code"`
	AgentID           string         `json:"agent_id"`
	TotalClicks       int            `json:"total_clicks"`
	ClicksByDay       map[string]int `json:"clicks_by_day,omitempty"`
	ClicksByMonth     map[string]int `json:"clicks_by_month,omitempty"`
	ClicksByUserAgent map[string]int `json:"clicks_by_user_agent,omitempty"`
	ClicksByOrigin    map[string]int `json:"clicks_by_origin,omitempty"`
}
