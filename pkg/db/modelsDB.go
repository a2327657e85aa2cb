package db

import "time"

// статусы реферальной записи
const (
	StatusReferred  = "Referred"  // был переход по ссылке
	StatusSignedUp  = "SignedUp"  // посетитель зарегистрировался
	StatusConverted = "Converted" // первое целевое действие (например, оплаченное бронирование)
	StatusExpired   = "Expired"   // не сконвертировался за окно хранения
)

// источники атрибуции, записываются навсегда для аудита
const (
	MethodURL    = "url_parameter"
	MethodCookie = "cookie"
	MethodManual = "manual"
	MethodNone   = "none"
)

// Profile представляет запись в таблице profiles (владелец реферального кода)
type Profile struct {
	ID           string    `json:"id"`            // идентификатор агента
	ReferralCode string    `json:"referral_code"` // реферальный код, пустой, пока не выдан
	CreatedAt    time.Time `json:"created_at"`    // время создания профиля
	CodeIssuedAt time.Time `json:"-"`             // время выдачи кода
}

// Record представляет запись в таблице referral_records (одна линия атрибуции)
type Record struct {
	ID                 string     `json:"id"`                             // UUID записи
	AgentID            string     `json:"agent_id"`                       // кому засчитывается реферал
	ReferredIdentityID *string    `json:"referred_identity_id,omitempty"` // зарегистрированный пользователь, nil до регистрации
	Status             string     `json:"status"`                         // Referred/SignedUp/Converted/Expired
	AttributionMethod  string     `json:"attribution_method"`             // url_parameter/cookie/manual/none
	ReferralCode       string     `json:"referral_code,omitempty"`        // код, по которому пришёл посетитель
	Destination        string     `json:"destination,omitempty"`          // параметр u из ссылки
	ChannelOrigin      string     `json:"channel_origin,omitempty"`       // метка канала
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	ConvertedAt        *time.Time `json:"converted_at,omitempty"`
}

// Click представляет запись о переходе по реферальной ссылке
type Click struct {
	ID            int       // автоинкремент
	Code          string    // код из URL как есть (даже невалидный)
	ClickedAt     time.Time // момент перехода
	UserAgent     string    // строка User-Agent
	IPAddress     string    // IP-адрес посетителя
	Referer       string    // URL источника перехода
	ChannelOrigin string    // метка channel_origin
}
