package api

// SignupRequest - сигналы атрибуции при регистрации (POST /referrals/signup вход);
// пользователь берётся из токена, identity_id в теле должен с ним совпадать
type SignupRequest struct {
	IdentityID         string `json:"identity_id"          binding:"omitempty,max=128"`
	ReferralCodeURL    string `json:"referral_code_url"    binding:"omitempty,max=64"`
	ReferralCodeManual string `json:"referral_code_manual" binding:"omitempty,max=64"`
	ReferralCookieID   string `json:"referral_cookie_id"   binding:"omitempty,max=256"`
}

// ConversionRequest - конверсия по пользователю (POST /referrals/conversions вход)
type ConversionRequest struct {
	IdentityID string `json:"identity_id" binding:"required,max=128"`
}

// ExpireResponse - итог очистки устаревших записей
type ExpireResponse struct {
	Expired int64 `json:"expired"`
}

// ErrorResponse - стандартный ответ с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}
