package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/IPampurin/ReferralTracker/pkg/configuration"
	"github.com/gin-gonic/gin"
)

// CookieSettings - параметры реферальной cookie
type CookieSettings struct {
	Name   string
	MaxAge int  // секунды
	Secure bool // только https (в боевом окружении)
}

// NewCookieSettings собирает параметры cookie из конфигурации
func NewCookieSettings(cfg *configuration.Config) CookieSettings {

	return CookieSettings{
		Name:   cfg.Referral.CookieName,
		MaxAge: int(cfg.Referral.CookieTTL / time.Second),
		Secure: cfg.Production(),
	}
}

// setReferralCookie выставляет подписанную cookie: HttpOnly, SameSite=Lax, путь /
func setReferralCookie(c *gin.Context, cs CookieSettings, value string) {

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cs.Name, value, cs.MaxAge, "/", "", cs.Secure, true)
}

// clearReferralCookie удаляет cookie у посетителя
func clearReferralCookie(c *gin.Context, cs CookieSettings) {

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cs.Name, "", -1, "/", "", cs.Secure, true)
}

// safeRedirect пропускает только относительный путь этого же сайта, иначе "/"
func safeRedirect(target string) string {

	if target == "" || !strings.HasPrefix(target, "/") ||
		strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return "/"
	}

	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}

	return target
}

// invalidReferralURL добавляет к пути ошибки error=invalid_referral
func invalidReferralURL(errorPath string) string {

	target := safeRedirect(errorPath)
	if strings.Contains(target, "?") {
		return target + "&error=invalid_referral"
	}

	return target + "?error=invalid_referral"
}
