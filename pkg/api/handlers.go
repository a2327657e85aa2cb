package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/IPampurin/ReferralTracker/pkg/db"
	"github.com/IPampurin/ReferralTracker/pkg/service"
	"github.com/gin-gonic/gin"
	"github.com/wb-go/wbf/logger"
)

// Click обрабатывает GET /a/:code - переход по реферальной ссылке, всегда 302
func Click(svc service.ServiceMethods, cs CookieSettings, errorPath string, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {

		ctx := c.Request.Context()
		code := c.Param("code")

		// журнал кликов пишется всегда, даже для невалидного кода
		svc.TrackClick(log, db.Click{
			Code:          code,
			UserAgent:     c.GetHeader("User-Agent"),
			IPAddress:     c.ClientIP(),
			Referer:       c.GetHeader("Referer"),
			ChannelOrigin: c.Query("channel_origin"),
		})

		res, err := svc.RecordClick(ctx, log, service.ClickInput{
			Code:          code,
			Destination:   c.Query("u"),
			ChannelOrigin: c.Query("channel_origin"),
			IdentityID:    VisitorIdentity(c),
			UserAgent:     c.GetHeader("User-Agent"),
			IPAddress:     c.ClientIP(),
			Referer:       c.GetHeader("Referer"),
		})
		switch {
		case errors.Is(err, service.ErrCodeMalformed), errors.Is(err, service.ErrCodeNotFound):
			log.Ctx(ctx).Info("переход по невалидному коду", "code", code, "error", err)
			c.Redirect(http.StatusFound, invalidReferralURL(errorPath))
			return
		case err != nil:
			// посетитель не должен страдать из-за хранилища
			log.Ctx(ctx).Error("ошибка записи перехода", "code", code, "error", err)
		case res.CookieValue != "":
			setReferralCookie(c, cs, res.CookieValue)
		}

		c.Redirect(http.StatusFound, safeRedirect(c.Query("redirect")))
	}
}

// Signup обрабатывает POST /referrals/signup
// (ошибки атрибуции не ломают регистрацию: ответ 200 с attributed=false)
func Signup(svc service.ServiceMethods, cs CookieSettings, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {

		ctx := c.Request.Context()

		var req SignupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Ctx(ctx).Error("неверный формат запроса", "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "неверный формат запроса"})
			return
		}

		// зарегистрированный пользователь - владелец токена
		identity := VisitorIdentity(c)
		if req.IdentityID != "" && req.IdentityID != identity {
			log.Ctx(ctx).Warn("identity_id не совпадает с токеном", "identity_id", req.IdentityID, "token_subject", identity)
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "identity_id не совпадает с токеном"})
			return
		}

		// cookie из тела важнее cookie из браузера
		cookieValue, fromJar := req.ReferralCookieID, false
		if cookieValue == "" {
			if v, err := c.Cookie(cs.Name); err == nil && v != "" {
				cookieValue, fromJar = v, true
			}
		}

		res, err := svc.RecordSignup(ctx, log, service.SignupInput{
			IdentityID:  identity,
			URLCode:     req.ReferralCodeURL,
			CookieValue: cookieValue,
			ManualCode:  req.ReferralCodeManual,
		})
		if errors.Is(err, service.ErrIdentityRequired) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "не указан identity_id"})
			return
		}
		if err != nil {
			log.Ctx(ctx).Error("ошибка атрибуции при регистрации", "identity_id", identity, "error", err)
			c.JSON(http.StatusOK, service.SignupResult{AttributionMethod: db.MethodNone})
			return
		}

		if fromJar && res.CookieConsumed {
			clearReferralCookie(c, cs)
		}

		c.JSON(http.StatusOK, res)
	}
}

// Convert обрабатывает POST /referrals/:id/convert
func Convert(svc service.ServiceMethods, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {

		rec, err := svc.RecordConversion(c.Request.Context(), log, c.Param("id"))
		if err != nil {
			writeRecordError(c, log, err)
			return
		}

		c.JSON(http.StatusOK, rec)
	}
}

// ConvertByIdentity обрабатывает POST /referrals/conversions
func ConvertByIdentity(svc service.ServiceMethods, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {

		var req ConversionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Ctx(c.Request.Context()).Error("неверный формат запроса", "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "неверный формат запроса"})
			return
		}

		rec, err := svc.RecordConversionForIdentity(c.Request.Context(), log, req.IdentityID)
		if err != nil {
			writeRecordError(c, log, err)
			return
		}

		c.JSON(http.StatusOK, rec)
	}
}

// GetRecord обрабатывает GET /referrals/:id
func GetRecord(svc service.ServiceMethods, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {

		rec, err := svc.GetRecord(c.Request.Context(), log, c.Param("id"))
		if err != nil {
			writeRecordError(c, log, err)
			return
		}

		c.JSON(http.StatusOK, rec)
	}
}

// AgentRecords обрабатывает GET /agents/:agent_id/referrals?limit=
func AgentRecords(svc service.ServiceMethods, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {

		limit := 0
		if s := c.Query("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, ErrorResponse{Error: "параметр limit должен быть положительным числом"})
				return
			}
			limit = n
		}

		list, err := svc.AgentRecords(c.Request.Context(), log, c.Param("agent_id"), limit)
		if err != nil {
			log.Ctx(c.Request.Context()).Error("ошибка получения записей агента", "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "внутренняя ошибка"})
			return
		}
		if list == nil {
			list = []*db.Record{}
		}

		c.JSON(http.StatusOK, list)
	}
}

// IssueCode обрабатывает POST /agents/:agent_id/code
func IssueCode(svc service.ServiceMethods, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {

		code, err := svc.IssueCode(c.Request.Context(), log, c.Param("agent_id"))
		if err != nil {
			log.Ctx(c.Request.Context()).Error("ошибка выдачи кода", "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "внутренняя ошибка"})
			return
		}

		c.JSON(http.StatusOK, code)
	}
}

// GetAnalytics обрабатывает GET /analytics/:code
func GetAnalytics(svc service.ServiceMethods, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {

		analytics, err := svc.CodeAnalytics(c.Request.Context(), log, c.Param("code"))
		if errors.Is(err, service.ErrCodeMalformed) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "некорректный код"})
			return
		}
		if err != nil {
			log.Ctx(c.Request.Context()).Error("ошибка получения аналитики", "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "внутренняя ошибка"})
			return
		}
		if analytics == nil {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "код не найден"})
			return
		}

		c.JSON(http.StatusOK, analytics)
	}
}

// Expire обрабатывает POST /referrals/expire
func Expire(svc service.ServiceMethods, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {

		n, err := svc.ExpireStale(c.Request.Context(), log)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "внутренняя ошибка"})
			return
		}

		c.JSON(http.StatusOK, ExpireResponse{Expired: n})
	}
}

// writeRecordError переводит ошибки работы с записью в HTTP-статусы
func writeRecordError(c *gin.Context, log logger.Logger, err error) {

	switch {
	case errors.Is(err, service.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "запись не найдена"})
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrIdentityRequired):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "не указан identity_id"})
	default:
		log.Ctx(c.Request.Context()).Error("ошибка работы с реферальной записью", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "внутренняя ошибка"})
	}
}
