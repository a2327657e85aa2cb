package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// прометеус метрики движка атрибуции
var (
	// переходы по ссылкам по исходу: recorded, invalid_code, store_error
	clicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_clicks_total",
		Help: "Количество переходов по реферальным ссылкам по исходу",
	}, []string{"outcome"})

	// регистрации по победившему источнику атрибуции (url_parameter, cookie, manual, none)
	attributionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_attributions_total",
		Help: "Количество регистраций по источнику атрибуции",
	}, []string{"method"})

	// источники разной приоритетности указывали на разных агентов
	conflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_attribution_conflicts_total",
		Help: "Количество конфликтов источников атрибуции",
	}, []string{"winner", "loser"})

	// cookie не прошли проверку подписи
	cookieRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "referral_cookie_rejected_total",
		Help: "Количество реферальных cookie с неверной подписью",
	})

	// выдано cookie без подписи (деградированный режим)
	unsignedCookiesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "referral_unsigned_cookies_total",
		Help: "Количество cookie, выданных без подписи",
	})

	// ошибки записи кликов по приёмникам
	clickSinkErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_click_sink_errors_total",
		Help: "Количество ошибок записи кликов по приёмникам",
	}, []string{"sink"})

	// конверсии
	conversionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "referral_conversions_total",
		Help: "Количество конверсий реферальных записей",
	})
)
