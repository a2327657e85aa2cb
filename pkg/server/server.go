package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/IPampurin/ReferralTracker/pkg/api"
	"github.com/IPampurin/ReferralTracker/pkg/configuration"
	"github.com/IPampurin/ReferralTracker/pkg/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/logger"
)

// Pinger - зависимость, доступность которой проверяет /readyz
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewEngine создаёт движок Gin со всеми маршрутами
// (readiness - именованные проверки, nil-значения пропускаются)
func NewEngine(cfg *configuration.Config, svc service.ServiceMethods, readiness map[string]Pinger, log logger.Logger) http.Handler {

	// создаём движок Gin через обёртку ginext
	engine := ginext.New(cfg.Server.GinMode)

	// добавляем middleware (логгер и восстановление)
	engine.Use(ginext.Logger(), ginext.Recovery())

	// структурное логирование запросов
	engine.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.LogRequest(c.Request.Context(), c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	})

	// определяем авторизованного посетителя (без токена - аноним)
	engine.Use(api.Identity(cfg.Referral.JWTSecret, log))

	cookies := api.NewCookieSettings(cfg)

	// проверки доступа: регистрация - владелец токена, данные агента - сам агент,
	// конверсии, очистка и аудит записей - служебные клиенты
	authed := api.RequireIdentity(log)
	agent := api.RequireAgent(log)
	operator := api.RequireOperator(log)

	// регистрируем эндпоинты
	engine.GET("/a/:code", api.Click(svc, cookies, cfg.Referral.ErrorPath, log))     // переход по реферальной ссылке
	engine.POST("/referrals/signup", authed, api.Signup(svc, cookies, log))          // атрибуция при регистрации
	engine.POST("/referrals/conversions", operator, api.ConvertByIdentity(svc, log)) // конверсия по пользователю
	engine.POST("/referrals/expire", operator, api.Expire(svc, log))                 // очистка устаревших записей
	engine.POST("/referrals/:id/convert", operator, api.Convert(svc, log))           // конверсия записи
	engine.GET("/referrals/:id", operator, api.GetRecord(svc, log))                  // запись для аудита
	engine.GET("/agents/:agent_id/referrals", agent, api.AgentRecords(svc, log))     // записи агента
	engine.POST("/agents/:agent_id/code", agent, api.IssueCode(svc, log))            // выдача реферального кода
	engine.GET("/analytics/:code", api.GetAnalytics(svc, log))                       // аналитика переходов по коду
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))                            // метрики прометеуса
	engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	engine.GET("/readyz", readyHandler(readiness, log))

	return engine
}

// readyHandler пингует зависимости и отвечает 503, если хоть одна недоступна
func readyHandler(readiness map[string]Pinger, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status, code := gin.H{}, http.StatusOK
		for name, p := range readiness {
			if p == nil {
				status[name] = "disabled"
				continue
			}
			if err := p.Ping(ctx); err != nil {
				log.Ctx(ctx).Warn("зависимость недоступна", "dependency", name, "error", err)
				status[name] = "unavailable"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}

		c.JSON(code, status)
	}
}

// Run запускает HTTP-сервер и останавливает его при отмене контекста
func Run(ctx context.Context, cfgServer *configuration.ConfServer, handler http.Handler, log logger.Logger) error {

	// формируем адрес запуска
	addr := fmt.Sprintf("%s:%d", cfgServer.HostName, cfgServer.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// канал для ошибок от сервера
	errCh := make(chan error, 1)

	// запускаем сервер в горутине
	go func() {
		log.Info("запуск HTTP-сервера", "address", addr)
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// ожидаем либо сигнала от контекста, либо ошибки запуска
	select {
	case <-ctx.Done():
		log.Info("получен сигнал завершения, останавливаем сервер...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("ошибка при graceful shutdown", "error", err)
			return err
		}
		log.Info("сервер корректно остановлен")
		return nil

	case err := <-errCh:
		log.Error("сервер завершился с ошибкой", "error", err)
		return err
	}
}
