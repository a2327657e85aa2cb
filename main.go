package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/IPampurin/ReferralTracker/pkg/cache"
	"github.com/IPampurin/ReferralTracker/pkg/configuration"
	"github.com/IPampurin/ReferralTracker/pkg/db"
	"github.com/IPampurin/ReferralTracker/pkg/events"
	"github.com/IPampurin/ReferralTracker/pkg/server"
	"github.com/IPampurin/ReferralTracker/pkg/service"
	"github.com/IPampurin/ReferralTracker/pkg/tracing"
	"github.com/wb-go/wbf/logger"
)

func main() {

	// cоздаём контекст
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// запускаем горутину обработки сигналов
	go signalHandler(ctx, cancel)

	// считываем .env файл
	cfg, err := configuration.ReadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// настраиваем логгер
	appLogger, err := logger.InitLogger(
		logger.ZapEngine,
		"ReferralTracker",
		cfg.Server.AppEnv,
		logger.WithLevel(logger.InfoLevel),
	)
	if err != nil {
		log.Fatalf("Ошибка создания логгера: %v", err)
	}

	// без секрета cookie нельзя подписать: в строгом режиме не стартуем
	if cfg.Referral.CookieSecret == "" && cfg.Referral.StrictSecret {
		appLogger.Error("запуск невозможен", "error", service.ErrMissingSecret)
		return
	}

	// без ключа токенов все маршруты, кроме переходов, аналитики и служебных, отвечают 401
	if cfg.Referral.JWTSecret == "" {
		appLogger.Warn("AUTH_JWT_SECRET не задан, регистрация, конверсии и данные агентов недоступны")
	}

	// трейсинг
	shutdownTracing, err := tracing.InitTracing(ctx, &cfg.Tracing, appLogger)
	if err != nil {
		appLogger.Warn("трейсинг не работает", "error", err)
	} else {
		defer func() { _ = shutdownTracing(context.Background()) }()
	}

	// получаем экземпляр хранилища
	storage, err := db.InitDB(ctx, &cfg.DB, appLogger)
	if err != nil {
		appLogger.Error("ошибка подключения к БД", "error", err)
		return
	}
	defer func() { _ = db.CloseDB(storage) }()

	// получаем экземпляр кэша (без него работаем напрямую с БД)
	readiness := map[string]server.Pinger{"postgres": storage, "redis": nil}
	redisCache, err := cache.InitCache(ctx, storage, &cfg.Redis, appLogger)
	if err != nil {
		appLogger.Warn("кэш не работает", "error", err)
	} else {
		readiness["redis"] = redisCache
	}

	// дополнительные приёмники кликов
	sinks := make([]service.ClickSink, 0, 2)
	if cfg.RabbitMQ.Enabled {
		rabbitSink, err := events.InitRabbit(&cfg.RabbitMQ, appLogger)
		if err != nil {
			appLogger.Warn("RabbitMQ не работает, клики в очередь не попадут", "error", err)
		} else {
			defer func() { _ = rabbitSink.Close() }()
			sinks = append(sinks, rabbitSink)
		}
	}
	if cfg.Kafka.Enabled {
		kafkaSink, err := events.InitKafka(&cfg.Kafka, appLogger)
		if err != nil {
			appLogger.Warn("Kafka не работает, клики в топик не попадут", "error", err)
		} else {
			defer func() { _ = kafkaSink.Close() }()
			sinks = append(sinks, kafkaSink)
		}
	}

	// получаем экземпляр слоя бизнес-логики
	svc := service.InitService(ctx, storage, redisCache, &cfg.Referral, sinks, appLogger)
	// дописываем клики, принятые до остановки сервера (выполняется до закрытия брокеров и БД)
	defer svc.Wait()

	// фоновая очистка устаревших записей
	if cfg.Referral.ExpiryInterval > 0 {
		go svc.RunExpiry(ctx, appLogger, cfg.Referral.ExpiryInterval)
	}

	// запускаем сервер
	handler := server.NewEngine(cfg, svc, readiness, appLogger)
	err = server.Run(ctx, &cfg.Server, handler, appLogger)
	if err != nil {
		appLogger.Error("Ошибка сервера", "error", err)
		cancel()
		return
	}

	appLogger.Info("Приложение корректно завершено")
}

// signalHandler обрабатывет сигналы отмены
func signalHandler(ctx context.Context, cancel context.CancelFunc) {

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		return
	case <-sigChan:
		cancel()
		return
	}
}
