package events

import (
	"context"
	"fmt"
	"time"

	"github.com/IPampurin/ReferralTracker/pkg/configuration"
	"github.com/IPampurin/ReferralTracker/pkg/db"
	"github.com/wb-go/wbf/logger"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/retry"
)

// RabbitSink публикует переходы в очередь RabbitMQ
type RabbitSink struct {
	client *rabbitmq.RabbitClient
	queue  string
}

// InitRabbit подключается к RabbitMQ, декларирует очередь и возвращает приёмник кликов
func InitRabbit(cfg *configuration.ConfRabbitMQ, log logger.Logger) (*RabbitSink, error) {

	// формируем URL для подключения
	amqpURL := fmt.Sprintf("amqp://%s:%s@%s:%d%s", cfg.User, cfg.Password, cfg.HostName, cfg.Port, cfg.VHost)

	// одна стратегия на переподключение и публикацию
	strategy := retry.Strategy{
		Attempts: cfg.RetryCount,
		Delay:    cfg.RetryDelay,
		Backoff:  float64(cfg.Backoff),
	}

	clientCfg := rabbitmq.ClientConfig{
		URL:            amqpURL,
		ConnectionName: "referral-tracker",
		ConnectTimeout: 10 * time.Second,
		Heartbeat:      30 * time.Second,
		ReconnectStrat: strategy,
		ProducingStrat: strategy,
		ConsumingStrat: strategy,
	}

	var client *rabbitmq.RabbitClient
	err := retry.Do(func() error {
		var innerErr error
		client, innerErr = rabbitmq.NewClient(clientCfg)
		return innerErr
	}, strategy)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания клиента RabbitMQ после %d попыток: %w", strategy.Attempts, err)
	}

	ch, err := client.GetChannel()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ошибка получения канала: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		cfg.Queue, // имя очереди
		true,      // durable
		false,     // autoDelete
		false,     // exclusive
		false,     // noWait
		nil,       // аргументы
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ошибка объявления очереди: %w", err)
	}

	log.Info("RabbitMQ подключён", "queue", cfg.Queue)

	return &RabbitSink{
		client: client,
		queue:  cfg.Queue,
	}, nil
}

func (s *RabbitSink) Name() string { return "rabbitmq" }

// Publish кладёт переход прямо в очередь (exchange = "", routingKey = имя очереди)
func (s *RabbitSink) Publish(ctx context.Context, click *db.Click) error {

	body, err := marshalClick(click)
	if err != nil {
		return err
	}

	publisher := rabbitmq.NewPublisher(s.client, "", "application/json")

	return publisher.Publish(ctx, body, s.queue)
}

// Close закрывает соединение с брокером
func (s *RabbitSink) Close() error {

	return s.client.Close()
}
