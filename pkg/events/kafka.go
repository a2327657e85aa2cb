package events

import (
	"context"
	"errors"

	"github.com/IPampurin/ReferralTracker/pkg/configuration"
	"github.com/IPampurin/ReferralTracker/pkg/db"
	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// messageWriter - часть kafka.Writer, нужная приёмнику
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink публикует переходы в топик Kafka, ключ сообщения - реферальный код
type KafkaSink struct {
	writer messageWriter
}

// InitKafka создаёт писателя в топик ConfKafka.Topic
func InitKafka(cfg *configuration.ConfKafka, log logger.Logger) (*KafkaSink, error) {

	if len(cfg.Brokers) == 0 {
		return nil, errors.New("не указаны брокеры Kafka")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // переходы одного кода попадают в одну партицию
		RequiredAcks: kafka.RequireOne,
	}

	log.Info("Kafka писатель создан", "topic", cfg.Topic, "brokers", cfg.Brokers)

	return &KafkaSink{writer: w}, nil
}

func (s *KafkaSink) Name() string { return "kafka" }

// Publish пишет переход в топик, прокидывая traceparent в заголовках
func (s *KafkaSink) Publish(ctx context.Context, click *db.Click) error {

	body, err := marshalClick(click)
	if err != nil {
		return err
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := make([]kafka.Header, 0, len(carrier))
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(click.Code),
		Value:   body,
		Headers: headers,
	})
}

// Close сбрасывает буфер и закрывает писателя
func (s *KafkaSink) Close() error {

	return s.writer.Close()
}
