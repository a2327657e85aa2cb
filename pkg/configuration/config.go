package configuration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	cleanenvport "github.com/wb-go/wbf/config/cleanenv-port"
)

const envFilePath = "./.env"

// ConfServer - параметры HTTP-сервера
type ConfServer struct {
	HostName string `env:"SERVICE_HOST_NAME" env-default:"localhost"`
	Port     int    `env:"SERVICE_PORT"       env-default:"8081"`
	GinMode  string `env:"GIN_MODE"           env-default:"debug"`
	AppEnv   string `env:"APP_ENV"            env-default:"development"`
}

// ConfDB - параметры подключения к PostgreSQL
type ConfDB struct {
	HostName string `env:"DB_HOST_NAME" env-default:"dbPostgres"`
	Port     int    `env:"DB_PORT"      env-default:"5432"`
	Name     string `env:"DB_NAME"      env-default:"db-postgres"`
	User     string `env:"DB_USER"      env-default:"postgres"`
	Password string `env:"DB_PASSWORD"  env-default:"postgres"`
}

// ConfCache - параметры Redis
type ConfCache struct {
	HostName string        `env:"REDIS_HOST_NAME" env-default:"dbRedis"`
	Port     int           `env:"REDIS_PORT"      env-default:"6379"`
	Password string        `env:"REDIS_PASSWORD"  env-default:""`
	DB       int           `env:"REDIS_DB"        env-default:"0"`
	TTL      time.Duration `env:"REDIS_TTL"       env-default:"600s"`
	Warming  time.Duration `env:"REDIS_WARMING"   env-default:"24h"`
}

// ConfReferral - параметры движка атрибуции
type ConfReferral struct {
	CookieSecret    string        `env:"REFERRAL_COOKIE_SECRET"   env-default:""`
	CookieName      string        `env:"REFERRAL_COOKIE_NAME"     env-default:"referral_id"`
	CookieTTL       time.Duration `env:"REFERRAL_COOKIE_TTL"      env-default:"720h"`
	StrictSecret    bool          `env:"REFERRAL_STRICT_SECRET"   env-default:"false"`
	ErrorPath       string        `env:"REFERRAL_ERROR_PATH"      env-default:"/"`
	JWTSecret       string        `env:"AUTH_JWT_SECRET"          env-default:""`
	Retention       time.Duration `env:"REFERRAL_RETENTION"       env-default:"2160h"`
	ExpiryInterval  time.Duration `env:"REFERRAL_EXPIRY_INTERVAL" env-default:"0s"`
	ClickLogTimeout time.Duration `env:"CLICK_LOG_TIMEOUT"        env-default:"5s"`
}

// ConfRabbitMQ - параметры RabbitMQ (публикация событий кликов)
type ConfRabbitMQ struct {
	Enabled    bool          `env:"RABBIT_ENABLED"   env-default:"false"`
	HostName   string        `env:"RABBIT_HOST_NAME" env-default:"RabbitMQ"`
	Port       int           `env:"RABBIT_PORT"      env-default:"5672"`
	User       string        `env:"RABBIT_USER"      env-default:"rabbitMQ"`
	Password   string        `env:"RABBIT_PASSWORD"  env-default:""`
	VHost      string        `env:"RABBIT_VHOST"     env-default:"/"`
	Queue      string        `env:"RABBIT_QUEUE"     env-default:"referralClicks"`
	RetryCount int           `env:"RETRY_COUNT"      env-default:"3"`
	RetryDelay time.Duration `env:"RETRY_DELAY"      env-default:"100ms"`
	Backoff    int           `env:"RETRY_BACKOFF"    env-default:"2"`
}

// ConfKafka - параметры Kafka (публикация событий кликов)
type ConfKafka struct {
	Enabled bool     `env:"KAFKA_ENABLED" env-default:"false"`
	Brokers []string `env:"KAFKA_BROKERS" env-default:"kafka:9092" env-separator:","`
	Topic   string   `env:"KAFKA_TOPIC"   env-default:"referral-clicks"`
}

// ConfTracing - параметры OpenTelemetry
type ConfTracing struct {
	Endpoint    string `env:"OTEL_ENDPOINT"     env-default:""`
	ServiceName string `env:"OTEL_SERVICE_NAME" env-default:"referral-tracker"`
}

// Config - корневая структура конфигурации
type Config struct {
	Server   ConfServer
	DB       ConfDB
	Redis    ConfCache
	Referral ConfReferral
	RabbitMQ ConfRabbitMQ
	Kafka    ConfKafka
	Tracing  ConfTracing
}

// Production сообщает, запущен ли сервис в боевом окружении
func (c *Config) Production() bool {

	return c.Server.AppEnv == "production"
}

// ReadConfig загружает .env файл из корня проекта и возвращает заполненную структуру Config
// (если файла нет, читаются только переменные окружения)
func ReadConfig() (*Config, error) {

	var config Config

	_, err := os.Stat(envFilePath)
	switch {
	case err == nil:
		if err := cleanenvport.LoadPath(envFilePath, &config); err != nil {
			return nil, err
		}
	case errors.Is(err, fs.ErrNotExist):
		if err := cleanenv.ReadEnv(&config); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// validate проверяет сочетания параметров, которые нельзя выразить тегами
func (c *Config) validate() error {

	if c.Referral.CookieTTL <= 0 {
		return fmt.Errorf("REFERRAL_COOKIE_TTL должен быть положительным, получено %s", c.Referral.CookieTTL)
	}
	// нулевой срок хранения истёк бы у всех записей на первом же проходе очистки
	if c.Referral.Retention <= 0 {
		return fmt.Errorf("REFERRAL_RETENTION должен быть положительным, получено %s", c.Referral.Retention)
	}
	if c.Referral.CookieName == "" {
		return errors.New("REFERRAL_COOKIE_NAME не может быть пустым")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("KAFKA_ENABLED=true, но KAFKA_BROKERS пуст")
	}

	return nil
}
