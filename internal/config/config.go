// Package config предоставляет структуру конфигурации процесса и ее загрузку
// из переменных окружения (и, опционально, YAML-файла из CONFIG_PATH).
//
// Конфигурация собирается один раз в main и передается в компоненты явно.
package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Режимы развертывания.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// DevCORSOrigin адрес dev-сервера фронтенда.
const DevCORSOrigin = "http://localhost:5173"

// Config общая структура для хранения настроек.
type Config struct {
	Env                     string `yaml:"env" env:"APP_ENV" env-default:"development"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	CORSOrigin              string `yaml:"cors_origin" env:"CORS_ORIGIN"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Device                  `yaml:"device"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	RateLimit               `yaml:"rate_limit"`
	Sweeper                 `yaml:"sweeper"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	Port        string        `yaml:"port" env:"PORT" env-default:"5001"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env:"HTTP_TIMEOUT" env-default:"2m"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

// JWTToken структура для работы с сессионными токенами.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET" env-required:"true"`
	TokenTTL     time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"168h"`
}

// Device структура для настройки клиента устройства сегментации.
type Device struct {
	DeviceURL        string        `yaml:"url" env:"DEVICE_URL" env-default:"http://localhost:8000"`
	DeviceTimeout    time.Duration `yaml:"timeout" env:"DEVICE_TIMEOUT" env-default:"30s"`
	DeviceMaxRetries int           `yaml:"max_retries" env:"DEVICE_MAX_RETRIES" env-default:"2"`
	DeviceRetryDelay time.Duration `yaml:"retry_delay" env:"DEVICE_RETRY_DELAY" env-default:"500ms"`
	SegmentPath      string        `yaml:"segment_path" env:"DEVICE_SEGMENT_PATH" env-default:"/run-segmentation"`
	StatusPath       string        `yaml:"status_path" env:"DEVICE_STATUS_PATH" env-default:"/status"`
}

// RedisConnection структура для настройки подключения к redis.
// Пустой адрес отключает кеш.
type RedisConnection struct {
	AddressRedis  string        `yaml:"addressredis" env:"REDIS_ADDR"`
	RedisPassword string        `yaml:"password" env:"REDIS_PASSWORD"`
	RedisUser     string        `yaml:"user" env:"REDIS_USER"`
	DB            int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	MaxRetries    int           `yaml:"max_retries" env:"REDIS_MAX_RETRIES" env-default:"3"`
	DialTimeout   time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	TimeoutRedis  time.Duration `yaml:"timeoutredis" env:"REDIS_TIMEOUT" env-default:"2s"`
	UserCacheTTL  time.Duration `yaml:"user_cache_ttl" env:"USER_CACHE_TTL" env-default:"5m"`
}

// RabbitMQ структура для публикации событий. Пустой URL отключает публикацию.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env:"RABBITMQ_MAX_RETRIES" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env:"RABBITMQ_RETRY_DELAY" env-default:"2s"`
	Exchange           string        `yaml:"exchange" env:"RABBITMQ_EXCHANGE" env-default:"measurements"`
}

// RateLimit параметры глобального ограничителя запросов.
type RateLimit struct {
	RPS   float64 `yaml:"rps" env:"RATE_LIMIT_RPS" env-default:"20"`
	Burst int     `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"40"`
}

// Sweeper параметры фонового перевода зависших замеров в failed.
// Нулевой интервал отключает фоновую задачу.
type Sweeper struct {
	SweepInterval time.Duration `yaml:"interval" env:"SWEEP_INTERVAL" env-default:"1m"`
	StaleAfter    time.Duration `yaml:"stale_after" env:"SEGMENTATION_STALE_AFTER" env-default:"10m"`
}

// Load читает .env (если есть), затем YAML из CONFIG_PATH (если задан) и окружение.
// Отсутствие строки подключения или секрета приводит к ошибке.
func Load() (*Config, error) {
	const op = "config.Load"

	_ = godotenv.Load()

	var cfg Config
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("%s: config file %s: %w", op, configPath, err)
		}
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = DevCORSOrigin
		if cfg.IsProduction() {
			cfg.CORSOrigin = "*"
		}
	}
	return &cfg, nil
}

// MustLoad загружает конфиг или завершает процесс до начала обслуживания.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func (c *Config) validate() error {
	if c.StorageConnectionString == "" {
		return errors.New("STORAGE_CONNECTION_STRING is required")
	}
	if c.JWTSecretKey == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return fmt.Errorf("unknown APP_ENV %q", c.Env)
	}
	if c.TokenTTL < 0 {
		return errors.New("TOKEN_TTL must not be negative")
	}
	if c.DeviceMaxRetries < 0 {
		return errors.New("DEVICE_MAX_RETRIES must not be negative")
	}
	if c.SweepInterval > 0 && c.StaleAfter <= 0 {
		return errors.New("SEGMENTATION_STALE_AFTER must be positive")
	}
	return nil
}

// IsProduction сообщает, запущен ли процесс в production-режиме.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Address возвращает адрес прослушивания HTTP-сервера.
func (c *Config) Address() string {
	return net.JoinHostPort("", c.Port)
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageConnectionString: %s\n"+
			"HTTPServer:\n"+
			"  Port: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"JWTToken:\n"+
			"  JWTSecretKey: %s\n"+
			"  TokenTTL: %s\n"+
			"Device:\n"+
			"  URL: %s\n"+
			"  Timeout: %s\n"+
			"  MaxRetries: %d\n"+
			"Redis: %s\n"+
			"RabbitMQ: %s\n",
		c.Env,
		mask(c.StorageConnectionString),
		c.Port,
		c.TimeoutHTTP,
		c.IdleTimeout,
		mask(c.JWTSecretKey),
		c.TokenTTL,
		c.DeviceURL,
		c.DeviceTimeout,
		c.DeviceMaxRetries,
		orDisabled(c.AddressRedis),
		orDisabled(mask(c.RabbitMQURL)),
	)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

func orDisabled(s string) string {
	if s == "" {
		return "disabled"
	}
	return s
}
