package config

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig
}

type AppConfig struct {
	Port    string
	BaseURL string // префикс для коротких ссылок, например https://sho.rt
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host         string
	Port         string
	PoolSize     int
	MinIdleConns int
}

type AuthConfig struct {
	JWTSecret   string
	TokenTTL    time.Duration
	CreditLimit int // стартовый лимит ссылок для нового пользователя
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

type ObservabilityConfig struct {
	DetailedHealth bool
	PerfSampleRate float64 // доля запросов, для которых логируется длительность
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	// .env опционален: в контейнере всё приходит из переменных окружения
	if err := viper.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	var cfg Config
	cfg.App.Port = viper.GetString("APP_PORT")
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	cfg.App.BaseURL = viper.GetString("BASE_URL")
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = "http://localhost:" + cfg.App.Port
	}

	cfg.DB.Host = viper.GetString("DB_HOST")
	cfg.DB.Port = viper.GetString("DB_PORT")
	cfg.DB.User = viper.GetString("DB_USER")
	cfg.DB.Password = viper.GetString("DB_PASSWORD")
	cfg.DB.Name = viper.GetString("DB_NAME")
	cfg.Redis.Host = viper.GetString("REDIS_HOST")
	cfg.Redis.Port = viper.GetString("REDIS_PORT")
	cfg.Redis.PoolSize = viper.GetInt("REDIS_POOL_SIZE")
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 100
	}
	cfg.Redis.MinIdleConns = viper.GetInt("REDIS_MIN_IDLE_CONNS")
	if cfg.Redis.MinIdleConns == 0 {
		cfg.Redis.MinIdleConns = 10
	}

	cfg.Auth.JWTSecret = viper.GetString("JWT_SECRET")
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	ttlHours := viper.GetInt("JWT_TTL_HOURS")
	if ttlHours == 0 {
		ttlHours = 24
	}
	cfg.Auth.TokenTTL = time.Duration(ttlHours) * time.Hour

	cfg.Auth.CreditLimit = viper.GetInt("DEFAULT_CREDIT_LIMIT")
	if cfg.Auth.CreditLimit == 0 {
		cfg.Auth.CreditLimit = 10
	}

	cfg.RateLimit.RequestsPerSecond = viper.GetFloat64("RATE_LIMIT_RPS")
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 10
	}
	cfg.RateLimit.BurstSize = viper.GetInt("RATE_LIMIT_BURST")
	if cfg.RateLimit.BurstSize == 0 {
		cfg.RateLimit.BurstSize = 20
	}

	cfg.Observability.DetailedHealth = viper.GetBool("HEALTH_DETAILED")
	cfg.Observability.PerfSampleRate = viper.GetFloat64("PERF_SAMPLE_RATE")
	if cfg.Observability.PerfSampleRate == 0 {
		cfg.Observability.PerfSampleRate = 0.1
	}

	return &cfg, nil
}
