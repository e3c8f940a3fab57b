package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	RedisURL        string        `env:"REDIS_URL"`
	JWTSecret       string        `env:"JWT_SECRET,required"`
	JWTExpiry       time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`
	RoomProviderURL string        `env:"ROOM_PROVIDER_URL"`
	Port            int           `env:"PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv          string        `env:"APP_ENV" envDefault:"production"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"https://*,http://*"`

	WorkingHoursStart  string        `env:"WORKING_HOURS_START" envDefault:"09:00"`
	WorkingHoursEnd    string        `env:"WORKING_HOURS_END" envDefault:"18:00"`
	WorkingHoursTZ     string        `env:"WORKING_HOURS_TZ" envDefault:"UTC"`
	MinBookingLead     time.Duration `env:"MIN_BOOKING_LEAD" envDefault:"0s"`
	MaxSessionDuration time.Duration `env:"MAX_SESSION_DURATION" envDefault:"4h"`

	// SessionType -> pricing mode (per_minute, per_hour, flat).
	SessionPricing     map[string]string `env:"SESSION_PRICING" envDefault:"Live:per_hour,PayPerMinute:per_minute,Fixed:flat"`
	DefaultSessionType string            `env:"DEFAULT_SESSION_TYPE" envDefault:"Live"`

	ReconcileInterval  time.Duration `env:"RECONCILE_INTERVAL" envDefault:"30s"`
	ReconcileBatchSize int           `env:"RECONCILE_BATCH_SIZE" envDefault:"50"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
