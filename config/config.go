package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Env            string `env:"ENVIRONMENT" envDefault:"development"`
	ServerPort     int    `env:"SERVER_PORT" envDefault:"8080"`
	BasicAuthCreds string `env:"BASIC_AUTH_CREDS"`
	CORSOrigins    string `env:"CORS_ORIGINS" envDefault:"*"`

	Database struct {
		Driver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
		DSN    string `env:"DATABASE_DSN" envDefault:"pricewatch.sqlite"`
	}

	Redis struct {
		Addr     string `env:"REDIS_ADDR"`
		Password string `env:"REDIS_PASSWORD"`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Scraper struct {
		RequestTimeoutSecs int     `env:"REQUEST_TIMEOUT" envDefault:"30"`
		MaxRetries         int     `env:"MAX_RETRIES" envDefault:"3"`
		RetryBackoffMsecs  int     `env:"RETRY_BACKOFF_MS" envDefault:"500"`
		RatePerSecond      float64 `env:"SCRAPE_RATE_PER_SECOND" envDefault:"2"`
		RateBurst          int     `env:"SCRAPE_RATE_BURST" envDefault:"3"`
		RespectRobots      bool    `env:"RESPECT_ROBOTS" envDefault:"false"`
	}

	Cache struct {
		TTLSecs        int `env:"CACHE_TTL" envDefault:"300"`
		OpTimeoutMsecs int `env:"CACHE_OP_TIMEOUT_MS" envDefault:"250"`
	}

	Monitor struct {
		CheckIntervalMins    int `env:"CHECK_INTERVAL" envDefault:"60"`
		HistoryRetentionDays int `env:"HISTORY_RETENTION_DAYS" envDefault:"90"`
	}

	creds map[string]string
}

// NewConfig loads .env, then the environment. Production refuses to start without
// basic-auth credentials.
func NewConfig() (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	cfg, err := Parse()
	if err != nil {
		return nil, err
	}

	if cfg.IsProduction() && len(cfg.creds) == 0 {
		return nil, errors.New("BASIC_AUTH_CREDS envvar must be populated in production")
	}

	return cfg, nil
}

// Parse reads the environment into a Config without any side effects.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	creds, err := parseCreds(cfg.BasicAuthCreds)
	if err != nil {
		return nil, err
	}
	cfg.creds = creds

	return cfg, nil
}

func (cfg *Config) validate() error {
	switch {
	case cfg.Scraper.MaxRetries < 1:
		return errors.New("MAX_RETRIES must be at least 1")
	case cfg.Scraper.RequestTimeoutSecs < 1:
		return errors.New("REQUEST_TIMEOUT must be at least 1 second")
	case cfg.Cache.TTLSecs < 0:
		return errors.New("CACHE_TTL must not be negative")
	case cfg.Monitor.CheckIntervalMins < 1:
		return errors.New("CHECK_INTERVAL must be at least 1 minute")
	}
	return nil
}

func (cfg *Config) IsProduction() bool {
	return cfg.Env == "production"
}

func (cfg *Config) GetCreds() map[string]string {
	return cfg.creds
}

func (cfg *Config) RequestTimeout() time.Duration {
	return time.Duration(cfg.Scraper.RequestTimeoutSecs) * time.Second
}

func (cfg *Config) RetryBackoff() time.Duration {
	return time.Duration(cfg.Scraper.RetryBackoffMsecs) * time.Millisecond
}

func (cfg *Config) CacheTTL() time.Duration {
	return time.Duration(cfg.Cache.TTLSecs) * time.Second
}

func (cfg *Config) CacheOpTimeout() time.Duration {
	return time.Duration(cfg.Cache.OpTimeoutMsecs) * time.Millisecond
}

func (cfg *Config) CheckInterval() time.Duration {
	return time.Duration(cfg.Monitor.CheckIntervalMins) * time.Minute
}

func (cfg *Config) HistoryRetention() time.Duration {
	return time.Duration(cfg.Monitor.HistoryRetentionDays) * 24 * time.Hour
}

func parseCreds(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}

	creds := strings.Split(raw, ",")
	result := make(map[string]string)
	for _, cred := range creds {
		userPass := strings.Split(cred, ":")
		if len(userPass) != 2 {
			return nil, fmt.Errorf("failed to parse '%s', each credential should be delimited by a colon -- user1:pass1,user2:pass2", cred)
		}

		user, pass := userPass[0], userPass[1]
		result[strings.Trim(user, " ")] = strings.Trim(pass, " ")
	}

	return result, nil
}
