package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port              int
	MasterSecret      string
	GinMode           string
	TLSCertFile       string
	TLSKeyFile        string
	TokenExpiry       time.Duration
	OrdersDBFile      string
	AccountsStateFile string
	SignInRateLimit   int
}

type ClientConfig struct {
	ServerURL string
	Location  *time.Location
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:            3000,
		GinMode:         "release",
		TokenExpiry:     7 * 24 * time.Hour,
		SignInRateLimit: 10,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.MasterSecret = env.Getenv("MASTER_SECRET")
	if cfg.MasterSecret == "" {
		return Config{}, fmt.Errorf("MASTER_SECRET is required")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")
	cfg.OrdersDBFile = env.Getenv("ORDERS_DB_FILE")
	cfg.AccountsStateFile = env.Getenv("ACCOUNTS_STATE_FILE")

	if raw := env.Getenv("TOKEN_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid TOKEN_EXPIRY_SECONDS")
		}
		cfg.TokenExpiry = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("SIGNIN_RATE_LIMIT"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return Config{}, fmt.Errorf("invalid SIGNIN_RATE_LIMIT")
		}
		cfg.SignInRateLimit = limit
	}

	return cfg, nil
}

func LoadClientConfig() (ClientConfig, error) {
	return LoadClientConfigFromEnv(osEnv{})
}

func LoadClientConfigFromEnv(env Env) (ClientConfig, error) {
	cfg := ClientConfig{
		ServerURL: "http://localhost:3000",
		Location:  time.Local,
	}

	if raw := env.Getenv("ORDERDESK_SERVER_URL"); raw != "" {
		cfg.ServerURL = raw
	}

	if raw := env.Getenv("ORDERDESK_TIMEZONE"); raw != "" {
		loc, err := time.LoadLocation(raw)
		if err != nil {
			return ClientConfig{}, fmt.Errorf("invalid ORDERDESK_TIMEZONE: %w", err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}
