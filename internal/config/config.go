// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// SessionStore はセッション永続化バックエンドの種別。
type SessionStore string

const (
	// SessionStorePostgres はPostgreSQLにセッションを保存する（デフォルト）。
	SessionStorePostgres SessionStore = "postgres"
	// SessionStoreRedis はRedisにセッションを保存する。
	SessionStoreRedis SessionStore = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Session
	SessionMaxAge int
	SessionStore  SessionStore
	RedisURL      string

	// Auth
	BcryptCost int

	// Rate Limit（req/min/user）
	RateLimitGeneral   int
	RateLimitProvision int

	// Server
	ServerPort     string
	RequestTimeout time.Duration
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.SessionStore = SessionStore(getEnvString("SESSION_STORE", string(SessionStorePostgres)))
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 12)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitProvision = getEnvInt("RATE_LIMIT_PROVISION", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", 15*time.Second)

	switch cfg.SessionStore {
	case SessionStorePostgres:
	case SessionStoreRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when SESSION_STORE=redis")
		}
	default:
		return nil, fmt.Errorf("unsupported SESSION_STORE: %q", cfg.SessionStore)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
