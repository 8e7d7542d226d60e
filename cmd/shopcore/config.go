package main

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/shopcore/internal/domain"
)

// loadConfig builds the configuration from the tier defaults and SHOPCORE_*
// environment variables. getenv is os.Getenv outside of tests.
func loadConfig(getenv func(string) string) *domain.Config {
	cfg := domain.DefaultConfig()
	if getenv("SHOPCORE_TIER") == string(domain.TierPro) {
		cfg = domain.ProConfig()
	}

	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v := getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("ignoring invalid integer setting", "key", key, "value", v)
			return
		}
		*dst = n
	}
	dur := func(key string, dst *time.Duration) {
		v := getenv(key)
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("ignoring invalid duration setting", "key", key, "value", v)
			return
		}
		*dst = d
	}

	// Server
	str("SHOPCORE_HOST", &cfg.Server.Host)
	num("SHOPCORE_PORT", &cfg.Server.Port)

	// Repository
	str("SHOPCORE_DB_DRIVER", &cfg.Repository.Driver)
	str("SHOPCORE_SQLITE_PATH", &cfg.Repository.SQLitePath)
	str("SHOPCORE_POSTGRES_HOST", &cfg.Repository.PostgresHost)
	num("SHOPCORE_POSTGRES_PORT", &cfg.Repository.PostgresPort)
	str("SHOPCORE_POSTGRES_USER", &cfg.Repository.PostgresUser)
	str("SHOPCORE_POSTGRES_PASSWORD", &cfg.Repository.PostgresPassword)
	str("SHOPCORE_POSTGRES_DB", &cfg.Repository.PostgresDB)
	str("SHOPCORE_POSTGRES_SSLMODE", &cfg.Repository.PostgresSSLMode)

	// Cache
	str("SHOPCORE_CACHE_TYPE", &cfg.Cache.Type)
	str("SHOPCORE_REDIS_ADDR", &cfg.Cache.RedisAddr)
	str("SHOPCORE_REDIS_PASSWORD", &cfg.Cache.RedisPassword)
	num("SHOPCORE_REDIS_DB", &cfg.Cache.RedisDB)

	// Event bus
	str("SHOPCORE_BUS_TYPE", &cfg.EventBus.Type)
	str("SHOPCORE_NATS_URL", &cfg.EventBus.NATSUrl)
	str("SHOPCORE_NATS_TOKEN", &cfg.EventBus.NATSToken)

	// Feature flags
	if v := getenv("SHOPCORE_FEATURES"); v != "" {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.Features.Active = append(cfg.Features.Active, name)
			}
		}
	}
	dur("SHOPCORE_FEATURE_OVERRIDE_TTL", &cfg.Features.OverrideTTL)

	return cfg
}
