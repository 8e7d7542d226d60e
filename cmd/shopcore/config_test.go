package main

import (
	"reflect"
	"testing"
	"time"

	"github.com/opensource-finance/shopcore/internal/domain"
)

func envOf(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestLoadConfig(t *testing.T) {
	t.Run("CommunityDefaults", func(t *testing.T) {
		cfg := loadConfig(envOf(nil))
		if cfg.Tier != domain.TierCommunity {
			t.Errorf("expected community tier, got %s", cfg.Tier)
		}
		if cfg.Repository.Driver != "sqlite" || cfg.Cache.Type != "memory" || cfg.EventBus.Type != "channel" {
			t.Errorf("unexpected backends %s/%s/%s", cfg.Repository.Driver, cfg.Cache.Type, cfg.EventBus.Type)
		}
	})

	t.Run("ProTier", func(t *testing.T) {
		cfg := loadConfig(envOf(map[string]string{"SHOPCORE_TIER": "pro"}))
		if cfg.Tier != domain.TierPro {
			t.Errorf("expected pro tier, got %s", cfg.Tier)
		}
		if cfg.Repository.Driver != "postgres" || cfg.Cache.Type != "redis" || cfg.EventBus.Type != "nats" {
			t.Errorf("unexpected backends %s/%s/%s", cfg.Repository.Driver, cfg.Cache.Type, cfg.EventBus.Type)
		}
	})

	t.Run("Overrides", func(t *testing.T) {
		cfg := loadConfig(envOf(map[string]string{
			"SHOPCORE_PORT":                 "9090",
			"SHOPCORE_SQLITE_PATH":          "/tmp/x.db",
			"SHOPCORE_REDIS_ADDR":           "redis:6379",
			"SHOPCORE_NATS_URL":             "nats://nats:4222",
			"SHOPCORE_FEATURES":             "feature_next_15170, ,OTHER",
			"SHOPCORE_FEATURE_OVERRIDE_TTL": "1h",
		}))

		if cfg.Server.Port != 9090 {
			t.Errorf("expected port 9090, got %d", cfg.Server.Port)
		}
		if cfg.Repository.SQLitePath != "/tmp/x.db" {
			t.Errorf("expected sqlite path override, got %s", cfg.Repository.SQLitePath)
		}
		if cfg.Cache.RedisAddr != "redis:6379" || cfg.EventBus.NATSUrl != "nats://nats:4222" {
			t.Errorf("unexpected endpoints %s %s", cfg.Cache.RedisAddr, cfg.EventBus.NATSUrl)
		}
		if want := []string{"feature_next_15170", "OTHER"}; !reflect.DeepEqual(cfg.Features.Active, want) {
			t.Errorf("expected features %v, got %v", want, cfg.Features.Active)
		}
		if cfg.Features.OverrideTTL != time.Hour {
			t.Errorf("expected override ttl 1h, got %s", cfg.Features.OverrideTTL)
		}
	})

	t.Run("InvalidValuesIgnored", func(t *testing.T) {
		cfg := loadConfig(envOf(map[string]string{
			"SHOPCORE_PORT":                 "eighty",
			"SHOPCORE_FEATURE_OVERRIDE_TTL": "soon",
		}))
		if cfg.Server.Port != 8080 {
			t.Errorf("expected default port, got %d", cfg.Server.Port)
		}
		if cfg.Features.OverrideTTL != 0 {
			t.Errorf("expected no override ttl, got %s", cfg.Features.OverrideTTL)
		}
	})
}
