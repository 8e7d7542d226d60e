// Shopcore - Storefront catalogue and rule services.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/shopcore/internal/api"
	"github.com/opensource-finance/shopcore/internal/bus"
	"github.com/opensource-finance/shopcore/internal/cache"
	"github.com/opensource-finance/shopcore/internal/cms"
	"github.com/opensource-finance/shopcore/internal/domain"
	"github.com/opensource-finance/shopcore/internal/event"
	"github.com/opensource-finance/shopcore/internal/feature"
	"github.com/opensource-finance/shopcore/internal/listing"
	"github.com/opensource-finance/shopcore/internal/payment"
	"github.com/opensource-finance/shopcore/internal/repository"
	"github.com/opensource-finance/shopcore/internal/rules"
	"github.com/opensource-finance/shopcore/internal/schema"
	"github.com/opensource-finance/shopcore/internal/search"
	"github.com/opensource-finance/shopcore/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("SHOPCORE_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting shopcore",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	cfg := loadConfig(os.Getenv)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"features", cfg.Features.Active,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Search engine over the entity schemas
	searchEngine := search.NewEngine(repo.DB(), repo.Driver(), schema.Default())

	// Rule engine, hydrated lazily from persisted conditions
	registry, err := rules.NewRegistry()
	if err != nil {
		slog.Error("failed to initialize rule registry", "error", err)
		os.Exit(1)
	}
	ruleEngine := rules.NewEngine(registry, repo)
	defer ruleEngine.Close()
	slog.Info("rule engine initialized", "types", registry.Types())

	// Keep hydrated rules in sync across instances
	invalidator := worker.NewRuleInvalidator(busImpl, ruleEngine)
	if err := invalidator.Start(); err != nil {
		slog.Error("failed to start rule invalidator", "error", err)
		os.Exit(1)
	}

	features := feature.NewService(cfg.Features, cacheImpl)

	route := listing.NewRoute(searchEngine, repo)
	listing.RegisterDefaults(route, busImpl)

	paymentLoaded := event.NewChain[payment.LoadedEvent](
		payment.NewDistinguishableNameSubscriber(features).OnLoaded,
	)

	srv := api.NewServer(cfg.Server, api.Dependencies{
		Repo:      repo,
		Cache:     cacheImpl,
		Bus:       busImpl,
		Search:    searchEngine,
		Rules:     ruleEngine,
		Features:  features,
		Listing:   route,
		Payments:  payment.NewLoader(searchEngine, repo, paymentLoaded),
		BuyBox:    cms.NewBuyBoxResolver(searchEngine, repo, cacheImpl),
		Factories: api.DefaultResponseFactories(),
	}, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("shopcore is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	if err := invalidator.Stop(); err != nil {
		slog.Error("failed to stop rule invalidator", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("shopcore shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  SHOPCORE")
	fmt.Println("  Storefront listing, rules and content services")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Store API (sw-access-key required):")
	fmt.Println("    POST  /store-api/product-listing/{categoryId}  - Category listing")
	fmt.Println("    GET   /store-api/payment-method                - Active payment methods")
	fmt.Println("    GET   /store-api/product/{productId}/buy-box   - Buy box slot")
	fmt.Println()
	fmt.Println("  Admin API:")
	fmt.Println("    POST  /api/product | /api/product-review | /api/payment-method")
	fmt.Println("    GET   /api/rule/{ruleId}/conditions            - Condition tree")
	fmt.Println("    POST  /api/rule/{ruleId}/conditions            - Replace condition tree")
	fmt.Println("    POST  /api/rule/{ruleId}/match                 - Evaluate a rule")
	fmt.Println("    GET   /api/_info/features                      - Feature flags")
	fmt.Println("    PATCH /api/_action/feature/{name}              - Toggle a feature flag")
	fmt.Println()
	fmt.Println("    GET   /health  /ready  /metrics")
	fmt.Println()
}
