// Package domain defines the core interfaces and types for shopcore.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// Queries with filters go through the search engine; the repository
// loads and writes complete entities by id.
type Repository interface {
	// Product operations
	SaveProduct(ctx context.Context, product *Product) error
	GetProducts(ctx context.Context, ids []string) ([]*Product, error)

	// Review operations
	SaveReview(ctx context.Context, review *ProductReview) error

	// Payment method operations
	SavePaymentMethod(ctx context.Context, method *PaymentMethod) error
	GetPaymentMethods(ctx context.Context, ids []string) ([]*PaymentMethod, error)

	// Rule condition operations
	ReplaceRuleConditions(ctx context.Context, ruleID string, conditions []*RuleCondition) error
	ListRuleConditions(ctx context.Context, ruleID string) ([]*RuleCondition, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
