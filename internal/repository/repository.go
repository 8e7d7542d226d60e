// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/shopcore/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// DB exposes the connection pool to the search engine.
func (r *SQLRepository) DB() *sql.DB {
	return r.db
}

// Driver returns the configured driver name.
func (r *SQLRepository) Driver() string {
	return r.driver
}

// SaveProduct upserts a product together with its visibilities and categories.
func (r *SQLRepository) SaveProduct(ctx context.Context, p *domain.Product) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}
	if p.Name == "" || p.ProductNumber == "" {
		return fmt.Errorf("%w: product name and number are required", ErrInvalidInput)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	return r.inTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO product (
				id, parent_id, product_number, name, active, stock, price, manufacturer_id, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				parent_id = excluded.parent_id,
				product_number = excluded.product_number,
				name = excluded.name,
				active = excluded.active,
				stock = excluded.stock,
				price = excluded.price,
				manufacturer_id = excluded.manufacturer_id
		`
		if _, err := tx.ExecContext(ctx, r.rebind(query),
			p.ID, p.ParentID, p.ProductNumber, p.Name, boolToInt(p.Active),
			p.Stock, p.Price, nullString(p.ManufacturerID), p.CreatedAt,
		); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM product_visibility WHERE product_id = ?`), p.ID); err != nil {
			return err
		}
		for _, v := range p.Visibilities {
			if _, err := tx.ExecContext(ctx, r.rebind(`
				INSERT INTO product_visibility (id, product_id, sales_channel_id, visibility)
				VALUES (?, ?, ?, ?)
			`), uuid.New().String(), p.ID, v.SalesChannelID, v.Visibility); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM product_category_tree WHERE product_id = ?`), p.ID); err != nil {
			return err
		}
		for _, categoryID := range p.CategoryIDs {
			if _, err := tx.ExecContext(ctx, r.rebind(`
				INSERT INTO product_category_tree (product_id, category_id) VALUES (?, ?)
			`), p.ID, categoryID); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetProducts loads products by id, in the order of ids. Unknown ids are skipped.
func (r *SQLRepository) GetProducts(ctx context.Context, ids []string) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders, args := inClause(ids)
	query := `
		SELECT id, parent_id, product_number, name, active, stock, price, manufacturer_id, created_at
		FROM product
		WHERE id IN (` + placeholders + `)
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*domain.Product, len(ids))
	for rows.Next() {
		var p domain.Product
		var parentID, manufacturerID sql.NullString
		var active int

		if err := rows.Scan(
			&p.ID, &parentID, &p.ProductNumber, &p.Name, &active,
			&p.Stock, &p.Price, &manufacturerID, &p.CreatedAt,
		); err != nil {
			return nil, err
		}

		if parentID.Valid {
			p.ParentID = &parentID.String
		}
		p.ManufacturerID = manufacturerID.String
		p.Active = active == 1
		byID[p.ID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadVisibilities(ctx, byID, placeholders, args); err != nil {
		return nil, err
	}
	if err := r.loadCategories(ctx, byID, placeholders, args); err != nil {
		return nil, err
	}

	products := make([]*domain.Product, 0, len(byID))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

func (r *SQLRepository) loadVisibilities(ctx context.Context, byID map[string]*domain.Product, placeholders string, args []any) error {
	query := `
		SELECT product_id, sales_channel_id, visibility
		FROM product_visibility
		WHERE product_id IN (` + placeholders + `)
		ORDER BY sales_channel_id
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var v domain.ProductVisibility
		if err := rows.Scan(&v.ProductID, &v.SalesChannelID, &v.Visibility); err != nil {
			return err
		}
		if p, ok := byID[v.ProductID]; ok {
			p.Visibilities = append(p.Visibilities, v)
		}
	}
	return rows.Err()
}

func (r *SQLRepository) loadCategories(ctx context.Context, byID map[string]*domain.Product, placeholders string, args []any) error {
	query := `
		SELECT product_id, category_id
		FROM product_category_tree
		WHERE product_id IN (` + placeholders + `)
		ORDER BY category_id
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var productID, categoryID string
		if err := rows.Scan(&productID, &categoryID); err != nil {
			return err
		}
		if p, ok := byID[productID]; ok {
			p.CategoryIDs = append(p.CategoryIDs, categoryID)
		}
	}
	return rows.Err()
}

// SaveReview stores a product review.
func (r *SQLRepository) SaveReview(ctx context.Context, review *domain.ProductReview) error {
	if review == nil || review.ProductID == "" {
		return fmt.Errorf("%w: review product id is required", ErrInvalidInput)
	}
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO product_review (
			id, product_id, customer_id, sales_channel_id, title, content, points, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			points = excluded.points,
			status = excluded.status
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		review.ID, review.ProductID, review.CustomerID, review.SalesChannelID,
		review.Title, review.Content, review.Points, boolToInt(review.Status), review.CreatedAt,
	)
	return err
}

// SavePaymentMethod upserts a payment method.
func (r *SQLRepository) SavePaymentMethod(ctx context.Context, m *domain.PaymentMethod) error {
	if m == nil || m.ID == "" || m.Name == "" {
		return fmt.Errorf("%w: payment method id and name are required", ErrInvalidInput)
	}

	query := `
		INSERT INTO payment_method (id, name, distinguishable_name, description, active, position)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			distinguishable_name = excluded.distinguishable_name,
			description = excluded.description,
			active = excluded.active,
			position = excluded.position
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		m.ID, m.Name, m.DistinguishableName, m.Description, boolToInt(m.Active), m.Position,
	)
	return err
}

// GetPaymentMethods loads payment methods by id, in the order of ids.
// Translated values are resolved for the default language, which is the
// only one stored.
func (r *SQLRepository) GetPaymentMethods(ctx context.Context, ids []string) ([]*domain.PaymentMethod, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders, args := inClause(ids)
	query := `
		SELECT id, name, distinguishable_name, description, active, position
		FROM payment_method
		WHERE id IN (` + placeholders + `)
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*domain.PaymentMethod, len(ids))
	for rows.Next() {
		var m domain.PaymentMethod
		var distinguishable, description sql.NullString
		var active int

		if err := rows.Scan(&m.ID, &m.Name, &distinguishable, &description, &active, &m.Position); err != nil {
			return nil, err
		}

		m.Description = description.String
		m.Active = active == 1
		name := m.Name
		m.AddTranslated("name", &name)
		if distinguishable.Valid {
			m.DistinguishableName = &distinguishable.String
			translated := distinguishable.String
			m.AddTranslated("distinguishableName", &translated)
		} else {
			m.AddTranslated("distinguishableName", nil)
		}
		byID[m.ID] = &m
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	methods := make([]*domain.PaymentMethod, 0, len(byID))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			methods = append(methods, m)
		}
	}
	return methods, nil
}

// ReplaceRuleConditions swaps the complete condition tree of a rule.
func (r *SQLRepository) ReplaceRuleConditions(ctx context.Context, ruleID string, conditions []*domain.RuleCondition) error {
	if ruleID == "" {
		return fmt.Errorf("%w: ruleID is required", ErrInvalidInput)
	}
	for _, c := range conditions {
		if c.Type == "" {
			return fmt.Errorf("%w: condition type is required", ErrInvalidInput)
		}
	}

	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.rebind(`
			INSERT INTO rule (id, name) VALUES (?, ?)
			ON CONFLICT(id) DO NOTHING
		`), ruleID, ruleID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM rule_condition WHERE rule_id = ?`), ruleID); err != nil {
			return err
		}

		for _, c := range conditions {
			if c.ID == "" {
				c.ID = uuid.New().String()
			}
			c.RuleID = ruleID

			var value *string
			if len(c.Value) > 0 {
				v := string(c.Value)
				value = &v
			}

			if _, err := tx.ExecContext(ctx, r.rebind(`
				INSERT INTO rule_condition (id, type, rule_id, parent_id, value, position)
				VALUES (?, ?, ?, ?, ?, ?)
			`), c.ID, c.Type, ruleID, c.ParentID, value, c.Position); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListRuleConditions returns all conditions of a rule ordered by position.
func (r *SQLRepository) ListRuleConditions(ctx context.Context, ruleID string) ([]*domain.RuleCondition, error) {
	if ruleID == "" {
		return nil, fmt.Errorf("%w: ruleID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, type, rule_id, parent_id, value, position
		FROM rule_condition
		WHERE rule_id = ?
		ORDER BY position, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conditions []*domain.RuleCondition
	for rows.Next() {
		var c domain.RuleCondition
		var parentID, value sql.NullString

		if err := rows.Scan(&c.ID, &c.Type, &c.RuleID, &parentID, &value, &c.Position); err != nil {
			return nil, err
		}
		if parentID.Valid {
			c.ParentID = &parentID.String
		}
		if value.Valid && value.String != "" {
			c.Value = []byte(value.String)
		}
		conditions = append(conditions, &c)
	}

	return conditions, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func (r *SQLRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *SQLRepository) rebind(query string) string {
	return Rebind(r.driver, query)
}

// Rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func Rebind(driver, query string) string {
	if driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

func inClause(ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
