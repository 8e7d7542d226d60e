package repository

// Schema definitions for the shopcore database.
// Compatible with both SQLite and PostgreSQL. Booleans are stored as
// INTEGER 0/1 on both so the search engine binds them the same way.

const schemaProducts = `
CREATE TABLE IF NOT EXISTS product (
    id TEXT PRIMARY KEY,
    parent_id TEXT,
    product_number TEXT NOT NULL,
    name TEXT NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    stock INTEGER NOT NULL DEFAULT 0,
    price REAL NOT NULL DEFAULT 0,
    manufacturer_id TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_product_parent ON product(parent_id);
CREATE INDEX IF NOT EXISTS idx_product_manufacturer ON product(manufacturer_id);

CREATE TABLE IF NOT EXISTS product_visibility (
    id TEXT PRIMARY KEY,
    product_id TEXT NOT NULL,
    sales_channel_id TEXT NOT NULL,
    visibility INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_product_visibility_product ON product_visibility(product_id);
CREATE INDEX IF NOT EXISTS idx_product_visibility_channel ON product_visibility(sales_channel_id, visibility);

CREATE TABLE IF NOT EXISTS product_category_tree (
    product_id TEXT NOT NULL,
    category_id TEXT NOT NULL,
    PRIMARY KEY (product_id, category_id)
);

CREATE INDEX IF NOT EXISTS idx_product_category_tree_category ON product_category_tree(category_id);

CREATE TABLE IF NOT EXISTS category (
    id TEXT PRIMARY KEY,
    parent_id TEXT,
    name TEXT
);
`

const schemaReviews = `
CREATE TABLE IF NOT EXISTS product_review (
    id TEXT PRIMARY KEY,
    product_id TEXT NOT NULL,
    customer_id TEXT,
    sales_channel_id TEXT NOT NULL,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    points REAL NOT NULL DEFAULT 0,
    status INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_product_review_product ON product_review(product_id);
CREATE INDEX IF NOT EXISTS idx_product_review_customer ON product_review(customer_id);
`

const schemaPaymentMethods = `
CREATE TABLE IF NOT EXISTS payment_method (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    distinguishable_name TEXT,
    description TEXT,
    active INTEGER NOT NULL DEFAULT 1,
    position INTEGER NOT NULL DEFAULT 1
);
`

// schemaRules defines rules and their condition trees.
// value holds the JSON encoded parameters of the condition type.
const schemaRules = `
CREATE TABLE IF NOT EXISTS rule (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rule_condition (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    rule_id TEXT NOT NULL,
    parent_id TEXT,
    value TEXT,
    position INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_rule_condition_rule ON rule_condition(rule_id);
CREATE INDEX IF NOT EXISTS idx_rule_condition_parent ON rule_condition(parent_id);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaProducts,
		schemaReviews,
		schemaPaymentMethods,
		schemaRules,
	}
}
