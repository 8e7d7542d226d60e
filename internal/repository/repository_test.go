package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/opensource-finance/shopcore/internal/domain"
)

func newTestRepository(t *testing.T) *SQLRepository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "shopcore-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetProducts", func(t *testing.T) {
		parent := &domain.Product{
			ID:             "p-1",
			ProductNumber:  "SW-1",
			Name:           "Shirt",
			Active:         true,
			Stock:          5,
			Price:          19.99,
			ManufacturerID: "m-1",
			CategoryIDs:    []string{"c-2", "c-1"},
			Visibilities: []domain.ProductVisibility{
				{SalesChannelID: "sc-1", Visibility: domain.VisibilityAll},
			},
		}
		parentID := "p-1"
		variant := &domain.Product{
			ID:            "p-2",
			ParentID:      &parentID,
			ProductNumber: "SW-1.1",
			Name:          "Shirt XL",
		}

		for _, p := range []*domain.Product{parent, variant} {
			if err := repo.SaveProduct(ctx, p); err != nil {
				t.Fatalf("SaveProduct failed: %v", err)
			}
		}

		products, err := repo.GetProducts(ctx, []string{"p-2", "missing", "p-1"})
		if err != nil {
			t.Fatalf("GetProducts failed: %v", err)
		}
		if len(products) != 2 {
			t.Fatalf("expected 2 products, got %d", len(products))
		}
		if products[0].ID != "p-2" || products[1].ID != "p-1" {
			t.Errorf("expected order of ids, got %s, %s", products[0].ID, products[1].ID)
		}
		if products[0].ParentID == nil || *products[0].ParentID != "p-1" {
			t.Errorf("expected parent p-1, got %v", products[0].ParentID)
		}

		got := products[1]
		if !got.Active || got.Stock != 5 || got.Price != 19.99 || got.ManufacturerID != "m-1" {
			t.Errorf("unexpected product: %+v", got)
		}
		if len(got.CategoryIDs) != 2 || got.CategoryIDs[0] != "c-1" {
			t.Errorf("unexpected categories: %v", got.CategoryIDs)
		}
		if len(got.Visibilities) != 1 || got.Visibilities[0].Visibility != domain.VisibilityAll {
			t.Errorf("unexpected visibilities: %v", got.Visibilities)
		}
	})

	t.Run("SaveProductReplacesAssociations", func(t *testing.T) {
		p := &domain.Product{ID: "p-3", ProductNumber: "SW-3", Name: "Cap", CategoryIDs: []string{"c-1"}}
		_ = repo.SaveProduct(ctx, p)

		p.CategoryIDs = []string{"c-9"}
		if err := repo.SaveProduct(ctx, p); err != nil {
			t.Fatalf("SaveProduct failed: %v", err)
		}

		products, _ := repo.GetProducts(ctx, []string{"p-3"})
		if len(products[0].CategoryIDs) != 1 || products[0].CategoryIDs[0] != "c-9" {
			t.Errorf("expected categories [c-9], got %v", products[0].CategoryIDs)
		}
	})

	t.Run("SaveProductValidation", func(t *testing.T) {
		err := repo.SaveProduct(ctx, &domain.Product{ID: "p-x"})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("SaveReview", func(t *testing.T) {
		review := &domain.ProductReview{
			ProductID:      "p-1",
			SalesChannelID: "sc-1",
			Title:          "Great",
			Content:        "Fits well",
			Points:         5,
			Status:         true,
		}
		if err := repo.SaveReview(ctx, review); err != nil {
			t.Fatalf("SaveReview failed: %v", err)
		}
		if review.ID == "" {
			t.Error("expected generated review id")
		}

		if err := repo.SaveReview(ctx, &domain.ProductReview{}); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("PaymentMethods", func(t *testing.T) {
		label := "Invoice (B2B)"
		methods := []*domain.PaymentMethod{
			{ID: "pm-1", Name: "Invoice", DistinguishableName: &label, Active: true, Position: 1},
			{ID: "pm-2", Name: "Cash", Active: true, Position: 2},
		}
		for _, m := range methods {
			if err := repo.SavePaymentMethod(ctx, m); err != nil {
				t.Fatalf("SavePaymentMethod failed: %v", err)
			}
		}

		loaded, err := repo.GetPaymentMethods(ctx, []string{"pm-1", "pm-2"})
		if err != nil {
			t.Fatalf("GetPaymentMethods failed: %v", err)
		}
		if len(loaded) != 2 {
			t.Fatalf("expected 2 methods, got %d", len(loaded))
		}

		if got := loaded[0].GetTranslation("distinguishableName"); got == nil || *got != label {
			t.Errorf("expected translated distinguishable name, got %v", got)
		}
		if loaded[1].DistinguishableName != nil {
			t.Error("expected unset distinguishable name")
		}
		if loaded[1].GetTranslation("distinguishableName") != nil {
			t.Error("expected unset translated distinguishable name")
		}
		if got := loaded[1].GetTranslation("name"); got == nil || *got != "Cash" {
			t.Errorf("expected translated name Cash, got %v", got)
		}
	})

	t.Run("RuleConditions", func(t *testing.T) {
		root := "cond-root"
		conditions := []*domain.RuleCondition{
			{ID: root, Type: "orContainer", Position: 0},
			{ID: "cond-b", Type: "lineItemOfType", ParentID: &root, Value: json.RawMessage(`{"lineItemType":"promotion"}`), Position: 2},
			{ID: "cond-a", Type: "lineItemOfType", ParentID: &root, Value: json.RawMessage(`{"lineItemType":"product"}`), Position: 1},
		}

		if err := repo.ReplaceRuleConditions(ctx, "rule-1", conditions); err != nil {
			t.Fatalf("ReplaceRuleConditions failed: %v", err)
		}

		loaded, err := repo.ListRuleConditions(ctx, "rule-1")
		if err != nil {
			t.Fatalf("ListRuleConditions failed: %v", err)
		}
		if len(loaded) != 3 {
			t.Fatalf("expected 3 conditions, got %d", len(loaded))
		}
		if loaded[0].ID != root || loaded[1].ID != "cond-a" || loaded[2].ID != "cond-b" {
			t.Errorf("unexpected order: %s, %s, %s", loaded[0].ID, loaded[1].ID, loaded[2].ID)
		}
		if loaded[0].Value != nil {
			t.Errorf("expected nil value for container, got %s", loaded[0].Value)
		}
		if string(loaded[1].Value) != `{"lineItemType":"product"}` {
			t.Errorf("unexpected value: %s", loaded[1].Value)
		}

		// Replacing drops the previous tree.
		if err := repo.ReplaceRuleConditions(ctx, "rule-1", conditions[:1]); err != nil {
			t.Fatalf("ReplaceRuleConditions failed: %v", err)
		}
		loaded, _ = repo.ListRuleConditions(ctx, "rule-1")
		if len(loaded) != 1 {
			t.Errorf("expected 1 condition after replace, got %d", len(loaded))
		}
	})

	t.Run("RuleConditionValidation", func(t *testing.T) {
		if err := repo.ReplaceRuleConditions(ctx, "", nil); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		err := repo.ReplaceRuleConditions(ctx, "rule-2", []*domain.RuleCondition{{ID: "x"}})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := repo.ListRuleConditions(ctx, ""); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("EmptyLookups", func(t *testing.T) {
		products, err := repo.GetProducts(ctx, nil)
		if err != nil || products != nil {
			t.Errorf("expected nil, nil; got %v, %v", products, err)
		}
		methods, err := repo.GetPaymentMethods(ctx, nil)
		if err != nil || methods != nil {
			t.Errorf("expected nil, nil; got %v, %v", methods, err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		driver   string
		input    string
		expected string
	}{
		{"postgres", "SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"postgres", "INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"postgres", "SELECT * FROM t", "SELECT * FROM t"},
		{"sqlite", "SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = ?"},
	}

	for _, tt := range tests {
		result := Rebind(tt.driver, tt.input)
		if result != tt.expected {
			t.Errorf("Rebind(%s, %q) = %q, want %q", tt.driver, tt.input, result, tt.expected)
		}
	}
}
