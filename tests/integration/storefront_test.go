//go:build integration
// +build integration

// Package integration provides end-to-end tests against a running shopcore
// server.
//
// Run with: SHOPCORE_TEST_URL=http://localhost:8080 go test -tags=integration -v ./tests/integration/...
//
// Every test seeds the data it needs through the admin API under ids that
// are unique per run, so the suite can be repeated against the same
// database.
//
// UNDERSTANDING THE DOMAIN:
//
//  1. SALES CHANNEL: a storefront. Store API calls name it with the
//     sw-access-key header; products are visible per sales channel.
//
//  2. LISTING: the products of a category visible in the sales channel,
//     with paging, sorting, manufacturer filter and aggregations.
//
//  3. RULE: a persisted condition tree evaluated against a line item, a
//     cart or the checkout.
//
//  4. FEATURE FLAG: FEATURE_NEXT_15170 fills empty payment method
//     distinguishable names from their names.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL      string
	SalesChannel string
	RunID        string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("SHOPCORE_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{
		BaseURL:      baseURL,
		SalesChannel: "integration-sc",
		RunID:        fmt.Sprintf("run-%d", time.Now().UnixNano()),
	}
}

// id scopes an identifier to the current run.
func (c TestConfig) id(name string) string {
	return c.RunID + "-" + name
}

// ============================================================================
// API Request/Response Types (matching the shopcore API contract)
// ============================================================================

type Product struct {
	ID             string       `json:"id"`
	ParentID       *string      `json:"parentId,omitempty"`
	ProductNumber  string       `json:"productNumber"`
	Name           string       `json:"name"`
	Active         bool         `json:"active"`
	Price          float64      `json:"price"`
	ManufacturerID string       `json:"manufacturerId,omitempty"`
	CategoryIDs    []string     `json:"categoryIds"`
	Visibilities   []Visibility `json:"visibilities"`
}

type Visibility struct {
	SalesChannelID string `json:"salesChannelId"`
	Visibility     int    `json:"visibility"`
}

type Review struct {
	ProductID      string  `json:"productId"`
	SalesChannelID string  `json:"salesChannelId"`
	CustomerID     *string `json:"customerId,omitempty"`
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	Status         bool    `json:"status"`
}

type ListingResult struct {
	Elements []struct {
		ID string `json:"id"`
	} `json:"elements"`
	Total          int                        `json:"total"`
	CurrentFilters map[string]json.RawMessage `json:"currentFilters"`
	Aggregations   map[string]json.RawMessage `json:"aggregations"`
}

type BuyBoxSlot struct {
	Type string `json:"type"`
	Data struct {
		ProductID    string `json:"productId"`
		TotalReviews int    `json:"totalReviews"`
	} `json:"data"`
}

type MatchResult struct {
	RuleID   string   `json:"ruleId"`
	Matches  bool     `json:"matches"`
	Messages []string `json:"messages"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func call(t *testing.T, config TestConfig, method, path string, body any, headers map[string]string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequest(method, config.BaseURL+path, reader)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	return resp.StatusCode, respBody
}

func expectJSON(t *testing.T, status int, body []byte, wantStatus int, out any) {
	t.Helper()
	if status != wantStatus {
		t.Fatalf("Expected status %d, got %d: %s", wantStatus, status, string(body))
	}
	if out == nil {
		return
	}
	if err := json.Unmarshal(body, out); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(body))
	}
}

func storefront(config TestConfig) map[string]string {
	return map[string]string{"sw-access-key": config.SalesChannel}
}

// seedCategory creates two visible products and one hidden one in a new
// category and returns the category id.
func seedCategory(t *testing.T, config TestConfig) string {
	t.Helper()
	category := config.id("cat")

	products := []Product{
		{ID: config.id("alpha"), Name: "Alpha", Price: 10, ManufacturerID: config.id("m1")},
		{ID: config.id("bravo"), Name: "Bravo", Price: 20, ManufacturerID: config.id("m2")},
	}
	for i := range products {
		products[i].ProductNumber = products[i].ID
		products[i].Active = true
		products[i].CategoryIDs = []string{category}
		products[i].Visibilities = []Visibility{{SalesChannelID: config.SalesChannel, Visibility: 30}}
	}

	hidden := Product{
		ID: config.id("hidden"), ProductNumber: config.id("hidden"), Name: "Hidden", Active: true,
		CategoryIDs:  []string{category},
		Visibilities: []Visibility{{SalesChannelID: "another-sc", Visibility: 30}},
	}
	products = append(products, hidden)

	for _, p := range products {
		status, body := call(t, config, http.MethodPost, "/api/product", p, nil)
		expectJSON(t, status, body, http.StatusCreated, nil)
	}
	return category
}

// ============================================================================
// SCENARIO 1: Category listing
// ============================================================================

func TestCategoryListing(t *testing.T) {
	/*
	   SCENARIO: A shopper opens a category with two products visible in
	   their sales channel and one that is only sold elsewhere.

	   EXPECTED BEHAVIOR:
	   - only the two visible products are listed, sorted by name
	   - the category is recorded as navigationId
	   - the manufacturer aggregation spans the whole listing
	*/
	config := getTestConfig()
	category := seedCategory(t, config)

	var result ListingResult
	status, body := call(t, config, http.MethodPost, "/store-api/product-listing/"+category, map[string]any{}, storefront(config))
	expectJSON(t, status, body, http.StatusOK, &result)

	if result.Total != 2 || len(result.Elements) != 2 {
		t.Fatalf("Expected 2 products, got %d (%d elements)", result.Total, len(result.Elements))
	}
	if result.Elements[0].ID != config.id("alpha") || result.Elements[1].ID != config.id("bravo") {
		t.Errorf("Expected alpha, bravo; got %+v", result.Elements)
	}
	if string(result.CurrentFilters["navigationId"]) != fmt.Sprintf("%q", category) {
		t.Errorf("Expected navigationId %s, got %s", category, result.CurrentFilters["navigationId"])
	}
	if _, ok := result.Aggregations["manufacturer"]; !ok {
		t.Error("Expected manufacturer aggregation")
	}

	t.Run("ManufacturerFilter", func(t *testing.T) {
		var filtered ListingResult
		status, body := call(t, config, http.MethodPost, "/store-api/product-listing/"+category,
			map[string]any{"manufacturer": config.id("m2")}, storefront(config))
		expectJSON(t, status, body, http.StatusOK, &filtered)

		if len(filtered.Elements) != 1 || filtered.Elements[0].ID != config.id("bravo") {
			t.Errorf("Expected only bravo, got %+v", filtered.Elements)
		}
	})

	t.Run("PriceDescending", func(t *testing.T) {
		var sorted ListingResult
		status, body := call(t, config, http.MethodPost, "/store-api/product-listing/"+category,
			map[string]any{"order": "price-desc"}, storefront(config))
		expectJSON(t, status, body, http.StatusOK, &sorted)

		if len(sorted.Elements) != 2 || sorted.Elements[0].ID != config.id("bravo") {
			t.Errorf("Expected bravo first, got %+v", sorted.Elements)
		}
	})
}

// ============================================================================
// SCENARIO 2: Buy box review count
// ============================================================================

func TestBuyBoxReviewCount(t *testing.T) {
	/*
	   SCENARIO: A product page shows the number of reviews of the product
	   and its variants.

	   EXPECTED BEHAVIOR:
	   - published reviews of the product and its variant count for everyone
	   - an unpublished review counts only for the customer who wrote it
	*/
	config := getTestConfig()
	category := seedCategory(t, config)
	parent := config.id("alpha")
	customer := config.id("customer")

	variant := Product{
		ID: config.id("alpha-variant"), ParentID: &parent, ProductNumber: config.id("alpha-variant"),
		Name: "Alpha Variant", Active: true, CategoryIDs: []string{category},
		Visibilities: []Visibility{{SalesChannelID: config.SalesChannel, Visibility: 10}},
	}
	status, body := call(t, config, http.MethodPost, "/api/product", variant, nil)
	expectJSON(t, status, body, http.StatusCreated, nil)

	reviews := []Review{
		{ProductID: parent, Status: true},
		{ProductID: variant.ID, Status: true},
		{ProductID: parent, Status: false, CustomerID: &customer},
	}
	for _, r := range reviews {
		r.SalesChannelID = config.SalesChannel
		r.Title = "Review"
		r.Content = "Integration review"
		status, body := call(t, config, http.MethodPost, "/api/product-review", r, nil)
		expectJSON(t, status, body, http.StatusCreated, nil)
	}

	var anonymous BuyBoxSlot
	status, body = call(t, config, http.MethodGet, "/store-api/product/"+parent+"/buy-box", nil, storefront(config))
	expectJSON(t, status, body, http.StatusOK, &anonymous)
	if anonymous.Type != "buy-box" || anonymous.Data.ProductID != parent {
		t.Errorf("Unexpected slot %+v", anonymous)
	}
	if anonymous.Data.TotalReviews != 2 {
		t.Errorf("Expected 2 reviews, got %d", anonymous.Data.TotalReviews)
	}

	headers := storefront(config)
	headers["X-Customer-ID"] = customer
	var own BuyBoxSlot
	status, body = call(t, config, http.MethodGet, "/store-api/product/"+parent+"/buy-box", nil, headers)
	expectJSON(t, status, body, http.StatusOK, &own)
	if own.Data.TotalReviews != 3 {
		t.Errorf("Expected 3 reviews for the author, got %d", own.Data.TotalReviews)
	}
}

// ============================================================================
// SCENARIO 3: Rule evaluation
// ============================================================================

func TestRuleLifecycle(t *testing.T) {
	/*
	   SCENARIO: An admin configures a "line item is a product" rule, then
	   changes it to "line item is a promotion".

	   EXPECTED BEHAVIOR:
	   - a product line item matches the first version, not the second
	   - the type message is always reported, even on a match
	   - a cart scope never matches a line item rule
	*/
	config := getTestConfig()
	ruleID := config.id("rule")

	replace := func(lineItemType string) {
		conditions := []map[string]any{
			{"type": "orContainer", "id": config.id("or"), "position": 0},
			{"type": "lineItemOfType", "parentId": config.id("or"), "position": 1,
				"value": map[string]any{"lineItemType": lineItemType}},
		}
		status, body := call(t, config, http.MethodPost, "/api/rule/"+ruleID+"/conditions", conditions, nil)
		expectJSON(t, status, body, http.StatusOK, nil)
	}
	match := func(payload map[string]any) MatchResult {
		var result MatchResult
		status, body := call(t, config, http.MethodPost, "/api/rule/"+ruleID+"/match", payload, nil)
		expectJSON(t, status, body, http.StatusOK, &result)
		return result
	}
	lineItem := map[string]any{"lineItem": map[string]any{"id": "li-1", "type": "product", "quantity": 1}}

	replace("product")
	result := match(lineItem)
	if !result.Matches {
		t.Errorf("Expected product line item to match, got %+v", result)
	}
	found := false
	for _, m := range result.Messages {
		found = found || m == "LineItem type does not match"
	}
	if !found {
		t.Errorf("Expected type message, got %v", result.Messages)
	}

	cart := match(map[string]any{"cart": map[string]any{"token": "t", "lineItems": []any{}}})
	if cart.Matches {
		t.Error("Expected cart scope not to match")
	}

	replace("promotion")
	if result := match(lineItem); result.Matches {
		t.Error("Expected replaced rule not to match a product line item")
	}
}

// ============================================================================
// SCENARIO 4: Feature flag and payment methods
// ============================================================================

func TestDistinguishablePaymentNames(t *testing.T) {
	/*
	   SCENARIO: FEATURE_NEXT_15170 is switched on at runtime.

	   EXPECTED BEHAVIOR:
	   - payment methods without a distinguishable name get their name
	   - switching the flag off again restores the stored values
	*/
	config := getTestConfig()
	methodID := config.id("invoice")

	status, body := call(t, config, http.MethodPost, "/api/payment-method",
		map[string]any{"id": methodID, "name": "Invoice", "active": true, "position": 99}, nil)
	expectJSON(t, status, body, http.StatusCreated, nil)

	find := func() map[string]any {
		var result struct {
			Elements []map[string]any `json:"elements"`
		}
		status, body := call(t, config, http.MethodGet, "/store-api/payment-method", nil, storefront(config))
		expectJSON(t, status, body, http.StatusOK, &result)
		for _, m := range result.Elements {
			if m["id"] == methodID {
				return m
			}
		}
		t.Fatalf("Payment method %s not listed", methodID)
		return nil
	}

	toggle := func(active any) {
		status, body := call(t, config, http.MethodPatch, "/api/_action/feature/FEATURE_NEXT_15170",
			map[string]any{"active": active}, nil)
		expectJSON(t, status, body, http.StatusOK, nil)
	}

	toggle(true)
	defer toggle(nil)

	if got := find()["distinguishableName"]; got != "Invoice" {
		t.Errorf("Expected distinguishableName Invoice, got %v", got)
	}

	toggle(false)
	if got := find()["distinguishableName"]; got != nil {
		t.Errorf("Expected no distinguishableName with the flag off, got %v", got)
	}
}

// ============================================================================
// SCENARIO 5: Error handling
// ============================================================================

func TestMissingSalesChannel_Error(t *testing.T) {
	config := getTestConfig()

	status, body := call(t, config, http.MethodPost, "/store-api/product-listing/any", map[string]any{}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("Expected 400 without sw-access-key, got %d: %s", status, string(body))
	}
}

func TestUnsupportedMediaType_Error(t *testing.T) {
	config := getTestConfig()

	headers := storefront(config)
	headers["Accept"] = "application/vnd.api+json, text/html"
	status, body := call(t, config, http.MethodGet, "/store-api/payment-method", nil, headers)
	if status != http.StatusUnsupportedMediaType {
		t.Fatalf("Expected 415, got %d: %s", status, string(body))
	}

	var resp map[string]string
	json.Unmarshal(body, &resp)
	want := "All provided media types are unsupported. (application/vnd.api+json, text/html)"
	if resp["error"] != want {
		t.Errorf("Expected error %q, got %q", want, resp["error"])
	}
}

func TestResponseHeaders(t *testing.T) {
	config := getTestConfig()

	req, _ := http.NewRequest(http.MethodGet, config.BaseURL+"/health", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}
	if resp.Header.Get("X-Trace-ID") == "" {
		t.Error("Expected X-Trace-ID header")
	}
}
