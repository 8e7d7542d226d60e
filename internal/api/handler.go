package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/shopcore/internal/cms"
	"github.com/opensource-finance/shopcore/internal/criteria"
	"github.com/opensource-finance/shopcore/internal/domain"
	"github.com/opensource-finance/shopcore/internal/feature"
	"github.com/opensource-finance/shopcore/internal/listing"
	"github.com/opensource-finance/shopcore/internal/payment"
	"github.com/opensource-finance/shopcore/internal/repository"
	"github.com/opensource-finance/shopcore/internal/rules"
	"github.com/opensource-finance/shopcore/internal/schema"
	"github.com/opensource-finance/shopcore/internal/worker"
)

// maxBodySize bounds request bodies read by handlers.
const maxBodySize = 1 << 20

// Searcher runs criteria searches.
type Searcher interface {
	Search(ctx context.Context, entity string, c *criteria.Criteria) (*criteria.SearchResult, error)
}

// Dependencies are the collaborators of the HTTP handlers. Nil components
// disable the routes that need them with 503.
type Dependencies struct {
	Repo      domain.Repository
	Cache     domain.Cache
	Bus       domain.EventBus
	Search    Searcher
	Rules     *rules.Engine
	Features  *feature.Service
	Listing   *listing.Route
	Payments  *payment.Loader
	BuyBox    *cms.BuyBoxResolver
	Factories *ResponseFactoryRegistry
}

// Handler holds dependencies for API handlers.
type Handler struct {
	deps    Dependencies
	version string
}

// NewHandler creates a new API handler.
func NewHandler(deps Dependencies, version string) *Handler {
	if deps.Factories == nil {
		deps.Factories = DefaultResponseFactories()
	}
	return &Handler{deps: deps, version: version}
}

// respond writes payload with the negotiated response factory.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := responseFactory(r.Context()).Write(w, r, status, payload); err != nil {
		slog.Error("failed to write response",
			"path", r.URL.Path,
			"error", err,
		)
	}
}

func unavailable(w http.ResponseWriter, component string) {
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"error": component + " not available",
	})
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBodySize))
}

// ============================================================================
// STORE API
// ============================================================================

// ProductListing handles POST /store-api/product-listing/{categoryId}.
func (h *Handler) ProductListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.deps.Listing == nil {
		unavailable(w, "listing")
		return
	}

	categoryID := chi.URLParam(r, "categoryId")
	if categoryID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "category id is required",
		})
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "failed to read request body",
		})
		return
	}
	req, err := listing.ParseRequest(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	sc := GetSalesChannel(ctx)
	result, err := h.deps.Listing.Load(ctx, categoryID, req, sc)
	if err != nil {
		if errors.Is(err, listing.ErrInvalidRequest) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("failed to load product listing",
			"category_id", categoryID,
			"sales_channel_id", sc.SalesChannelID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load product listing",
		})
		return
	}

	h.respond(w, r, http.StatusOK, result)
}

// PaymentMethods handles GET /store-api/payment-method.
func (h *Handler) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	if h.deps.Payments == nil {
		unavailable(w, "payment methods")
		return
	}

	result, err := h.deps.Payments.Load(r.Context(), payment.ActiveCriteria())
	if err != nil {
		slog.Error("failed to load payment methods", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load payment methods",
		})
		return
	}

	h.respond(w, r, http.StatusOK, result)
}

// BuyBox handles GET /store-api/product/{productId}/buy-box.
// The product is the page entity; the slot maps it through the optional
// "path" query parameter, "product" by default.
func (h *Handler) BuyBox(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.deps.BuyBox == nil || h.deps.Search == nil || h.deps.Repo == nil {
		unavailable(w, "buy box")
		return
	}

	productID := chi.URLParam(r, "productId")
	sc := GetSalesChannel(ctx)

	c := criteria.New(productID)
	c.AddFilter(criteria.ProductAvailable(sc.SalesChannelID, domain.VisibilityLink))
	found, err := h.deps.Search.Search(ctx, schema.EntityProduct, c)
	if err != nil {
		slog.Error("failed to search product", "product_id", productID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load product",
		})
		return
	}
	if len(found.IDs) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "product not found",
		})
		return
	}

	products, err := h.deps.Repo.GetProducts(ctx, found.IDs[:1])
	if err != nil {
		slog.Error("failed to load product", "product_id", productID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load product",
		})
		return
	}
	if len(products) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "product not found",
		})
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		path = schema.EntityProduct
	}

	slot := &cms.Slot{
		ID:   productID + "-buy-box",
		Type: h.deps.BuyBox.Type(),
		Config: map[string]cms.FieldConfig{
			"product": {Source: cms.SourceMapped, Value: path},
		},
	}

	rc := cms.ResolverContext{SalesChannel: sc, Entity: products[0]}
	if err := h.deps.BuyBox.Enrich(ctx, slot, rc); err != nil {
		if errors.Is(err, schema.ErrUnknownField) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("failed to resolve buy box", "product_id", productID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to resolve buy box",
		})
		return
	}

	h.respond(w, r, http.StatusOK, slot)
}

// ============================================================================
// ADMIN API
// ============================================================================

// SaveProduct handles POST /api/product.
func (h *Handler) SaveProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if !h.decodeEntity(w, r, &p) {
		return
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	h.saveEntity(w, r, &p, func(ctx context.Context) error {
		return h.deps.Repo.SaveProduct(ctx, &p)
	})
}

// SaveReview handles POST /api/product-review.
func (h *Handler) SaveReview(w http.ResponseWriter, r *http.Request) {
	var review domain.ProductReview
	if !h.decodeEntity(w, r, &review) {
		return
	}
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	h.saveEntity(w, r, &review, func(ctx context.Context) error {
		return h.deps.Repo.SaveReview(ctx, &review)
	})
}

// SavePaymentMethod handles POST /api/payment-method.
func (h *Handler) SavePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var m domain.PaymentMethod
	if !h.decodeEntity(w, r, &m) {
		return
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	h.saveEntity(w, r, &m, func(ctx context.Context) error {
		return h.deps.Repo.SavePaymentMethod(ctx, &m)
	})
}

func (h *Handler) decodeEntity(w http.ResponseWriter, r *http.Request, v any) bool {
	if h.deps.Repo == nil {
		unavailable(w, "repository")
		return false
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return false
	}
	return true
}

func (h *Handler) saveEntity(w http.ResponseWriter, r *http.Request, res domain.Resource, save func(ctx context.Context) error) {
	if err := save(r.Context()); err != nil {
		if errors.Is(err, repository.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("failed to save entity",
			"entity", res.EntityName(),
			"id", res.GetID(),
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save " + res.EntityName(),
		})
		return
	}

	slog.Info("entity saved", "entity", res.EntityName(), "id", res.GetID())
	h.respond(w, r, http.StatusCreated, res)
}

// ListRuleConditions handles GET /api/rule/{ruleId}/conditions.
func (h *Handler) ListRuleConditions(w http.ResponseWriter, r *http.Request) {
	if h.deps.Repo == nil {
		unavailable(w, "repository")
		return
	}

	ruleID := chi.URLParam(r, "ruleId")
	conditions, err := h.deps.Repo.ListRuleConditions(r.Context(), ruleID)
	if err != nil {
		slog.Error("failed to list rule conditions", "rule_id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list rule conditions",
		})
		return
	}
	if conditions == nil {
		conditions = []*domain.RuleCondition{}
	}

	h.respond(w, r, http.StatusOK, conditions)
}

// ReplaceRuleConditions handles POST /api/rule/{ruleId}/conditions.
// The body is the complete condition tree of the rule. It is validated by
// hydrating it before anything is written.
func (h *Handler) ReplaceRuleConditions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.deps.Repo == nil || h.deps.Rules == nil {
		unavailable(w, "rule engine")
		return
	}

	ruleID := chi.URLParam(r, "ruleId")

	var conditions []*domain.RuleCondition
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&conditions); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	for _, c := range conditions {
		if c == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "conditions must not be null",
			})
			return
		}
		c.RuleID = ruleID
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
	}

	if _, err := h.deps.Rules.Registry().Build(conditions); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := h.deps.Repo.ReplaceRuleConditions(ctx, ruleID, conditions); err != nil {
		if errors.Is(err, repository.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("failed to save rule conditions", "rule_id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule conditions",
		})
		return
	}

	// Evict locally, then tell the other instances.
	h.deps.Rules.Invalidate(ruleID)
	if h.deps.Bus != nil {
		if err := worker.PublishRuleChanged(ctx, h.deps.Bus, ruleID); err != nil {
			slog.Warn("failed to publish rule change", "rule_id", ruleID, "error", err)
		}
	}

	slog.Info("rule conditions replaced", "rule_id", ruleID, "count", len(conditions))
	h.respond(w, r, http.StatusOK, conditions)
}

// MatchRequest is the request body for POST /api/rule/{ruleId}/match.
// LineItem selects a line item scope, Cart a cart scope; with neither the
// rule is evaluated in checkout scope.
type MatchRequest struct {
	SalesChannelID string           `json:"salesChannelId,omitempty"`
	CustomerID     string           `json:"customerId,omitempty"`
	LineItem       *domain.LineItem `json:"lineItem,omitempty"`
	Cart           *domain.Cart     `json:"cart,omitempty"`
}

// Scope builds the rule scope described by the request.
func (m MatchRequest) Scope() (rules.Scope, error) {
	sc := domain.SalesChannelContext{
		SalesChannelID: m.SalesChannelID,
		Origin:         domain.OriginAPI,
	}
	if m.CustomerID != "" {
		sc.Customer = &domain.Customer{ID: m.CustomerID}
	}

	switch {
	case m.LineItem != nil && m.Cart != nil:
		return nil, fmt.Errorf("lineItem and cart are mutually exclusive")
	case m.LineItem != nil:
		return rules.LineItemScope{LineItem: *m.LineItem, Context: sc}, nil
	case m.Cart != nil:
		return rules.CartScope{Cart: *m.Cart, Context: sc}, nil
	}
	return rules.CheckoutScope{Context: sc}, nil
}

// MatchResponse is the response for POST /api/rule/{ruleId}/match.
type MatchResponse struct {
	RuleID   string   `json:"ruleId"`
	Matches  bool     `json:"matches"`
	Messages []string `json:"messages"`
}

// MatchRule handles POST /api/rule/{ruleId}/match.
func (h *Handler) MatchRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.deps.Rules == nil {
		unavailable(w, "rule engine")
		return
	}

	ruleID := chi.URLParam(r, "ruleId")

	var req MatchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	scope, err := req.Scope()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	m, err := h.deps.Rules.Match(ctx, ruleID, scope)
	if err != nil {
		if errors.Is(err, rules.ErrUnknownType) || errors.Is(err, rules.ErrInvalidCondition) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("failed to match rule", "rule_id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to match rule",
		})
		return
	}

	messages := m.Messages
	if messages == nil {
		messages = []string{}
	}
	h.respond(w, r, http.StatusOK, MatchResponse{
		RuleID:   ruleID,
		Matches:  m.Matches,
		Messages: messages,
	})
}

// ListFeatures handles GET /api/_info/features.
func (h *Handler) ListFeatures(w http.ResponseWriter, r *http.Request) {
	if h.deps.Features == nil {
		unavailable(w, "feature flags")
		return
	}
	h.respond(w, r, http.StatusOK, map[string]any{
		"features": h.deps.Features.List(r.Context()),
	})
}

// FeatureRequest is the request body for PATCH /api/_action/feature/{name}.
// A null active removes the runtime override.
type FeatureRequest struct {
	Active *bool `json:"active"`
}

// ToggleFeature handles PATCH /api/_action/feature/{name}.
func (h *Handler) ToggleFeature(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.deps.Features == nil {
		unavailable(w, "feature flags")
		return
	}

	name := feature.Normalize(chi.URLParam(r, "name"))
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "feature name is required",
		})
		return
	}

	var req FeatureRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	var err error
	if req.Active == nil {
		err = h.deps.Features.Reset(ctx, name)
	} else {
		err = h.deps.Features.SetActive(ctx, name, *req.Active)
	}
	if err != nil {
		slog.Error("failed to toggle feature", "feature", name, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
		return
	}

	h.respond(w, r, http.StatusOK, map[string]any{
		"name":   name,
		"active": h.deps.Features.IsActive(ctx, name),
	})
}

// ============================================================================
// PROBES
// ============================================================================

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.deps.Repo != nil {
		if err := h.deps.Repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.deps.Cache != nil {
		if err := h.deps.Cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.deps.Bus != nil {
		if err := h.deps.Bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
