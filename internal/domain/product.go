package domain

import "time"

// Product visibility levels, mirrored in product_visibility.visibility.
// A higher level includes the lower ones.
const (
	VisibilityLink   = 10
	VisibilitySearch = 20
	VisibilityAll    = 30
)

// Product is a sellable item. Variants point at their parent via ParentID.
type Product struct {
	ID             string              `json:"id" jsonapi:"primary,product"`
	ParentID       *string             `json:"parentId,omitempty" jsonapi:"attr,parentId,omitempty"`
	ProductNumber  string              `json:"productNumber" jsonapi:"attr,productNumber"`
	Name           string              `json:"name" jsonapi:"attr,name"`
	Active         bool                `json:"active" jsonapi:"attr,active"`
	Stock          int                 `json:"stock" jsonapi:"attr,stock"`
	Price          float64             `json:"price" jsonapi:"attr,price"`
	ManufacturerID string              `json:"manufacturerId,omitempty" jsonapi:"attr,manufacturerId,omitempty"`
	CategoryIDs    []string            `json:"categoryIds,omitempty" jsonapi:"attr,categoryIds,omitempty"` // denormalised category tree ("categoriesRo")
	Visibilities   []ProductVisibility `json:"visibilities,omitempty" jsonapi:"attr,visibilities,omitempty"`
	CreatedAt      time.Time           `json:"createdAt" jsonapi:"attr,createdAt,iso8601"`
}

// ProductVisibility controls where a product shows up in a sales channel.
type ProductVisibility struct {
	ProductID      string `json:"productId"`
	SalesChannelID string `json:"salesChannelId"`
	Visibility     int    `json:"visibility"`
}

// EntityName implements Resource.
func (p *Product) EntityName() string { return "product" }

// GetID implements Resource.
func (p *Product) GetID() string { return p.ID }

// ProductReview is a customer review of a product or one of its variants.
type ProductReview struct {
	ID             string    `json:"id" jsonapi:"primary,product_review"`
	ProductID      string    `json:"productId" jsonapi:"attr,productId"`
	CustomerID     *string   `json:"customerId,omitempty" jsonapi:"attr,customerId,omitempty"`
	SalesChannelID string    `json:"salesChannelId" jsonapi:"attr,salesChannelId"`
	Title          string    `json:"title" jsonapi:"attr,title"`
	Content        string    `json:"content" jsonapi:"attr,content"`
	Points         float64   `json:"points" jsonapi:"attr,points"`
	Status         bool      `json:"status" jsonapi:"attr,status"` // published
	CreatedAt      time.Time `json:"createdAt" jsonapi:"attr,createdAt,iso8601"`
}

// EntityName implements Resource.
func (r *ProductReview) EntityName() string { return "product_review" }

// GetID implements Resource.
func (r *ProductReview) GetID() string { return r.ID }
