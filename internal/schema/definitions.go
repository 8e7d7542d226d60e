package schema

// Entity names.
const (
	EntityProduct           = "product"
	EntityProductVisibility = "product_visibility"
	EntityProductReview     = "product_review"
	EntityCategory          = "category"
	EntityPaymentMethod     = "payment_method"
	EntityRule              = "rule"
	EntityRuleCondition     = "rule_condition"
)

// Product describes the product table and its search associations.
func Product() *Definition {
	return &Definition{
		Entity: EntityProduct,
		Table:  "product",
		Fields: []Field{
			{Name: "id", Column: "id", Type: TypeID, Flags: PrimaryKey | Required},
			{Name: "parentId", Column: "parent_id", Type: TypeFK},
			{Name: "productNumber", Column: "product_number", Type: TypeString, Flags: Required},
			{Name: "name", Column: "name", Type: TypeString, Flags: Required},
			{Name: "active", Column: "active", Type: TypeBool},
			{Name: "stock", Column: "stock", Type: TypeInt},
			{Name: "price", Column: "price", Type: TypeFloat},
			{Name: "manufacturerId", Column: "manufacturer_id", Type: TypeFK},
			{Name: "createdAt", Column: "created_at", Type: TypeDateTime, Flags: Required},
			{Name: "parent", Type: TypeAssociation, Relation: &Relation{
				Kind: ParentOf, Reference: EntityProduct, LocalColumn: "parent_id", ReferenceColumn: "id",
			}},
			{Name: "children", Type: TypeAssociation, Relation: &Relation{
				Kind: ChildrenOf, Reference: EntityProduct, LocalColumn: "id", ReferenceColumn: "parent_id",
			}},
			{Name: "visibilities", Type: TypeAssociation, Relation: &Relation{
				Kind: OneToMany, Reference: EntityProductVisibility, LocalColumn: "id", ReferenceColumn: "product_id",
			}},
			{Name: "categoriesRo", Type: TypeAssociation, Relation: &Relation{
				Kind: ManyToMany, Reference: EntityCategory, LocalColumn: "id", ReferenceColumn: "id",
				MappingTable: "product_category_tree", MappingLocal: "product_id", MappingReference: "category_id",
			}},
			{Name: "reviews", Type: TypeAssociation, Relation: &Relation{
				Kind: OneToMany, Reference: EntityProductReview, LocalColumn: "id", ReferenceColumn: "product_id",
			}},
		},
	}
}

// ProductVisibility describes per sales channel product visibility.
func ProductVisibility() *Definition {
	return &Definition{
		Entity: EntityProductVisibility,
		Table:  "product_visibility",
		Parent: EntityProduct,
		Fields: []Field{
			{Name: "id", Column: "id", Type: TypeID, Flags: PrimaryKey | Required},
			{Name: "productId", Column: "product_id", Type: TypeFK, Flags: Required},
			{Name: "salesChannelId", Column: "sales_channel_id", Type: TypeFK, Flags: Required},
			{Name: "visibility", Column: "visibility", Type: TypeInt, Flags: Required},
			{Name: "product", Type: TypeAssociation, Relation: &Relation{
				Kind: ManyToOne, Reference: EntityProduct, LocalColumn: "product_id", ReferenceColumn: "id",
			}},
		},
	}
}

// Category is only known to the search layer through the product category tree.
func Category() *Definition {
	return &Definition{
		Entity: EntityCategory,
		Table:  "category",
		Fields: []Field{
			{Name: "id", Column: "id", Type: TypeID, Flags: PrimaryKey | Required},
			{Name: "parentId", Column: "parent_id", Type: TypeFK},
			{Name: "name", Column: "name", Type: TypeString},
		},
	}
}

// ProductReview describes customer reviews.
func ProductReview() *Definition {
	return &Definition{
		Entity: EntityProductReview,
		Table:  "product_review",
		Parent: EntityProduct,
		Fields: []Field{
			{Name: "id", Column: "id", Type: TypeID, Flags: PrimaryKey | Required},
			{Name: "productId", Column: "product_id", Type: TypeFK, Flags: Required},
			{Name: "customerId", Column: "customer_id", Type: TypeFK},
			{Name: "salesChannelId", Column: "sales_channel_id", Type: TypeFK, Flags: Required},
			{Name: "title", Column: "title", Type: TypeString, Flags: Required},
			{Name: "content", Column: "content", Type: TypeString, Flags: Required},
			{Name: "points", Column: "points", Type: TypeFloat},
			{Name: "status", Column: "status", Type: TypeBool},
			{Name: "createdAt", Column: "created_at", Type: TypeDateTime, Flags: Required},
			{Name: "product", Type: TypeAssociation, Relation: &Relation{
				Kind: ManyToOne, Reference: EntityProduct, LocalColumn: "product_id", ReferenceColumn: "id",
			}},
		},
	}
}

// PaymentMethod describes payment methods.
func PaymentMethod() *Definition {
	return &Definition{
		Entity: EntityPaymentMethod,
		Table:  "payment_method",
		Fields: []Field{
			{Name: "id", Column: "id", Type: TypeID, Flags: PrimaryKey | Required},
			{Name: "name", Column: "name", Type: TypeString, Flags: Required},
			{Name: "distinguishableName", Column: "distinguishable_name", Type: TypeString},
			{Name: "description", Column: "description", Type: TypeString},
			{Name: "active", Column: "active", Type: TypeBool},
			{Name: "position", Column: "position", Type: TypeInt},
		},
	}
}

// Rule is the owner of a condition tree.
func Rule() *Definition {
	return &Definition{
		Entity: EntityRule,
		Table:  "rule",
		Fields: []Field{
			{Name: "id", Column: "id", Type: TypeID, Flags: PrimaryKey | Required},
			{Name: "name", Column: "name", Type: TypeString, Flags: Required},
			{Name: "conditions", Type: TypeAssociation, Relation: &Relation{
				Kind: OneToMany, Reference: EntityRuleCondition, LocalColumn: "id", ReferenceColumn: "rule_id",
			}},
		},
	}
}

// RuleCondition describes one node of a persisted rule tree.
func RuleCondition() *Definition {
	return &Definition{
		Entity: EntityRuleCondition,
		Table:  "rule_condition",
		Parent: EntityRule,
		Fields: []Field{
			{Name: "id", Column: "id", Type: TypeID, Flags: PrimaryKey | Required},
			{Name: "type", Column: "type", Type: TypeString, Flags: Required},
			{Name: "ruleId", Column: "rule_id", Type: TypeFK, Flags: Required},
			{Name: "parentId", Column: "parent_id", Type: TypeFK},
			{Name: "value", Column: "value", Type: TypeJSON},
			{Name: "position", Column: "position", Type: TypeInt},
			{Name: "rule", Type: TypeAssociation, Relation: &Relation{
				Kind: ManyToOne, Reference: EntityRule, LocalColumn: "rule_id", ReferenceColumn: "id",
			}},
			{Name: "parent", Type: TypeAssociation, Relation: &Relation{
				Kind: ParentOf, Reference: EntityRuleCondition, LocalColumn: "parent_id", ReferenceColumn: "id",
			}},
			{Name: "children", Type: TypeAssociation, Relation: &Relation{
				Kind: ChildrenOf, Reference: EntityRuleCondition, LocalColumn: "id", ReferenceColumn: "parent_id",
			}},
		},
	}
}

// Default returns the registry of all shopcore entities.
func Default() *Registry {
	r, err := NewRegistry(
		Product(),
		ProductVisibility(),
		Category(),
		ProductReview(),
		PaymentMethod(),
		Rule(),
		RuleCondition(),
	)
	if err != nil {
		// The built-in definitions are static; failing here is a programming error.
		panic(err)
	}
	return r
}
