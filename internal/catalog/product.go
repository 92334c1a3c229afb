package catalog

import (
	"time"

	"membersync/internal/logger"
	"membersync/pkg/models"
	"membersync/pkg/rules"
)

// Product is a catalog product as read for rule evaluation. Money columns
// are kept as the decimal text Postgres returns.
type Product struct {
	ID             string
	StoreID        string
	Title          string
	Price          string
	CompareAtPrice *string
	Tags           []string
	ProductType    string
	Vendor         string
	InventoryQty   int
	Status         string
	CreatedAt      time.Time
}

func (p Product) EntityID() string      { return p.ID }
func (p Product) EntityStoreID() string { return p.StoreID }

// ProductFields resolves the rule fields available on products.
var ProductFields = rules.FieldMap[Product]{
	"id":             func(p Product) any { return p.ID },
	"title":          func(p Product) any { return p.Title },
	"price":          func(p Product) any { return decimal(p.Price) },
	"compareAtPrice": func(p Product) any { return optionalDecimal(p.CompareAtPrice) },
	"tags":           func(p Product) any { return tags(p.Tags) },
	"productType":    func(p Product) any { return p.ProductType },
	"vendor":         func(p Product) any { return p.Vendor },
	"inventoryQty":   func(p Product) any { return float64(p.InventoryQty) },
	"status":         func(p Product) any { return p.Status },
	"createdAt":      func(p Product) any { return p.CreatedAt },
}.WithSnakeCaseAliases()

// NewProductEngine returns the rule engine used for product collections.
func NewProductEngine(log logger.Logger) *rules.Engine[Product] {
	return rules.NewEngine[Product](models.EntityTypeProduct, ProductFields, log)
}
