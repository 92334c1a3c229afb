package catalog

import (
	"time"

	"membersync/internal/logger"
	"membersync/pkg/models"
	"membersync/pkg/rules"
)

type Customer struct {
	ID               string
	StoreID          string
	Email            string
	TotalSpent       string
	OrdersCount      int
	Tags             []string
	AcceptsMarketing bool
	CreatedAt        time.Time
	LastOrderAt      *time.Time
}

func (c Customer) EntityID() string      { return c.ID }
func (c Customer) EntityStoreID() string { return c.StoreID }

// CustomerFields resolves the rule fields available on customers.
var CustomerFields = rules.FieldMap[Customer]{
	"id":               func(c Customer) any { return c.ID },
	"email":            func(c Customer) any { return c.Email },
	"totalSpent":       func(c Customer) any { return decimal(c.TotalSpent) },
	"ordersCount":      func(c Customer) any { return float64(c.OrdersCount) },
	"tags":             func(c Customer) any { return tags(c.Tags) },
	"acceptsMarketing": func(c Customer) any { return c.AcceptsMarketing },
	"createdAt":        func(c Customer) any { return c.CreatedAt },
	"lastOrderAt": func(c Customer) any {
		if c.LastOrderAt == nil {
			return nil
		}
		return *c.LastOrderAt
	},
}.WithSnakeCaseAliases()

// NewCustomerEngine returns the rule engine used for customer segments.
func NewCustomerEngine(log logger.Logger) *rules.Engine[Customer] {
	return rules.NewEngine[Customer](models.EntityTypeCustomer, CustomerFields, log)
}
