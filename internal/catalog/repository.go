package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"membersync/internal/constants"
	"membersync/pkg/metrics"
)

// ProductRepository reads products from Postgres. It implements the
// candidate source for collections.
type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// ListEntities returns every product of storeID. The full store is loaded
// because rule evaluation needs the complete candidate set.
func (r *ProductRepository) ListEntities(ctx context.Context, storeID string) (products []Product, err error) {
	defer observe("list_products", time.Now(), &err)

	query := `
		SELECT id, store_id, title, price::text, compare_at_price::text, tags,
		       product_type, vendor, inventory_qty, status, created_at
		FROM products
		WHERE store_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products = make([]Product, 0)
	for rows.Next() {
		var (
			p              Product
			compareAtPrice sql.NullString
		)
		if err := rows.Scan(
			&p.ID,
			&p.StoreID,
			&p.Title,
			&p.Price,
			&compareAtPrice,
			pq.Array(&p.Tags),
			&p.ProductType,
			&p.Vendor,
			&p.InventoryQty,
			&p.Status,
			&p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if compareAtPrice.Valid {
			p.CompareAtPrice = &compareAtPrice.String
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return products, nil
}

// CustomerRepository reads customers from Postgres. It implements the
// candidate source for segments.
type CustomerRepository struct {
	db *sql.DB
}

func NewCustomerRepository(db *sql.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) ListEntities(ctx context.Context, storeID string) (customers []Customer, err error) {
	defer observe("list_customers", time.Now(), &err)

	query := `
		SELECT id, store_id, email, total_spent::text, orders_count, tags,
		       accepts_marketing, created_at, last_order_at
		FROM customers
		WHERE store_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	customers = make([]Customer, 0)
	for rows.Next() {
		var (
			c           Customer
			lastOrderAt sql.NullTime
		)
		if err := rows.Scan(
			&c.ID,
			&c.StoreID,
			&c.Email,
			&c.TotalSpent,
			&c.OrdersCount,
			pq.Array(&c.Tags),
			&c.AcceptsMarketing,
			&c.CreatedAt,
			&lastOrderAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		if lastOrderAt.Valid {
			t := lastOrderAt.Time
			c.LastOrderAt = &t
		}
		customers = append(customers, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return customers, nil
}

// StoreRepository lists the tenants known to the platform.
type StoreRepository struct {
	db *sql.DB
}

func NewStoreRepository(db *sql.DB) *StoreRepository {
	return &StoreRepository{db: db}
}

func (r *StoreRepository) ListStoreIDs(ctx context.Context) (ids []string, err error) {
	defer observe("list_stores", time.Now(), &err)

	rows, err := r.db.QueryContext(ctx, `SELECT id FROM stores ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stores: %w", err)
	}
	defer rows.Close()

	ids = make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan store id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return ids, nil
}

func observe(operation string, start time.Time, err *error) {
	metrics.ObserveDatabaseQuery(constants.ServiceName, "postgres", operation, start, *err)
}
