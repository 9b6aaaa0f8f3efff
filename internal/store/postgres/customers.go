package postgres

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/znz-systems/leadbridge/internal/models"
)

const customerColumns = `id, tenant_id, first_name, last_name, email, phone, address, source, notes, created_at, updated_at`

func (g *Gateway) FindCustomerByEmail(ctx context.Context, tenantID, email string) (*models.Customer, error) {
	c := &models.Customer{}
	err := g.q.QueryRowContext(ctx,
		`SELECT `+customerColumns+`
		 FROM customers
		 WHERE tenant_id = $1 AND email = $2 AND email <> ''`,
		tenantID, normalizeEmail(email),
	).Scan(
		&c.ID, &c.TenantID, &c.FirstName, &c.LastName, &c.Email, &c.Phone,
		&c.Address, &c.Source, &c.Notes, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCustomer inserts a customer, or returns the existing row when one with
// the same non-empty (tenant_id, email) already exists. The partial unique
// index customers_tenant_email_key makes this race-free; the no-op DO UPDATE
// is what lets RETURNING hand back the existing row.
func (g *Gateway) CreateCustomer(ctx context.Context, params models.CustomerCreateParams) (*models.Customer, bool, error) {
	c := &models.Customer{}
	var inserted bool
	err := g.q.QueryRowContext(ctx,
		`INSERT INTO customers (id, tenant_id, first_name, last_name, email, phone, address, source, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (tenant_id, email) WHERE email <> '' DO UPDATE
		 SET email = customers.email
		 RETURNING `+customerColumns+`, (xmax = 0) AS inserted`,
		uuid.New(), params.TenantID, strings.TrimSpace(params.FirstName), strings.TrimSpace(params.LastName),
		normalizeEmail(params.Email), strings.TrimSpace(params.Phone), strings.TrimSpace(params.Address),
		params.Source, params.Notes,
	).Scan(
		&c.ID, &c.TenantID, &c.FirstName, &c.LastName, &c.Email, &c.Phone,
		&c.Address, &c.Source, &c.Notes, &c.CreatedAt, &c.UpdatedAt, &inserted,
	)
	if err != nil {
		return nil, false, err
	}
	return c, inserted, nil
}

func (g *Gateway) CountCustomers(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := g.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM customers WHERE tenant_id = $1`,
		tenantID,
	).Scan(&n)
	return n, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
