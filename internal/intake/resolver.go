package intake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/znz-systems/leadbridge/internal/models"
	"github.com/znz-systems/leadbridge/internal/store"
)

// ContactParams is the customer identity found in a notification.
type ContactParams struct {
	TenantID  string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
	Notes     string
}

// Resolver finds or creates the customer a notification refers to. Each
// gateway call is bounded by timeout.
type Resolver struct {
	timeout time.Duration
}

func NewResolver(timeout time.Duration) *Resolver {
	return &Resolver{timeout: timeout}
}

// Resolve returns the tenant's customer with the contact's email, creating it
// when none exists. Existing customers are returned untouched. A contact
// without an email is not resolved: the result is nil with no error.
func (r *Resolver) Resolve(ctx context.Context, gw store.Gateway, contact ContactParams) (*models.Customer, bool, error) {
	contact.Email = strings.ToLower(strings.TrimSpace(contact.Email))
	if contact.Email == "" {
		return nil, false, nil
	}

	findCtx, cancel := r.bound(ctx)
	existing, err := gw.FindCustomerByEmail(findCtx, contact.TenantID, contact.Email)
	cancel()
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("find customer: %w", err)
	}

	// CreateCustomer is an upsert on (tenant, email), so a concurrent creator
	// that got here first is returned rather than duplicated.
	return r.Create(ctx, gw, contact)
}

// Create inserts a customer without looking for an existing one first. With
// an email set the gateway still converges on the existing row.
func (r *Resolver) Create(ctx context.Context, gw store.Gateway, contact ContactParams) (*models.Customer, bool, error) {
	createCtx, cancel := r.bound(ctx)
	defer cancel()

	customer, created, err := gw.CreateCustomer(createCtx, models.CustomerCreateParams{
		TenantID:  contact.TenantID,
		FirstName: contact.FirstName,
		LastName:  contact.LastName,
		Email:     contact.Email,
		Phone:     contact.Phone,
		Address:   contact.Address,
		Source:    models.SourceExternalNotification,
		Notes:     contact.Notes,
	})
	if err != nil {
		return nil, false, fmt.Errorf("create customer: %w", err)
	}
	return customer, created, nil
}

func (r *Resolver) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}
