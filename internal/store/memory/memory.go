// Package memory is an in-process store.Gateway. It backs the test suites and
// the STORE_BACKEND=memory development mode; nothing survives a restart.
package memory

import (
	"context"
	"database/sql"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/znz-systems/leadbridge/internal/models"
	"github.com/znz-systems/leadbridge/internal/store"
)

type dataset struct {
	customers    []models.Customer
	appointments []models.Appointment
	logs         []models.AutomationLogEntry
	nextLogID    int64
}

func (d *dataset) clone() dataset {
	out := dataset{
		customers:    slices.Clone(d.customers),
		appointments: slices.Clone(d.appointments),
		logs:         slices.Clone(d.logs),
		nextLogID:    d.nextLogID,
	}
	return out
}

// Gateway serialises every write. A transaction holds the write lock for its
// whole callback and restores a snapshot when the callback fails.
type Gateway struct {
	txMu *sync.Mutex
	mu   *sync.RWMutex
	data *dataset
	inTx bool
	now  func() time.Time
}

var _ store.Gateway = (*Gateway)(nil)

func NewGateway() *Gateway {
	return &Gateway{
		txMu: &sync.Mutex{},
		mu:   &sync.RWMutex{},
		data: &dataset{nextLogID: 1},
		now:  time.Now,
	}
}

// lockWrite serialises a standalone write against running transactions.
// Inside a transaction the transaction lock is already held.
func (g *Gateway) lockWrite() func() {
	if !g.inTx {
		g.txMu.Lock()
	}
	g.mu.Lock()
	return func() {
		g.mu.Unlock()
		if !g.inTx {
			g.txMu.Unlock()
		}
	}
}

func (g *Gateway) WithinTx(_ context.Context, fn func(tx store.Gateway) error) error {
	if g.inTx {
		return fn(g)
	}

	g.txMu.Lock()
	defer g.txMu.Unlock()

	g.mu.RLock()
	snapshot := g.data.clone()
	g.mu.RUnlock()

	tx := &Gateway{txMu: g.txMu, mu: g.mu, data: g.data, inTx: true, now: g.now}
	if err := fn(tx); err != nil {
		g.mu.Lock()
		*g.data = snapshot
		g.mu.Unlock()
		return err
	}
	return nil
}

func (g *Gateway) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (g *Gateway) FindCustomerByEmail(ctx context.Context, tenantID, email string) (*models.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email = normalizeEmail(email)
	if email == "" {
		return nil, sql.ErrNoRows
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, c := range g.data.customers {
		if c.TenantID == tenantID && c.Email == email {
			found := c
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (g *Gateway) CreateCustomer(ctx context.Context, params models.CustomerCreateParams) (*models.Customer, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	unlock := g.lockWrite()
	defer unlock()

	email := normalizeEmail(params.Email)
	if email != "" {
		for _, c := range g.data.customers {
			if c.TenantID == params.TenantID && c.Email == email {
				existing := c
				return &existing, false, nil
			}
		}
	}

	now := g.now().UTC()
	c := models.Customer{
		ID:        uuid.New(),
		TenantID:  params.TenantID,
		FirstName: strings.TrimSpace(params.FirstName),
		LastName:  strings.TrimSpace(params.LastName),
		Email:     email,
		Phone:     strings.TrimSpace(params.Phone),
		Address:   strings.TrimSpace(params.Address),
		Source:    params.Source,
		Notes:     params.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	g.data.customers = append(g.data.customers, c)
	return &c, true, nil
}

func (g *Gateway) CountCustomers(ctx context.Context, tenantID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(g.Customers(tenantID)), nil
}

func (g *Gateway) CreateAppointment(ctx context.Context, params models.AppointmentCreateParams) (*models.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock := g.lockWrite()
	defer unlock()

	a := models.Appointment{
		ID:          uuid.New(),
		TenantID:    params.TenantID,
		CustomerID:  params.CustomerID,
		ScheduledAt: params.ScheduledAt.UTC(),
		Status:      params.Status,
		Address:     params.Address,
		Notes:       params.Notes,
		Source:      params.Source,
		CreatedAt:   g.now().UTC(),
	}
	if a.Status == "" {
		a.Status = models.AppointmentScheduled
	}
	g.data.appointments = append(g.data.appointments, a)
	return &a, nil
}

func (g *Gateway) AppendAutomationLog(ctx context.Context, params models.AutomationLogCreateParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := g.lockWrite()
	defer unlock()

	entry := models.AutomationLogEntry{
		ID:             g.data.nextLogID,
		TenantID:       params.TenantID,
		AutomationType: params.AutomationType,
		TriggerType:    params.TriggerType,
		TargetID:       params.TargetID,
		TargetType:     params.TargetType,
		CustomerID:     params.CustomerID,
		MessageContent: params.MessageContent,
		Status:         params.Status,
		Metadata:       maps.Clone(params.Metadata),
		CreatedAt:      g.now().UTC(),
	}
	g.data.nextLogID++
	g.data.logs = append(g.data.logs, entry)
	return nil
}

// Customers returns a copy of the tenant's customers in insertion order.
func (g *Gateway) Customers(tenantID string) []models.Customer {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []models.Customer
	for _, c := range g.data.customers {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	return out
}

func (g *Gateway) Appointments(tenantID string) []models.Appointment {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []models.Appointment
	for _, a := range g.data.appointments {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out
}

func (g *Gateway) AutomationLogs(tenantID string) []models.AutomationLogEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []models.AutomationLogEntry
	for _, e := range g.data.logs {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
