package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/znz-systems/leadbridge/internal/models"
)

func (g *Gateway) CreateAppointment(ctx context.Context, params models.AppointmentCreateParams) (*models.Appointment, error) {
	a := &models.Appointment{
		ID:          uuid.New(),
		TenantID:    params.TenantID,
		CustomerID:  params.CustomerID,
		ScheduledAt: params.ScheduledAt.UTC(),
		Status:      params.Status,
		Address:     params.Address,
		Notes:       params.Notes,
		Source:      params.Source,
	}
	if a.Status == "" {
		a.Status = models.AppointmentScheduled
	}

	err := g.q.QueryRowContext(ctx,
		`INSERT INTO appointments (id, tenant_id, customer_id, scheduled_at, status, address, notes, source)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		a.ID, a.TenantID, a.CustomerID, a.ScheduledAt, a.Status, a.Address, a.Notes, a.Source,
	).Scan(&a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}
