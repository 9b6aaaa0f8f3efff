package store

import (
	"context"

	"github.com/znz-systems/leadbridge/internal/models"
)

// Gateway is the tenant-scoped record store the intake pipeline writes to.
//
// FindCustomerByEmail returns sql.ErrNoRows when no customer matches.
// CreateCustomer is an atomic find-or-create when the email is non-empty:
// concurrent callers with the same (tenant, email) receive the same row and
// exactly one of them sees created == true.
type Gateway interface {
	FindCustomerByEmail(ctx context.Context, tenantID, email string) (*models.Customer, error)
	CreateCustomer(ctx context.Context, params models.CustomerCreateParams) (customer *models.Customer, created bool, err error)
	CountCustomers(ctx context.Context, tenantID string) (int, error)
	CreateAppointment(ctx context.Context, params models.AppointmentCreateParams) (*models.Appointment, error)
	AppendAutomationLog(ctx context.Context, params models.AutomationLogCreateParams) error

	// WithinTx runs fn against a gateway bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise. Calling
	// WithinTx on a gateway that is already transactional runs fn inline.
	WithinTx(ctx context.Context, fn func(tx Gateway) error) error
	Ping(ctx context.Context) error
}
