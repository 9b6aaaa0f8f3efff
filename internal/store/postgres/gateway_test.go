package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/znz-systems/leadbridge/internal/models"
	"github.com/znz-systems/leadbridge/internal/store"
)

var customerRowColumns = []string{
	"id", "tenant_id", "first_name", "last_name", "email", "phone", "address", "source", "notes", "created_at", "updated_at",
}

func newMockGateway(t *testing.T) (*Gateway, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewGateway(db), mock
}

func TestFindCustomerByEmail_NormalizesEmail(t *testing.T) {
	g, mock := newMockGateway(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM customers")).
		WithArgs("tenant-1", "jane@example.com").
		WillReturnRows(sqlmock.NewRows(customerRowColumns).
			AddRow(id.String(), "tenant-1", "Jane", "Smith", "jane@example.com", "", "", models.SourceExternalNotification, "", now, now))

	c, err := g.FindCustomerByEmail(context.Background(), "tenant-1", "  Jane@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, id, c.ID)
	assert.Equal(t, "Smith", c.LastName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCustomerByEmail_NoRows(t *testing.T) {
	g, mock := newMockGateway(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM customers")).
		WillReturnRows(sqlmock.NewRows(customerRowColumns))

	_, err := g.FindCustomerByEmail(context.Background(), "tenant-1", "nobody@example.com")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestCreateCustomer_UsesAtomicUpsert(t *testing.T) {
	g, mock := newMockGateway(t)
	existing := uuid.New()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (tenant_id, email) WHERE email <> '' DO UPDATE")).
		WithArgs(sqlmock.AnyArg(), "tenant-1", "Jane", "Smith", "jane@example.com", "4155550100", "", models.SourceExternalNotification, "notes").
		WillReturnRows(sqlmock.NewRows(append(customerRowColumns, "inserted")).
			AddRow(existing.String(), "tenant-1", "Jane", "Smith", "jane@example.com", "4155550100", "", models.SourceExternalNotification, "", now, now, false))

	c, created, err := g.CreateCustomer(context.Background(), models.CustomerCreateParams{
		TenantID:  "tenant-1",
		FirstName: " Jane",
		LastName:  "Smith ",
		Email:     "JANE@example.com",
		Phone:     "4155550100",
		Source:    models.SourceExternalNotification,
		Notes:     "notes",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing, c.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAppointment_AllowsNullCustomer(t *testing.T) {
	g, mock := newMockGateway(t)
	scheduled := time.Date(2026, 1, 15, 14, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO appointments")).
		WithArgs(sqlmock.AnyArg(), "tenant-1", nil, scheduled, models.AppointmentScheduled, "1 Main St", "", models.SourceExternalNotification).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	a, err := g.CreateAppointment(context.Background(), models.AppointmentCreateParams{
		TenantID:    "tenant-1",
		ScheduledAt: scheduled,
		Address:     "1 Main St",
		Source:      models.SourceExternalNotification,
	})
	require.NoError(t, err)
	assert.Nil(t, a.CustomerID)
	assert.Equal(t, models.AppointmentScheduled, a.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendAutomationLog_EncodesMetadata(t *testing.T) {
	g, mock := newMockGateway(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO automation_logs")).
		WithArgs("tenant-1", "lead_intake", "vendor_notification_email", nil, models.TargetCustomer, nil, "New Lead", models.AutomationStatusSuccess, `{"sender":"a@b.com"}`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := g.AppendAutomationLog(context.Background(), models.AutomationLogCreateParams{
		TenantID:       "tenant-1",
		AutomationType: "lead_intake",
		TriggerType:    "vendor_notification_email",
		TargetType:     models.TargetCustomer,
		MessageContent: "New Lead",
		Status:         models.AutomationStatusSuccess,
		Metadata:       map[string]any{"sender": "a@b.com"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_RollsBackWhenCallbackFails(t *testing.T) {
	g, mock := newMockGateway(t)
	boom := errors.New("appointment insert failed")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := g.WithinTx(context.Background(), func(tx store.Gateway) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	g, mock := newMockGateway(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM customers")).
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectCommit()

	var n int
	err := g.WithinTx(context.Background(), func(tx store.Gateway) error {
		var err error
		n, err = tx.CountCustomers(context.Background(), "tenant-1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
