package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceExternalNotification tags every record created from a vendor notification email.
const SourceExternalNotification = "external-notification"

const (
	AppointmentScheduled = "scheduled"

	AutomationStatusSuccess = "success"
	AutomationStatusFailed  = "failed"

	TargetCustomer    = "customer"
	TargetAppointment = "appointment"
)

type Customer struct {
	ID        uuid.UUID
	TenantID  string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
	Source    string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CustomerCreateParams struct {
	TenantID  string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
	Source    string
	Notes     string
}

type Appointment struct {
	ID          uuid.UUID
	TenantID    string
	CustomerID  *uuid.UUID
	ScheduledAt time.Time
	Status      string
	Address     string
	Notes       string
	Source      string
	CreatedAt   time.Time
}

type AppointmentCreateParams struct {
	TenantID    string
	CustomerID  *uuid.UUID
	ScheduledAt time.Time
	Status      string
	Address     string
	Notes       string
	Source      string
}

// AutomationLogEntry is one row of the append-only automation audit trail.
type AutomationLogEntry struct {
	ID             int64
	TenantID       string
	AutomationType string
	TriggerType    string
	TargetID       *uuid.UUID
	TargetType     string
	CustomerID     *uuid.UUID
	MessageContent string
	Status         string
	Metadata       map[string]any
	CreatedAt      time.Time
}

type AutomationLogCreateParams struct {
	TenantID       string
	AutomationType string
	TriggerType    string
	TargetID       *uuid.UUID
	TargetType     string
	CustomerID     *uuid.UUID
	MessageContent string
	Status         string
	Metadata       map[string]any
}
