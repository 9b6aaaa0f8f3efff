// Package intake turns vendor notification emails into CRM records: it
// classifies, extracts, resolves the customer and persists the lead or
// booking, whichever transport the email arrived on.
package intake

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/znz-systems/leadbridge/internal/vendormail"
)

var (
	ErrTenantRequired  = errors.New("tenant_id is required")
	ErrInvalidTimezone = errors.New("invalid timezone")
)

// Transports an email can arrive on.
const (
	TransportWebhook = "webhook"
	TransportSMTP    = "smtp"
)

// Email is one inbound notification. It is never persisted as such; Raw is
// only kept by the archive.
type Email struct {
	TenantID  string
	Sender    string
	Subject   string
	Body      string
	Timezone  string
	Raw       []byte
	Transport string
}

type ParsedLead struct {
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     string  `json:"email"`
	Phone     string  `json:"phone"`
	Zip       string  `json:"zip"`
	Service   string  `json:"service"`
	Frequency string  `json:"frequency"`
	Price     float64 `json:"price"`
}

type ParsedBooking struct {
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     string  `json:"email"`
	Phone     string  `json:"phone"`
	Date      string  `json:"date"`
	Time      string  `json:"time"`
	Address   string  `json:"address"`
	Service   string  `json:"service"`
	Frequency string  `json:"frequency"`
	Total     float64 `json:"total"`
}

// Result describes what Ingest did. Processed is false for emails that were
// deliberately ignored; Message then says why.
type Result struct {
	Processed       bool
	Kind            vendormail.Kind
	Message         string
	CustomerID      *uuid.UUID
	CustomerCreated bool
	AppointmentID   *uuid.UUID
	Lead            *ParsedLead
	Booking         *ParsedBooking
	Schedule        *vendormail.Schedule
	ArchiveKey      string
	ReceivedAt      time.Time
}
