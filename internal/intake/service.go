package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/znz-systems/leadbridge/internal/blob"
	"github.com/znz-systems/leadbridge/internal/metrics"
	"github.com/znz-systems/leadbridge/internal/models"
	"github.com/znz-systems/leadbridge/internal/store"
	"github.com/znz-systems/leadbridge/internal/vendormail"
)

const (
	defaultPersistTimeout = 5 * time.Second
	defaultTxTimeout      = 15 * time.Second

	automationLeadIntake    = "lead_intake"
	automationBookingIntake = "booking_intake"
	triggerVendorEmail      = "vendor_notification_email"

	messageNotApplicable = "Email is not from a recognized vendor sender; no action taken"
	messageUnclassified  = "Email subject is not a lead or booking notification; not processed"
)

type Options struct {
	// PersistTimeout bounds every single gateway call.
	PersistTimeout time.Duration
	// TxTimeout bounds the whole lead/booking write.
	TxTimeout time.Duration
	// DefaultLocation is the zone booking times are read in when the email
	// does not name one.
	DefaultLocation *time.Location
	Now             func() time.Time
}

type Service struct {
	gateway    store.Gateway
	classifier *vendormail.Classifier
	grammar    *vendormail.Grammar
	resolver   *Resolver
	archive    *blob.Archive
	opts       Options
}

func NewService(gateway store.Gateway, classifier *vendormail.Classifier, grammar *vendormail.Grammar, archive *blob.Archive, opts Options) *Service {
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = defaultPersistTimeout
	}
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = defaultTxTimeout
	}
	if opts.DefaultLocation == nil {
		opts.DefaultLocation = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if grammar == nil {
		grammar = vendormail.DefaultGrammar()
	}
	return &Service{
		gateway:    gateway,
		classifier: classifier,
		grammar:    grammar,
		resolver:   NewResolver(opts.PersistTimeout),
		archive:    archive,
		opts:       opts,
	}
}

// Ingest runs one notification through the pipeline. Irrelevant emails yield
// an unprocessed Result and no error; an error means nothing was written.
func (s *Service) Ingest(ctx context.Context, email Email) (Result, error) {
	email.TenantID = strings.TrimSpace(email.TenantID)
	if email.TenantID == "" {
		return Result{}, ErrTenantRequired
	}
	if email.Transport == "" {
		email.Transport = TransportWebhook
	}
	receivedAt := s.opts.Now().UTC()

	kind := s.classifier.Classify(email.Sender, email.Subject)
	switch kind {
	case vendormail.KindNotApplicable, vendormail.KindUnclassified:
		metrics.NotificationsTotal.WithLabelValues(string(kind), metrics.OutcomeSkipped).Inc()
		slog.Info("notification not processed",
			"tenant_id", email.TenantID, "kind", kind, "sender", email.Sender, "subject", email.Subject)
		msg := messageUnclassified
		if kind == vendormail.KindNotApplicable {
			msg = messageNotApplicable
		}
		return Result{Kind: kind, Message: msg, ReceivedAt: receivedAt}, nil
	}

	// The zone only matters once the email is known to need processing.
	loc, err := s.location(email.Timezone)
	if err != nil {
		return Result{Kind: kind, ReceivedAt: receivedAt}, err
	}

	archiveKey := s.archiveRaw(ctx, email, receivedAt)
	body := vendormail.NormalizeBody(email.Body)

	var res Result
	if kind == vendormail.KindLead {
		res, err = s.ingestLead(ctx, email, body)
	} else {
		res, err = s.ingestBooking(ctx, email, body, loc)
	}
	res.Kind = kind
	res.ArchiveKey = archiveKey
	res.ReceivedAt = receivedAt

	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(kind), metrics.OutcomeFailed).Inc()
		slog.Error("notification ingest failed", "tenant_id", email.TenantID, "kind", kind, "error", err)
		s.appendLog(ctx, s.failureEntry(email, kind, archiveKey, err))
		return Result{Kind: kind, ArchiveKey: archiveKey, ReceivedAt: receivedAt}, err
	}

	res.Processed = true
	metrics.NotificationsTotal.WithLabelValues(string(kind), metrics.OutcomeProcessed).Inc()
	slog.Info("notification processed",
		"tenant_id", email.TenantID, "kind", kind,
		"customer_id", uuidString(res.CustomerID), "customer_created", res.CustomerCreated,
		"appointment_id", uuidString(res.AppointmentID))
	s.appendLog(ctx, s.successEntry(email, res))
	return res, nil
}

func (s *Service) ingestLead(ctx context.Context, email Email, body string) (Result, error) {
	g := s.grammar
	lead := ParsedLead{
		FirstName: g.Extract(body, vendormail.FieldFirstName),
		LastName:  g.Extract(body, vendormail.FieldLastName),
		Email:     strings.ToLower(vendormail.ExtractEmail(g.Extract(body, vendormail.FieldEmail))),
		Phone:     vendormail.ExtractPhone(g.Extract(body, vendormail.FieldPhone)),
		Zip:       g.Extract(body, vendormail.FieldZip),
		Service:   g.Extract(body, vendormail.FieldService),
		Frequency: g.Extract(body, vendormail.FieldFrequency),
		Price:     vendormail.ExtractPrice(g.Extract(body, vendormail.FieldPrice)),
	}
	contact := ContactParams{
		TenantID:  email.TenantID,
		FirstName: lead.FirstName,
		LastName:  lead.LastName,
		Email:     lead.Email,
		Phone:     lead.Phone,
		Address:   lead.Zip,
		Notes:     leadNotes(lead),
	}

	res := Result{Lead: &lead}
	err := s.withinTx(ctx, func(txCtx context.Context, tx store.Gateway) error {
		var (
			customer *models.Customer
			created  bool
			err      error
		)
		if contact.Email != "" {
			customer, created, err = s.resolver.Resolve(txCtx, tx, contact)
		} else {
			customer, created, err = s.resolver.Create(txCtx, tx, contact)
		}
		if err != nil {
			return err
		}
		res.CustomerID = &customer.ID
		res.CustomerCreated = created
		return nil
	})
	if err != nil {
		return Result{Lead: &lead}, fmt.Errorf("persist lead: %w", err)
	}
	return res, nil
}

func (s *Service) ingestBooking(ctx context.Context, email Email, body string, loc *time.Location) (Result, error) {
	g := s.grammar
	booking := ParsedBooking{
		Phone:     vendormail.ExtractPhone(g.Extract(body, vendormail.FieldPhone)),
		Date:      g.Extract(body, vendormail.FieldDate),
		Time:      g.Extract(body, vendormail.FieldTime),
		Address:   g.Extract(body, vendormail.FieldAddress),
		Service:   g.Extract(body, vendormail.FieldService),
		Frequency: g.Extract(body, vendormail.FieldFrequency),
		Total:     vendormail.ExtractPrice(g.Extract(body, vendormail.FieldTotal)),
	}
	// Booking emails name the customer in prose ("new booking from Jane
	// Smith"); labelled fields are only a fallback.
	booking.FirstName, booking.LastName = vendormail.ExtractSenderName(body)
	if booking.FirstName == "" {
		booking.FirstName = g.Extract(body, vendormail.FieldFirstName)
		booking.LastName = g.Extract(body, vendormail.FieldLastName)
	}
	booking.Email = vendormail.ExtractEmail(g.Extract(body, vendormail.FieldEmail))
	if booking.Email == "" {
		booking.Email = vendormail.ExtractEmail(body)
	}
	booking.Email = strings.ToLower(booking.Email)

	schedule := vendormail.Normalizer{Location: loc, Now: s.opts.Now}.Normalize(booking.Date, booking.Time)
	if schedule.Fallback {
		metrics.ScheduleFallbacks.Inc()
		slog.Warn("booking date unreadable, scheduling at time of receipt",
			"tenant_id", email.TenantID, "date", booking.Date, "time", booking.Time)
	}

	contact := ContactParams{
		TenantID:  email.TenantID,
		FirstName: booking.FirstName,
		LastName:  booking.LastName,
		Email:     booking.Email,
		Phone:     booking.Phone,
		Address:   booking.Address,
	}

	res := Result{Booking: &booking, Schedule: &schedule}
	err := s.withinTx(ctx, func(txCtx context.Context, tx store.Gateway) error {
		customer, created, err := s.resolver.Resolve(txCtx, tx, contact)
		if err != nil {
			return err
		}
		params := models.AppointmentCreateParams{
			TenantID:    email.TenantID,
			ScheduledAt: schedule.At,
			Status:      models.AppointmentScheduled,
			Address:     booking.Address,
			Notes:       bookingNotes(booking, schedule),
			Source:      models.SourceExternalNotification,
		}
		if customer != nil {
			params.CustomerID = &customer.ID
			res.CustomerID = &customer.ID
			res.CustomerCreated = created
		}

		apptCtx, cancel := context.WithTimeout(txCtx, s.opts.PersistTimeout)
		defer cancel()
		appt, err := tx.CreateAppointment(apptCtx, params)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		res.AppointmentID = &appt.ID
		return nil
	})
	if err != nil {
		return Result{Booking: &booking, Schedule: &schedule}, fmt.Errorf("persist booking: %w", err)
	}
	return res, nil
}

// withinTx runs fn in one transaction bounded by TxTimeout. fn must use
// the context it is handed.
func (s *Service) withinTx(ctx context.Context, fn func(ctx context.Context, tx store.Gateway) error) error {
	txCtx, cancel := context.WithTimeout(ctx, s.opts.TxTimeout)
	defer cancel()
	return s.gateway.WithinTx(txCtx, func(tx store.Gateway) error {
		return fn(txCtx, tx)
	})
}

// appendLog writes the audit entry. It outlives a canceled request and never
// fails the caller.
func (s *Service) appendLog(ctx context.Context, entry models.AutomationLogCreateParams) {
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PersistTimeout)
	defer cancel()
	if err := s.gateway.AppendAutomationLog(logCtx, entry); err != nil {
		metrics.AutomationLogFailures.Inc()
		slog.Warn("append automation log failed",
			"tenant_id", entry.TenantID, "automation_type", entry.AutomationType, "error", err)
	}
}

func (s *Service) successEntry(email Email, res Result) models.AutomationLogCreateParams {
	entry := models.AutomationLogCreateParams{
		TenantID:       email.TenantID,
		TriggerType:    triggerVendorEmail,
		CustomerID:     res.CustomerID,
		MessageContent: email.Subject,
		Status:         models.AutomationStatusSuccess,
		Metadata:       s.baseMetadata(email, res.ArchiveKey),
	}
	entry.Metadata["customer_created"] = res.CustomerCreated
	if res.Kind == vendormail.KindBooking {
		entry.AutomationType = automationBookingIntake
		entry.TargetID = res.AppointmentID
		entry.TargetType = models.TargetAppointment
		entry.Metadata["parsed"] = res.Booking
		if res.Schedule != nil {
			entry.Metadata["scheduled_at"] = res.Schedule.At.Format(time.RFC3339)
			entry.Metadata["scheduled_at_fallback"] = res.Schedule.Fallback
			entry.Metadata["time_defaulted"] = res.Schedule.TimeDefaulted
		}
		return entry
	}
	entry.AutomationType = automationLeadIntake
	entry.TargetID = res.CustomerID
	entry.TargetType = models.TargetCustomer
	entry.Metadata["parsed"] = res.Lead
	return entry
}

func (s *Service) failureEntry(email Email, kind vendormail.Kind, archiveKey string, cause error) models.AutomationLogCreateParams {
	entry := models.AutomationLogCreateParams{
		TenantID:       email.TenantID,
		AutomationType: automationLeadIntake,
		TriggerType:    triggerVendorEmail,
		TargetType:     models.TargetCustomer,
		MessageContent: email.Subject,
		Status:         models.AutomationStatusFailed,
		Metadata:       s.baseMetadata(email, archiveKey),
	}
	if kind == vendormail.KindBooking {
		entry.AutomationType = automationBookingIntake
		entry.TargetType = models.TargetAppointment
	}
	entry.Metadata["error"] = cause.Error()
	return entry
}

func (s *Service) baseMetadata(email Email, archiveKey string) map[string]any {
	md := map[string]any{
		"sender":    email.Sender,
		"transport": email.Transport,
	}
	if archiveKey != "" {
		md["archive_key"] = archiveKey
	}
	return md
}

// archiveRaw stores the original notification when an archive is configured.
// Failures are logged and counted only.
func (s *Service) archiveRaw(ctx context.Context, email Email, at time.Time) string {
	if !s.archive.Enabled() {
		return ""
	}

	ext, contentType, body := "eml", "message/rfc822", email.Raw
	if len(body) == 0 {
		var err error
		body, err = json.Marshal(archivedNotification{
			TenantID:   email.TenantID,
			From:       email.Sender,
			Subject:    email.Subject,
			Body:       email.Body,
			Timezone:   email.Timezone,
			Transport:  email.Transport,
			ReceivedAt: at,
		})
		if err != nil {
			slog.Warn("encode notification for archive failed", "tenant_id", email.TenantID, "error", err)
			return ""
		}
		ext, contentType = "json", "application/json"
	}

	archiveCtx, cancel := context.WithTimeout(ctx, s.opts.PersistTimeout)
	defer cancel()
	key, err := s.archive.Save(archiveCtx, email.TenantID, at, ext, contentType, body)
	if err != nil {
		metrics.ArchiveFailures.Inc()
		slog.Warn("archive notification failed", "tenant_id", email.TenantID, "error", err)
		return ""
	}
	return key
}

type archivedNotification struct {
	TenantID   string    `json:"tenant_id"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Timezone   string    `json:"timezone,omitempty"`
	Transport  string    `json:"transport"`
	ReceivedAt time.Time `json:"received_at"`
}

func (s *Service) location(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return s.opts.DefaultLocation, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w %q", ErrInvalidTimezone, tz)
	}
	return loc, nil
}

func leadNotes(lead ParsedLead) string {
	var lines []string
	if lead.Service != "" {
		lines = append(lines, "Service: "+lead.Service)
	}
	if lead.Frequency != "" {
		lines = append(lines, "Frequency: "+lead.Frequency)
	}
	if lead.Price > 0 {
		lines = append(lines, fmt.Sprintf("Quoted price: $%.2f", lead.Price))
	}
	if lead.Zip != "" {
		lines = append(lines, "Zip: "+lead.Zip)
	}
	return strings.Join(lines, "\n")
}

func bookingNotes(b ParsedBooking, schedule vendormail.Schedule) string {
	var lines []string
	if b.Service != "" {
		lines = append(lines, "Service: "+b.Service)
	}
	if b.Frequency != "" {
		lines = append(lines, "Frequency: "+b.Frequency)
	}
	if b.Total > 0 {
		lines = append(lines, fmt.Sprintf("Total: $%.2f", b.Total))
	}
	switch {
	case schedule.Fallback:
		lines = append(lines, fmt.Sprintf("Booking date %q could not be read; scheduled at time of receipt. Confirm with the customer.", b.Date))
	case schedule.TimeDefaulted:
		lines = append(lines, fmt.Sprintf("No arrival time given; defaulted to %02d:00.", vendormail.DefaultHour))
	}
	return strings.Join(lines, "\n")
}

func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
