package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/znz-systems/leadbridge/internal/intake"
	"github.com/znz-systems/leadbridge/internal/vendormail"
)

const defaultMaxBodyBytes int64 = 1024 * 1024

// Ingester is the pipeline behind the notification endpoint.
type Ingester interface {
	Ingest(ctx context.Context, email intake.Email) (intake.Result, error)
}

// NotificationHandler receives vendor notifications forwarded as JSON.
type NotificationHandler struct {
	service      Ingester
	maxBodyBytes int64
}

func NewNotificationHandler(service Ingester, maxBodyBytes int64) *NotificationHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &NotificationHandler{service: service, maxBodyBytes: maxBodyBytes}
}

type notificationRequest struct {
	Subject   string `json:"subject" validate:"max=998"`
	Body      string `json:"body"`
	From      string `json:"from" validate:"max=320"`
	TenantID  string `json:"tenant_id" validate:"required,max=128"`
	Timezone  string `json:"timezone" validate:"max=64"`
	RawRFC822 string `json:"raw_rfc822"`
}

type notProcessedResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type leadResponse struct {
	Success         bool               `json:"success"`
	Type            string             `json:"type"`
	CustomerID      *uuid.UUID         `json:"customer_id"`
	CustomerCreated bool               `json:"customer_created"`
	Parsed          *intake.ParsedLead `json:"parsed"`
	ArchiveKey      string             `json:"archive_key,omitempty"`
}

type bookingResponse struct {
	Success             bool                  `json:"success"`
	Type                string                `json:"type"`
	AppointmentID       *uuid.UUID            `json:"appointment_id"`
	CustomerID          *uuid.UUID            `json:"customer_id"`
	CustomerCreated     bool                  `json:"customer_created"`
	ScheduledAt         string                `json:"scheduled_at"`
	ScheduledAtFallback bool                  `json:"scheduled_at_fallback"`
	Parsed              *intake.ParsedBooking `json:"parsed"`
	ArchiveKey          string                `json:"archive_key,omitempty"`
}

// HandleReceive processes one notification. Ignored emails get 200 with
// success=false; a 500 means nothing was written and the caller may retry.
func (h *NotificationHandler) HandleReceive(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req notificationRequest
	if err := decodeJSON(r, &req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	email := intake.Email{
		TenantID:  req.TenantID,
		Sender:    req.From,
		Subject:   req.Subject,
		Body:      req.Body,
		Timezone:  req.Timezone,
		Transport: intake.TransportWebhook,
	}
	if strings.TrimSpace(req.RawRFC822) != "" {
		parsed, err := intake.ParseRFC822([]byte(req.RawRFC822))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid raw_rfc822: "+err.Error())
			return
		}
		if strings.TrimSpace(email.Sender) == "" {
			email.Sender = parsed.From
		}
		if strings.TrimSpace(email.Subject) == "" {
			email.Subject = parsed.Subject
		}
		if strings.TrimSpace(email.Body) == "" {
			email.Body = parsed.Body()
		}
		email.Raw = []byte(req.RawRFC822)
	}

	res, err := h.service.Ingest(r.Context(), email)
	if err != nil {
		switch {
		case errors.Is(err, intake.ErrTenantRequired), errors.Is(err, intake.ErrInvalidTimezone):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			slog.Error("failed to ingest notification", "tenant_id", email.TenantID, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, responseFor(res))
}

func responseFor(res intake.Result) any {
	if !res.Processed {
		return notProcessedResponse{Success: false, Message: res.Message}
	}
	if res.Kind == vendormail.KindBooking {
		out := bookingResponse{
			Success:         true,
			Type:            string(vendormail.KindBooking),
			AppointmentID:   res.AppointmentID,
			CustomerID:      res.CustomerID,
			CustomerCreated: res.CustomerCreated,
			Parsed:          res.Booking,
			ArchiveKey:      res.ArchiveKey,
		}
		if res.Schedule != nil {
			out.ScheduledAt = res.Schedule.At.UTC().Format(time.RFC3339)
			out.ScheduledAtFallback = res.Schedule.Fallback
		}
		return out
	}
	return leadResponse{
		Success:         true,
		Type:            string(vendormail.KindLead),
		CustomerID:      res.CustomerID,
		CustomerCreated: res.CustomerCreated,
		Parsed:          res.Lead,
		ArchiveKey:      res.ArchiveKey,
	}
}
