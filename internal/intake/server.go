package intake

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
)

const (
	defaultMaxMessageBytes int64 = 10 * 1024 * 1024
	defaultIngestTimeout         = 30 * time.Second
)

// Ingester is the pipeline the SMTP listener hands messages to.
type Ingester interface {
	Ingest(ctx context.Context, email Email) (Result, error)
}

type ServerOptions struct {
	MaxMessageBytes int64
	IngestTimeout   time.Duration
}

// Server accepts vendor notifications addressed to <tenant>@<domain>.
type Server struct {
	smtpServer    *smtp.Server
	ingester      Ingester
	domain        string
	maxBytes      int64
	ingestTimeout time.Duration
}

func NewServer(addr, domain string, ingester Ingester, opts ServerOptions) *Server {
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = defaultMaxMessageBytes
	}
	if opts.IngestTimeout <= 0 {
		opts.IngestTimeout = defaultIngestTimeout
	}
	s := &Server{
		ingester:      ingester,
		domain:        strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), "."),
		maxBytes:      opts.MaxMessageBytes,
		ingestTimeout: opts.IngestTimeout,
	}

	smtpSrv := smtp.NewServer(s)
	smtpSrv.Addr = addr
	smtpSrv.Domain = s.domain
	smtpSrv.ReadTimeout = 30 * time.Second
	smtpSrv.WriteTimeout = 30 * time.Second
	smtpSrv.MaxMessageBytes = opts.MaxMessageBytes
	smtpSrv.MaxRecipients = 1

	s.smtpServer = smtpSrv
	return s
}

func (s *Server) Start() error {
	slog.Info("inbound SMTP server starting", "addr", s.smtpServer.Addr, "domain", s.domain)
	err := s.smtpServer.ListenAndServe()
	if errors.Is(err, smtp.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown() error {
	return s.smtpServer.Close()
}

// NewSession implements smtp.Backend.
func (s *Server) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{server: s}, nil
}

// tenantFor maps a recipient to its tenant id, or "" when the address is not
// on the intake domain.
func (s *Server) tenantFor(rcpt string) string {
	addr := strings.Trim(strings.TrimSpace(rcpt), "<>")
	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		return ""
	}
	// Domains are case-insensitive; tenant ids in the local part are not.
	local, domain := addr[:at], strings.TrimSuffix(strings.ToLower(addr[at+1:]), ".")
	if domain != s.domain {
		return ""
	}
	// Sub-addressing ("tenant+vendor@") routes to the same tenant.
	if plus := strings.IndexByte(local, '+'); plus > 0 {
		local = local[:plus]
	}
	return local
}

type session struct {
	server *Server
	from   string
	tenant string
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	tenant := s.server.tenantFor(to)
	if tenant == "" {
		slog.Warn("inbound email to unknown address", "to", to)
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "no such recipient",
		}
	}
	s.tenant = tenant
	return nil
}

func (s *session) Data(r io.Reader) error {
	if s.tenant == "" {
		return &smtp.SMTPError{
			Code:         503,
			EnhancedCode: smtp.EnhancedCode{5, 5, 1},
			Message:      "no valid recipient",
		}
	}

	raw, err := io.ReadAll(io.LimitReader(r, s.server.maxBytes))
	if err != nil {
		return err
	}
	msg, err := ParseRFC822(raw)
	if err != nil {
		slog.Warn("inbound email unparseable", "from", s.from, "tenant_id", s.tenant, "error", err)
		return &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "message could not be parsed",
		}
	}

	sender := msg.From
	if sender == "" {
		sender = s.from
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.server.ingestTimeout)
	defer cancel()
	res, err := s.server.ingester.Ingest(ctx, Email{
		TenantID:  s.tenant,
		Sender:    sender,
		Subject:   msg.Subject,
		Body:      msg.Body(),
		Raw:       raw,
		Transport: TransportSMTP,
	})
	if err != nil {
		slog.Error("inbound email ingest failed", "from", sender, "tenant_id", s.tenant, "error", err)
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "temporary failure, try again later",
		}
	}

	slog.Info("inbound email handled",
		"from", sender, "tenant_id", s.tenant, "kind", res.Kind, "processed", res.Processed)
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.tenant = ""
}

func (s *session) Logout() error {
	return nil
}
