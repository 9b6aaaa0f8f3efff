package intake

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/znz-systems/leadbridge/internal/store/memory"
	"github.com/znz-systems/leadbridge/internal/vendormail"
)

type recordingIngester struct {
	emails []Email
	err    error
}

func (r *recordingIngester) Ingest(_ context.Context, email Email) (Result, error) {
	r.emails = append(r.emails, email)
	return Result{Processed: r.err == nil}, r.err
}

func newTestSession(t *testing.T, ing Ingester) *session {
	t.Helper()
	srv := NewServer("127.0.0.1:0", "Intake.Example.com.", ing, ServerOptions{})
	sess, err := srv.NewSession(nil)
	require.NoError(t, err)
	return sess.(*session)
}

func smtpCode(t *testing.T, err error) int {
	t.Helper()
	var smtpErr *smtp.SMTPError
	require.True(t, errors.As(err, &smtpErr), "expected SMTP error, got %v", err)
	return smtpErr.Code
}

const rawLead = "From: Lead Vendor <notify@leadvendor.com>\r\n" +
	"Subject: New Lead Notification\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n\r\n" +
	"First Name: Jane\r\nEmail: jane@example.com\r\n"

func TestServer_TenantFor(t *testing.T) {
	srv := NewServer("", "intake.example.com", &recordingIngester{}, ServerOptions{})

	assert.Equal(t, "tenant-1", srv.tenantFor("tenant-1@intake.example.com"))
	assert.Equal(t, "tenant-1", srv.tenantFor("<tenant-1@Intake.Example.com>"))
	assert.Equal(t, "AcmeCleaning", srv.tenantFor("AcmeCleaning@INTAKE.example.com"))
	assert.Equal(t, "AcmeCleaning", srv.tenantFor("AcmeCleaning+Thumbtack@intake.example.com."))
	assert.Equal(t, "tenant-1", srv.tenantFor("tenant-1+vendor@intake.example.com"))
	assert.Equal(t, "", srv.tenantFor("tenant-1@other.example.com"))
	assert.Equal(t, "", srv.tenantFor("@intake.example.com"))
	assert.Equal(t, "", srv.tenantFor("nobody"))
}

func TestSession_RejectsUnknownRecipient(t *testing.T) {
	sess := newTestSession(t, &recordingIngester{})
	require.NoError(t, sess.Mail("notify@leadvendor.com", nil))
	assert.Equal(t, 550, smtpCode(t, sess.Rcpt("tenant-1@elsewhere.com", nil)))
	assert.Equal(t, 503, smtpCode(t, sess.Data(strings.NewReader(rawLead))))
}

func TestSession_DeliversToTenant(t *testing.T) {
	ing := &recordingIngester{}
	sess := newTestSession(t, ing)

	require.NoError(t, sess.Mail("bounce@leadvendor.com", nil))
	require.NoError(t, sess.Rcpt("tenant-1@intake.example.com", nil))
	require.NoError(t, sess.Data(strings.NewReader(rawLead)))

	require.Len(t, ing.emails, 1)
	got := ing.emails[0]
	assert.Equal(t, "tenant-1", got.TenantID)
	assert.Equal(t, "notify@leadvendor.com", got.Sender, "header From wins over the envelope")
	assert.Equal(t, "New Lead Notification", got.Subject)
	assert.Contains(t, got.Body, "First Name: Jane")
	assert.Equal(t, TransportSMTP, got.Transport)
	assert.Equal(t, rawLead, string(got.Raw))

	sess.Reset()
	assert.Empty(t, sess.tenant)
	assert.NoError(t, sess.Logout())
}

func TestSession_EnvelopeSenderFallback(t *testing.T) {
	ing := &recordingIngester{}
	sess := newTestSession(t, ing)

	require.NoError(t, sess.Mail("notify@leadvendor.com", nil))
	require.NoError(t, sess.Rcpt("tenant-1@intake.example.com", nil))
	require.NoError(t, sess.Data(strings.NewReader("Subject: New Lead\r\n\r\nFirst Name: Jane\r\n")))

	require.Len(t, ing.emails, 1)
	assert.Equal(t, "notify@leadvendor.com", ing.emails[0].Sender)
}

func TestSession_IngestFailureIsTransient(t *testing.T) {
	sess := newTestSession(t, &recordingIngester{err: errors.New("db down")})
	require.NoError(t, sess.Rcpt("tenant-1@intake.example.com", nil))
	assert.Equal(t, 451, smtpCode(t, sess.Data(strings.NewReader(rawLead))))
}

func TestSession_UnparseableMessage(t *testing.T) {
	sess := newTestSession(t, &recordingIngester{})
	require.NoError(t, sess.Rcpt("tenant-1@intake.example.com", nil))
	assert.Equal(t, 554, smtpCode(t, sess.Data(strings.NewReader("   "))))
}

func TestSession_EndToEndCreatesCustomer(t *testing.T) {
	gw := memory.NewGateway()
	svc := newTestService(t, gw, nil)
	sess := newTestSession(t, svc)

	require.NoError(t, sess.Rcpt("tenant-1@intake.example.com", nil))
	require.NoError(t, sess.Data(strings.NewReader(rawLead)))

	customers := gw.Customers("tenant-1")
	require.Len(t, customers, 1)
	assert.Equal(t, "jane@example.com", customers[0].Email)
	logs := gw.AutomationLogs("tenant-1")
	require.Len(t, logs, 1)
	assert.Equal(t, TransportSMTP, logs[0].Metadata["transport"])
}

func TestSession_IgnoredEmailIsAccepted(t *testing.T) {
	gw := memory.NewGateway()
	sess := newTestSession(t, NewService(gw, vendormail.NewClassifier([]string{"leadvendor.com"}), nil, nil, Options{}))

	require.NoError(t, sess.Rcpt("tenant-1@intake.example.com", nil))
	require.NoError(t, sess.Data(strings.NewReader("From: someone@else.com\r\nSubject: hi\r\n\r\nhello")))
	assert.Empty(t, gw.Customers("tenant-1"))
}
