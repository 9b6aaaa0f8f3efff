// Package vendormail turns vendor lead/booking notification emails into
// field values. Everything here is pure: no I/O, no errors for missing data.
package vendormail

import (
	"net/mail"
	"strings"
)

// Kind is the classification of an inbound notification.
type Kind string

const (
	KindLead          Kind = "lead"
	KindBooking       Kind = "booking"
	KindNotApplicable Kind = "not_applicable"
	KindUnclassified  Kind = "unclassified"
)

// Subject markers, checked in order. Lead comes first so a subject carrying
// both markers is treated as a lead.
var subjectMarkers = []struct {
	marker string
	kind   Kind
}{
	{"new lead", KindLead},
	{"new booking", KindBooking},
}

// Classifier gates notifications on the sender domain and tags them by subject.
type Classifier struct {
	domains []string
}

// NewClassifier builds a classifier trusting the given sender domains and
// their subdomains.
func NewClassifier(trustedDomains []string) *Classifier {
	c := &Classifier{}
	for _, d := range trustedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimLeft(d, "@.")
		d = strings.TrimSuffix(d, ".")
		if d != "" {
			c.domains = append(c.domains, d)
		}
	}
	return c
}

func (c *Classifier) Classify(sender, subject string) Kind {
	if !c.TrustedSender(sender) {
		return KindNotApplicable
	}
	subject = strings.ToLower(subject)
	for _, m := range subjectMarkers {
		if strings.Contains(subject, m.marker) {
			return m.kind
		}
	}
	return KindUnclassified
}

func (c *Classifier) TrustedSender(sender string) bool {
	domain := SenderDomain(sender)
	if domain == "" {
		return false
	}
	for _, d := range c.domains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// SenderDomain returns the lower-cased domain of an address in any of the
// usual header forms ("a@b.com", "Name <a@b.com>").
func SenderDomain(sender string) string {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return ""
	}
	addr := sender
	if parsed, err := mail.ParseAddress(sender); err == nil {
		addr = parsed.Address
	} else {
		// Unparseable senders with more than one "@" have no single domain
		// to trust.
		if strings.Count(sender, "@") != 1 {
			return ""
		}
		if found := ExtractEmail(sender); found != "" {
			addr = found
		}
	}
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	domain := strings.ToLower(strings.TrimSpace(addr[at+1:]))
	domain = strings.TrimRight(domain, ">.")
	return domain
}
