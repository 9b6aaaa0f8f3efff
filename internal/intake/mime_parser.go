package intake

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/znz-systems/leadbridge/internal/vendormail"
)

const maxPartBytes int64 = 2 * 1024 * 1024

var ErrEmptyMessage = errors.New("raw RFC822 payload is empty")

// ParsedMessage is the part of an RFC 822 message the pipeline needs.
type ParsedMessage struct {
	From      string
	Subject   string
	MessageID string
	TextBody  string
	HTMLBody  string
}

// Body prefers the plain-text alternative and falls back to the HTML one
// reduced to text.
func (m ParsedMessage) Body() string {
	if strings.TrimSpace(m.TextBody) != "" {
		return m.TextBody
	}
	if m.HTMLBody != "" {
		return vendormail.HTMLToText(m.HTMLBody)
	}
	return ""
}

func ParseRFC822(raw []byte) (ParsedMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ParsedMessage{}, ErrEmptyMessage
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return ParsedMessage{}, fmt.Errorf("parse message: %w", err)
	}
	defer mr.Close()

	var msg ParsedMessage
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].Address
	} else {
		msg.From = strings.TrimSpace(mr.Header.Get("From"))
	}
	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = strings.TrimSpace(subject)
	} else {
		msg.Subject = strings.TrimSpace(mr.Header.Get("Subject"))
	}
	if id, err := mr.Header.MessageID(); err == nil {
		msg.MessageID = id
	}

	var text, html []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			return ParsedMessage{}, fmt.Errorf("read message part: %w", err)
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := h.ContentType()
		if err != nil {
			continue
		}
		content, err := io.ReadAll(io.LimitReader(p.Body, maxPartBytes))
		if err != nil {
			return ParsedMessage{}, fmt.Errorf("read message part: %w", err)
		}
		part := strings.TrimSpace(string(content))
		if part == "" {
			continue
		}
		switch strings.ToLower(contentType) {
		case "text/plain":
			text = append(text, part)
		case "text/html":
			html = append(html, part)
		}
	}
	msg.TextBody = strings.Join(text, "\n\n")
	msg.HTMLBody = strings.Join(html, "\n")
	return msg, nil
}
