// Package compose maps a parsed message onto the outbound API message.
package compose

import (
	"github.com/shineum/graph-sendmail/internal/email"
	"github.com/shineum/graph-sendmail/internal/normalize"
)

// Build creates the outbound message for p. Subject and body are normalized
// with the same options. The body is always sent as plain text.
func Build(p *email.Parsed, opts normalize.Options) (*email.Outbound, error) {
	if p == nil || len(p.From) == 0 {
		return nil, &email.ParseError{Reason: "no From address"}
	}

	content := email.Content{
		Subject: normalize.Normalize(p.Subject, opts),
		Body:    normalize.Normalize(p.TextBody, opts),
	}

	sender := p.Sender
	if sender == "" {
		sender = p.From[0]
	}

	to := make([]string, len(p.To))
	copy(to, p.To)

	return &email.Outbound{
		Subject: content.Subject,
		Body: email.Body{
			ContentType: email.ContentTypeText,
			Content:     content.Body,
		},
		To:     to,
		Sender: sender,
		From:   p.From[0],
	}, nil
}
