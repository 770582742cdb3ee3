// Package parser turns raw RFC 5322 messages into the fields the relay sends.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/k3a/html2text"
	"golang.org/x/text/encoding/charmap"

	"github.com/shineum/graph-sendmail/internal/email"
)

func init() {
	// Legacy relays commonly emit these without declaring them properly.
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
}

// Parse parses a raw message into an email.Parsed. The plain-text body is
// taken from the first inline text/plain part; messages without one fall
// back to a text rendering of the first text/html part. Attachments are
// ignored.
//
// Any failure is returned as *email.ParseError.
func Parse(raw []byte) (*email.Parsed, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &email.ParseError{Reason: "empty message"}
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, &email.ParseError{Reason: "failed to read headers", Err: err}
	}
	if err != nil {
		slog.Warn("unknown charset in message header, continuing", "error", err)
	}
	defer mr.Close()

	header := mr.Header
	result := &email.Parsed{
		MessageID: header.Get("Message-Id"),
	}

	from, err := header.AddressList("From")
	if err != nil {
		return nil, &email.ParseError{Reason: "invalid From header", Err: err}
	}
	for _, addr := range from {
		result.From = append(result.From, addr.Address)
	}
	if len(result.From) == 0 {
		return nil, &email.ParseError{Reason: "no From address"}
	}

	result.Sender = result.From[0]
	if sender, err := header.AddressList("Sender"); err == nil && len(sender) > 0 {
		result.Sender = sender[0].Address
	}

	result.To, err = addressList(header, "To")
	if err != nil {
		return nil, &email.ParseError{Reason: "invalid To header", Err: err}
	}

	result.Subject, err = header.Subject()
	if err != nil {
		slog.Warn("failed to decode subject, using raw value", "error", err)
		result.Subject = header.Get("Subject")
	}

	if err := readBodies(mr, result); err != nil {
		return nil, err
	}

	if result.TextBody == "" && result.HTMLBody != "" {
		result.TextBody = html2text.HTML2Text(result.HTMLBody)
	}

	return result, nil
}

// readBodies walks the message parts and keeps the first inline text/plain
// and text/html bodies.
func readBodies(mr *mail.Reader, result *email.Parsed) error {
	var havePlain, haveHTML bool

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return &email.ParseError{Reason: "failed to read part", Err: err}
		}
		if part == nil {
			continue
		}
		if err != nil {
			slog.Warn("unknown charset in MIME part, using raw bytes", "error", err)
		}

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, err := inline.ContentType()
		if err != nil {
			slog.Warn("failed to parse part content type, treating as plain text", "error", err)
			contentType = "text/plain"
		}

		switch {
		case strings.EqualFold(contentType, "text/plain") && !havePlain:
			body, err := io.ReadAll(part.Body)
			if err != nil {
				return &email.ParseError{Reason: "failed to read text body", Err: err}
			}
			result.TextBody = string(body)
			havePlain = true
		case strings.EqualFold(contentType, "text/html") && !haveHTML:
			body, err := io.ReadAll(part.Body)
			if err != nil {
				return &email.ParseError{Reason: "failed to read html body", Err: err}
			}
			result.HTMLBody = string(body)
			haveHTML = true
		default:
			slog.Debug("skipping MIME part", "content_type", contentType)
		}
	}
}

// addressList returns the bare addresses of a header, preserving order and
// duplicates. A missing header yields an empty list.
func addressList(header mail.Header, key string) ([]string, error) {
	if header.Get(key) == "" {
		return nil, nil
	}
	addrs, err := header.AddressList(key)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, addr.Address)
	}
	return out, nil
}
