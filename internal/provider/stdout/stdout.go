// Package stdout implements a Provider that prints emails to standard output.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shineum/graph-sendmail/internal/email"
	"github.com/shineum/graph-sendmail/internal/provider"
)

const separator = "========================================\n"

// Provider prints outbound messages in a human-readable format instead of
// delivering them.
type Provider struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a new stdout Provider that writes to os.Stdout.
func New() *Provider {
	return &Provider{writer: os.Stdout}
}

// NewWithWriter creates a new stdout Provider that writes to the given writer.
func NewWithWriter(w io.Writer) *Provider {
	return &Provider{writer: w}
}

// ResolveIdentity accepts any principal as its own identity.
func (p *Provider) ResolveIdentity(_ context.Context, principal string) (*provider.Identity, error) {
	if principal == "" {
		return nil, nil
	}
	return &provider.Identity{ID: principal, PrincipalName: principal, Mail: principal}, nil
}

// Send prints the message between separator lines.
func (p *Provider) Send(_ context.Context, id *provider.Identity, msg *email.Outbound) error {
	var b strings.Builder

	b.WriteString(separator)
	if id != nil {
		fmt.Fprintf(&b, "Send As: %s\n", id.PrincipalName)
	}
	fmt.Fprintf(&b, "Sender: %s\n", msg.Sender)
	fmt.Fprintf(&b, "From: %s\n", msg.From)
	fmt.Fprintf(&b, "To: %s\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	b.WriteString("Body:\n")
	b.WriteString(msg.Body.Content)
	if !strings.HasSuffix(msg.Body.Content, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(separator)

	if _, err := io.WriteString(p.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stdout"
}
