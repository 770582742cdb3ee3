// Package relay resolves the sending account and hands the outbound message
// to a delivery provider, logging every failure.
package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shineum/graph-sendmail/internal/email"
	"github.com/shineum/graph-sendmail/internal/provider"
)

// IdentityLookupError reports that the sending account could not be looked up.
type IdentityLookupError struct {
	UPN string
	Err error
}

func (e *IdentityLookupError) Error() string {
	return fmt.Sprintf("look up user %q: %v", e.UPN, e.Err)
}

func (e *IdentityLookupError) Unwrap() error {
	return e.Err
}

// IdentityNotFoundError reports that the backend has no account for UPN.
type IdentityNotFoundError struct {
	UPN string
}

func (e *IdentityNotFoundError) Error() string {
	return fmt.Sprintf("user not found: %s", e.UPN)
}

// SendError reports that the backend rejected or failed the send call.
type SendError struct {
	UPN string
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send as %q: %v", e.UPN, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Relay delivers outbound messages through a single provider.
type Relay struct {
	provider provider.Provider
	logger   *slog.Logger
}

// New creates a Relay. A nil logger uses slog.Default().
func New(p provider.Provider, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{provider: p, logger: logger}
}

// Deliver resolves upn and sends msg as that account. Each call is made
// once. Failures are logged before they are returned.
func (r *Relay) Deliver(ctx context.Context, upn string, msg *email.Outbound) error {
	log := r.logger.With("provider", r.provider.Name())

	id, err := r.provider.ResolveIdentity(ctx, upn)
	if err != nil {
		log.Error(fmt.Sprintf("Problem looking up user with UPN %q.", upn), "error", err)
		return &IdentityLookupError{UPN: upn, Err: err}
	}
	if id == nil || id.ID == "" {
		log.Error("User not found.  UPN: " + upn)
		return &IdentityNotFoundError{UPN: upn}
	}

	log.Debug("resolved sending user", "upn", upn, "id", id.ID)

	if err := r.provider.Send(ctx, id, msg); err != nil {
		log.Error("Problem sending email.", "upn", upn, "error", err)
		return &SendError{UPN: upn, Err: err}
	}

	log.Info("email sent",
		"upn", upn,
		"to", len(msg.To),
		"subject", msg.Subject,
	)
	return nil
}
