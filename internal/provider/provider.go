// Package provider defines the interface for mail delivery backends.
package provider

import (
	"context"

	"github.com/shineum/graph-sendmail/internal/email"
)

// Identity is the account a message is sent as, as known to the backend.
type Identity struct {
	// ID is the backend's internal account id used for the send call.
	ID            string
	PrincipalName string
	DisplayName   string
	Mail          string
}

// Provider is the interface that mail delivery backends must implement.
// Each call is a single attempt; callers decide what a failure means.
type Provider interface {
	// ResolveIdentity looks up the sending account by principal name.
	// It returns (nil, nil) when the backend has no such account.
	ResolveIdentity(ctx context.Context, principal string) (*Identity, error)

	// Send delivers msg as the given identity.
	Send(ctx context.Context, id *Identity, msg *email.Outbound) error

	// Name returns the human-readable name of this provider.
	Name() string
}
