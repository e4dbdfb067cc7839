// Package auth consumes already-resolved user identities. Authentication
// itself is owned by an external collaborator; this package only turns a
// verified token into an Identity and makes it available to handlers.
package auth

import (
	"context"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the acting user as resolved by the session layer.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity stored in ctx, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
