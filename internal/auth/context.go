// ABOUTME: Request identity propagation through context.Context
// ABOUTME: Provides WithIdentity/IdentityFromContext for handlers behind the gate

package auth

import "context"

// Identity describes how an admitted request authenticated at the gate.
type Identity struct {
	// Method is "api-key", "bearer", or "exempt".
	Method string
	// Subject is the bearer token subject, empty for api-key requests.
	Subject string
	// ChatID is the chat identity a bearer token is bound to, when any.
	// Handlers fall back to it when the payload carries no chat_id.
	ChatID string
}

type identityContextKey struct{}

// WithIdentity returns a new context carrying the gate identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext retrieves the gate identity, or nil if the request
// did not pass through the gate.
func IdentityFromContext(ctx context.Context) *Identity {
	id, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok {
		return nil
	}
	return id
}
