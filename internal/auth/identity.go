package auth

import "context"

// Identity is the verified caller behind a bearer token.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok && identity.ID != ""
}
