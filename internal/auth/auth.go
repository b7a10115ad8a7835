// Package auth carries the authenticated identity supplied by the external
// auth collaborator. The core never manages credentials; it only consumes
// the {userID, isAdmin} contract.
package auth

import "context"

type Identity struct {
	UserID  string
	IsAdmin bool
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
