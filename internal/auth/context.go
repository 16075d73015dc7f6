package auth

import (
	"context"
	"errors"
)

// Identity is the per-request session carried through context.
// Services read it instead of any process-wide "current user".
type Identity struct {
	UserID string
	Email  string
	Role   string
	IP     string
}

type ctxKey int

const ctxIdentity ctxKey = iota

var ErrNoIdentity = errors.New("identity not in context")

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxIdentity, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxIdentity).(Identity)
	return id, ok
}

func UserID(ctx context.Context) (string, error) {
	if id, ok := IdentityFrom(ctx); ok && id.UserID != "" {
		return id.UserID, nil
	}
	return "", ErrNoIdentity
}

func Role(ctx context.Context) (string, error) {
	if id, ok := IdentityFrom(ctx); ok && id.Role != "" {
		return id.Role, nil
	}
	return "", errors.New("role not in context")
}
