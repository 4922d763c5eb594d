package auth

import (
	"context"

	"github.com/parleyhq/parley/types"
)

var ctxKeyIdentity = struct{ name string }{name: "ctx-key-identity"}

func ContextWithIdentity(ctx context.Context, identity types.Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, identity)
}

func IdentityFromContext(ctx context.Context) (types.Identity, bool) {
	identity, ok := ctx.Value(ctxKeyIdentity).(types.Identity)
	return identity, ok
}
