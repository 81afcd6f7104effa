// Package reqctx carries request-scoped values (request metadata and verified
// token claims) through context.Context.
//
// Keys are unexported; use the typed accessors:
//
//	ctx = reqctx.WithRequestMeta(ctx, meta)
//	ctx = reqctx.WithClaims(ctx, claims)
//
//	if uid, ok := reqctx.UserIDFromContext(ctx); ok { ... }
//
// RequestMeta is set for every HTTP request. Claims are set only when a
// bearer token was presented and verified.
package reqctx
