package types

import (
	"context"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID     ContextKey = "ctx_request_id"
	CtxUserID        ContextKey = "ctx_user_id"
	CtxPrincipal     ContextKey = "ctx_principal"
	CtxJWT           ContextKey = "ctx_jwt"
	CtxDBTransaction ContextKey = "ctx_db_transaction"

	DefaultUserID = "00000000-0000-0000-0000-000000000000"
)

func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(CtxUserID).(string); ok {
		return userID
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

func GetJWT(ctx context.Context) string {
	if jwt, ok := ctx.Value(CtxJWT).(string); ok {
		return jwt
	}
	return ""
}

// GetPrincipal returns the authenticated principal, or nil for anonymous
// callers such as provider webhooks.
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(CtxPrincipal).(*Principal); ok {
		return p
	}
	return nil
}

// SetPrincipal stores the principal and its user id in the context
func SetPrincipal(ctx context.Context, p *Principal) context.Context {
	ctx = context.WithValue(ctx, CtxPrincipal, p)
	if p != nil {
		ctx = context.WithValue(ctx, CtxUserID, p.UserID)
	}
	return ctx
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, CtxRequestID, requestID)
}

func SetJWT(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, CtxJWT, token)
}
