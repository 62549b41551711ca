package testutil

import (
	"context"

	"github.com/saasinvoice/billing/internal/types"
)

func SetupContext() context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, types.CtxRequestID, types.GenerateUUID())
	return ctx
}

// WithPrincipal returns ctx acting as userID with role
func WithPrincipal(ctx context.Context, userID string, role types.Role) context.Context {
	return types.SetPrincipal(ctx, &types.Principal{
		UserID: userID,
		Email:  userID + "@example.com",
		Role:   role,
	})
}
