package api

import (
	"context"

	"github.com/org/feedbackvault/pkg/models"
)

type contextKey string

const (
	ctxKeyIdentity       contextKey = "identity"
	ctxKeyIdentityHolder contextKey = "identity_holder"
	ctxKeyRequestID      contextKey = "request_id"
)

// identityHolder lets an outer middleware see the identity an inner one resolved.
type identityHolder struct {
	ident *models.Identity
}

func withIdentityHolder(ctx context.Context, h *identityHolder) context.Context {
	return context.WithValue(ctx, ctxKeyIdentityHolder, h)
}

func withIdentity(ctx context.Context, id *models.Identity) context.Context {
	if h, ok := ctx.Value(ctxKeyIdentityHolder).(*identityHolder); ok {
		h.ident = id
	}
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

func identityFromCtx(ctx context.Context) *models.Identity {
	id, _ := ctx.Value(ctxKeyIdentity).(*models.Identity)
	return id
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

func requestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}
