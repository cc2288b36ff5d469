package common

import "context"

type ctxKey string

const buyerIDKey ctxKey = "auth/buyer-uid"

// WithBuyerID stores the authenticated buyer uid on the provided context.
func WithBuyerID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, buyerIDKey, uid)
}

// BuyerID extracts the authenticated buyer uid from the context if present.
func BuyerID(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(buyerIDKey).(string)
	if !ok || uid == "" {
		return "", false
	}
	return uid, true
}
