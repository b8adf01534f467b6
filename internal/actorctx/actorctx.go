package actorctx

import "context"

type ctxKey string

const keyAccountID ctxKey = "account_id"

// WithAccountID records which signed-in account triggered the work carried by ctx.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, keyAccountID, accountID)
}

func AccountIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyAccountID).(string)

	return v, ok && v != ""
}
