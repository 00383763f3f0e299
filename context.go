package harberger

import (
	"context"

	"github.com/openlots/harberger/types"
)

type contextKey string

const callerKey contextKey = "harberger.caller"

// WithCaller returns a context carrying the account invoking subsequent
// operations. The host's identity layer decides what goes here; the engine
// only compares it against holder records.
func WithCaller(ctx context.Context, account types.Account) context.Context {
	return context.WithValue(ctx, callerKey, account)
}

// CallerFrom extracts the calling account from the context. Returns the
// zero Account when none was set.
func CallerFrom(ctx context.Context) types.Account {
	if acct, ok := ctx.Value(callerKey).(types.Account); ok {
		return acct
	}
	return ""
}
