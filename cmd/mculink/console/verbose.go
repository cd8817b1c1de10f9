package console

import "context"

// The verbose flag travels in the context so transfer commands can decide
// how chatty their output should be without threading another parameter.

type ctxIndex int

const ctxIndexVerbose ctxIndex = iota

func SetVerbose(parent context.Context, value bool) context.Context {
	return context.WithValue(parent, ctxIndexVerbose, value)
}

func IsVerbose(ctx context.Context) bool {
	val := ctx.Value(ctxIndexVerbose)
	if val == nil {
		return false
	}
	return val.(bool)
}
