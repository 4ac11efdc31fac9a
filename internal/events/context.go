package events

import "context"

type outputKey struct{}

// WithOutput returns a context whose tool output is passed to fn.
func WithOutput(ctx context.Context, fn func(line string)) context.Context {
	return context.WithValue(ctx, outputKey{}, fn)
}

// OutputFrom returns the output sink stored in ctx, or nil.
func OutputFrom(ctx context.Context) func(line string) {
	fn, _ := ctx.Value(outputKey{}).(func(line string))
	return fn
}
