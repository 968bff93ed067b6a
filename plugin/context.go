package plugin

import (
	"context"

	"github.com/wippyai/plugin-tracker/handle"
)

// instanceContextKey is the context key for the calling tracker instance.
type instanceContextKey struct{}

// WithInstance returns a context carrying the calling tracker instance.
func WithInstance(ctx context.Context, inst handle.Instance) context.Context {
	return context.WithValue(ctx, instanceContextKey{}, inst)
}

// InstanceFromContext extracts the calling tracker instance.
func InstanceFromContext(ctx context.Context) (handle.Instance, bool) {
	inst, ok := ctx.Value(instanceContextKey{}).(handle.Instance)
	return inst, ok && inst != handle.Invalid
}
