// Package observability carries per-operation identity through a context.
package observability

import (
	"context"

	"github.com/google/uuid"
)

type opIDKey struct{}

type componentKey struct{}

// WithOpID stores a fresh operation ID in the context.
// Each CLI invocation and each HTTP request gets exactly one.
func WithOpID(ctx context.Context) context.Context {
	return context.WithValue(ctx, opIDKey{}, uuid.NewString())
}

// WithOpIDValue stores a caller-supplied operation ID, e.g. from a request header.
func WithOpIDValue(ctx context.Context, id string) context.Context {
	if id == "" {
		return WithOpID(ctx)
	}
	return context.WithValue(ctx, opIDKey{}, id)
}

// OpID retrieves the operation ID from context
// Returns empty string if no op_id was set
func OpID(ctx context.Context) string {
	if id, ok := ctx.Value(opIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithComponent names the subsystem emitting events for this context.
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey{}, component)
}

// Component returns the subsystem name, "cli" if unset.
func Component(ctx context.Context) string {
	if c, ok := ctx.Value(componentKey{}).(string); ok && c != "" {
		return c
	}
	return "cli"
}
