// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// ActorContext identifies who is performing an accounting operation.
// Audit records and reopen metadata are stamped from it.
type ActorContext struct {
	ActorID   string
	CompanyID string
	Source    string // cli, worker, api...
}

type actorContextKey struct{}

// WithActor adds ActorContext to context.
func WithActor(ctx context.Context, actor *ActorContext) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns ActorContext from context.
func GetActor(ctx context.Context) *ActorContext {
	if v, ok := ctx.Value(actorContextKey{}).(*ActorContext); ok {
		return v
	}
	return nil
}

// GetActorID returns actor ID from context or "system".
func GetActorID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil && a.ActorID != "" {
		return a.ActorID
	}
	return "system"
}
