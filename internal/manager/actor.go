package manager

import (
	"context"
	"time"
)

// Actor identifies who performs a mutation and when.
type Actor struct {
	Name string
	Time time.Time
}

type actorKey struct{}

// WithActor returns a context carrying the actor and timestamp stamped on
// every mutation made with it.
func WithActor(ctx context.Context, name string, at time.Time) context.Context {
	return context.WithValue(ctx, actorKey{}, Actor{Name: name, Time: at.UTC()})
}

// ActorFrom returns the actor carried by ctx.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok && a.Name != ""
}

// Using runs fn with an actor context stamped with the engine clock. The
// actor does not outlive fn.
func (e *Engine) Using(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return fn(WithActor(ctx, name, e.now()))
}
