package event

import "context"

// Handler processes events delivered by the bus.
type Handler interface {
	Handle(ctx context.Context, ev any) error
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(ctx context.Context, ev any) error

// Handle calls f(ctx, ev).
func (f HandlerFunc) Handle(ctx context.Context, ev any) error {
	return f(ctx, ev)
}

// Typed adapts a function taking a concrete Event[T] to Handler.
// Events carrying a different payload type are ignored.
func Typed[T any](fn func(ctx context.Context, ev Event[T]) error) Handler {
	return HandlerFunc(func(ctx context.Context, ev any) error {
		typed, ok := ev.(Event[T])
		if !ok {
			return nil
		}
		return fn(ctx, typed)
	})
}
