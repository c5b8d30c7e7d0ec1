package tools

import "context"

// Handler executes a named tool call.
type Handler func(ctx context.Context, toolName string, args map[string]any) (ToolResult, error)

// Middleware wraps a Handler. Middleware installed on a registry is
// applied to every ExecuteTool call, so cross-cutting behavior (guards,
// auditing) attaches at construction time rather than by rebinding
// methods on live objects.
type Middleware func(next Handler) Handler

// Chain composes middleware so the first element is outermost.
func Chain(middleware ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(middleware) - 1; i >= 0; i-- {
			next = middleware[i](next)
		}
		return next
	}
}
