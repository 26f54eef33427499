// Package kit provides transport-agnostic endpoint plumbing: a common
// handler shape, middleware composition, request-scoped context keys,
// and adapters that expose endpoints over MCP.
package kit

import "context"

// Endpoint is a transport-agnostic request handler. Decoded requests go
// in, encodable responses come out; transports live at the edges.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behavior.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so the first listed runs outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
