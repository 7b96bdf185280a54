// Package kit holds the transport-agnostic endpoint abstraction shared
// by the HTTP and MCP surfaces.
package kit

import "context"

// Endpoint is one operation: typed request in, typed response out.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware decorates an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares; the first argument is the outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
