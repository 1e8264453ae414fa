// Package middleware contains decorators for message handlers: tracing,
// logging and visibility-timeout extension.
package middleware

import "github.com/tinexw/sqslistener"

// Decorator wraps a handler.
type Decorator func(sqslistener.HandlerFunc) sqslistener.HandlerFunc

// Apply applies the decorators in inverse order so that d1, d2, d3 results
// in d1(d2(d3(fn))) running outermost-first.
func Apply(fn sqslistener.HandlerFunc, ds ...Decorator) sqslistener.HandlerFunc {
	for i := len(ds) - 1; i >= 0; i-- {
		fn = ds[i](fn)
	}
	return fn
}
