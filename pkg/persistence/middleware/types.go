// Package middleware decorates a ports.ContextStore with at-rest protections.
package middleware

import "github.com/aretw0/chatflow/pkg/ports"

// Middleware allows wrapping a ContextStore to add behavior.
type Middleware func(ports.ContextStore) ports.ContextStore

// Chain applies mws to store so that the first middleware is the outermost one.
func Chain(store ports.ContextStore, mws ...Middleware) ports.ContextStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
