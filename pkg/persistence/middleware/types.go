// Package middleware wraps upload stores with cross-cutting behavior.
package middleware

import "github.com/aretw0/trio/pkg/ports"

// Middleware allows wrapping an UploadStore to add behavior.
type Middleware func(ports.UploadStore) ports.UploadStore

// Chain applies middlewares so that the first one is the outermost.
func Chain(store ports.UploadStore, mws ...Middleware) ports.UploadStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
