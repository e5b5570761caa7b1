// Package contracts holds the small interfaces shared between the HTTP
// application shell and the domain handlers it mounts.
package contracts

import "github.com/julienschmidt/httprouter"

// Handler mounts a domain's endpoints on the application router.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// RoutesFunc adapts a plain function to Handler.
type RoutesFunc func(*httprouter.Router)

func (f RoutesFunc) RegisterRoutes(router *httprouter.Router) {
	f(router)
}
