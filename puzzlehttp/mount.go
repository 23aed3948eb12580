// Package puzzlehttp adapts a compiled *puzzle.Template onto a
// github.com/go-chi/chi/v5 router: the template's own request handler,
// plus its bundled stylesheet's static route when one exists. Nothing
// here is required to serve a Template — Handler returns a bare
// net/http.Handler for embedders that don't want chi — but Mount is the
// convenience the CLI's serve command uses.
package puzzlehttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/barisesen/puzzle-js"
)

// Handler returns tmpl as a bare net/http.Handler.
func Handler(tmpl *puzzle.Template) http.Handler {
	return http.HandlerFunc(tmpl.ServeHTTP)
}

// Mount registers tmpl's handler at path on router, and its static
// stylesheet route (if any) alongside it.
func Mount(router chi.Router, path string, tmpl *puzzle.Template) {
	router.Get(path, tmpl.ServeHTTP)
	if route := tmpl.StaticRoute(); route != nil {
		router.Get(route.Path, route.Handler().ServeHTTP)
	}
}
