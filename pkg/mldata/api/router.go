// Package api exposes the asset store over HTTP with chi.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/tsi-mlops/mldata/pkg/mldata"
	"github.com/tsi-mlops/mldata/pkg/mldata/auth"
)

// NewRouter assembles the full HTTP surface. The liveness endpoint is
// open; everything else sits behind basic auth.
func NewRouter(service mldata.Service, authn *auth.Authenticator) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		render.JSON(w, req, map[string]string{"status": "OK"})
	})

	r.Group(func(r chi.Router) {
		r.Use(BasicAuth(authn))
		r.Mount("/dataset", NewDatasetHandler(service).Routes())
		r.Mount("/models", NewModelHandler(service).Routes())
	})

	return r
}
